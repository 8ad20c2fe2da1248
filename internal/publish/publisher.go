package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/i474232898/pm-monitor/internal/monitor"
	"github.com/i474232898/pm-monitor/internal/store"
)

// RemoteStore is a versioned file store addressed by path.
type RemoteStore interface {
	// Lookup returns the current revision of path. found is false, with a nil
	// error, only when the store positively reports the path as absent.
	Lookup(ctx context.Context, path string) (revision string, found bool, err error)
	Create(ctx context.Context, path, message string, content []byte) error
	Update(ctx context.Context, path, message string, content []byte, revision string) error
}

// Publisher writes documents to a local directory, then upserts each into a
// RemoteStore. A nil remote only writes locally.
type Publisher struct {
	dir    string
	remote RemoteStore
	logger *slog.Logger
}

// NewPublisher creates a new Publisher.
func NewPublisher(dir string, remote RemoteStore, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		dir:    dir,
		remote: remote,
		logger: logger.With("component", "publisher"),
	}
}

// Publish writes every document locally first, then uploads them one by one.
// A failure on one document never blocks the others.
func (p *Publisher) Publish(ctx context.Context, run monitor.Run, docs []monitor.Document) []monitor.Outcome {
	log := p.logger.With("run", run.ID.String())
	outcomes := make([]monitor.Outcome, len(docs))
	written := make([]bool, len(docs))

	for i, doc := range docs {
		outcomes[i].Path = doc.Path
		if err := store.WriteJSON(p.localPath(doc), doc.Body); err != nil {
			log.Error("local write failed", "file", doc.Name, "error", err)
			outcomes[i].Action = monitor.ActionFailed
			outcomes[i].Error = err.Error()
			continue
		}
		written[i] = true
	}
	log.Info("local files written", "dir", p.dir)

	for i, doc := range docs {
		if !written[i] {
			continue
		}
		if p.remote == nil {
			outcomes[i].Action = monitor.ActionSkipped
			continue
		}

		action, err := p.upload(ctx, doc)
		outcomes[i].Action = action
		if err != nil {
			outcomes[i].Error = err.Error()
			log.Error("upload failed", "path", doc.Path, "error", err)
			continue
		}
		log.Info("uploaded", "path", doc.Path, "action", string(action))
	}

	return outcomes
}

func (p *Publisher) localPath(doc monitor.Document) string {
	return filepath.Join(p.dir, doc.Name)
}

// upload upserts one document from its local copy.
func (p *Publisher) upload(ctx context.Context, doc monitor.Document) (monitor.PublishAction, error) {
	content, err := os.ReadFile(p.localPath(doc))
	if err != nil {
		return monitor.ActionFailed, fmt.Errorf("read local copy: %w", err)
	}

	name := path.Base(doc.Path)

	rev, found, err := p.remote.Lookup(ctx, doc.Path)
	if err != nil {
		return monitor.ActionFailed, fmt.Errorf("lookup: %w", err)
	}

	if found {
		if err := p.remote.Update(ctx, doc.Path, UpdateMessage(name), content, rev); err != nil {
			return monitor.ActionFailed, fmt.Errorf("update: %w", err)
		}
		return monitor.ActionUpdated, nil
	}

	if err := p.remote.Create(ctx, doc.Path, CreateMessage(name), content); err != nil {
		return monitor.ActionFailed, fmt.Errorf("create: %w", err)
	}
	return monitor.ActionCreated, nil
}

// UpdateMessage is the commit message for an existing document.
func UpdateMessage(name string) string {
	return "Auto-update " + name
}

// CreateMessage is the commit message for a new document.
func CreateMessage(name string) string {
	return "Create " + name
}
