package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

// DefaultHistoryMax is the ledger capacity.
const DefaultHistoryMax = 200

// FileHistory is the rolling reading log persisted as one JSON array.
// Reads and writes are not locked: concurrent runs are last-writer-wins.
type FileHistory struct {
	path   string
	max    int
	logger *slog.Logger
}

// NewFileHistory creates a ledger at path. If max is <= 0, DefaultHistoryMax is used.
func NewFileHistory(path string, max int, logger *slog.Logger) *FileHistory {
	if max <= 0 {
		max = DefaultHistoryMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHistory{
		path:   path,
		max:    max,
		logger: logger.With("component", "history"),
	}
}

// Path returns the ledger file location.
func (h *FileHistory) Path() string {
	return h.path
}

// Load returns the persisted log. A missing, unreadable or malformed file
// yields an empty log.
func (h *FileHistory) Load() []monitor.HistoryEntry {
	data, err := os.ReadFile(h.path)
	if err != nil {
		h.logger.Debug("history not loaded; starting empty", "path", h.path, "error", err)
		return []monitor.HistoryEntry{}
	}

	var entries []monitor.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		h.logger.Debug("history is not valid json; starting empty", "path", h.path, "error", err)
		return []monitor.HistoryEntry{}
	}
	if entries == nil {
		entries = []monitor.HistoryEntry{}
	}
	return entries
}

// Append loads the log, appends entry, keeps the most recent max entries and
// persists the result. The returned log is valid even when err is not nil.
func (h *FileHistory) Append(entry monitor.HistoryEntry) ([]monitor.HistoryEntry, error) {
	entries := append(h.Load(), entry)

	// Enforce retention by count.
	if len(entries) > h.max {
		over := len(entries) - h.max
		entries = entries[over:]
	}

	if err := WriteJSON(h.path, entries); err != nil {
		return entries, fmt.Errorf("persist history: %w", err)
	}
	return entries, nil
}

// WriteJSON writes v to path as 2-space indented JSON, creating parent
// directories as needed.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
