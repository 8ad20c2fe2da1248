package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/i474232898/pm-monitor/internal/config"
	"github.com/i474232898/pm-monitor/internal/logging"
	"github.com/i474232898/pm-monitor/internal/monitor"
	"github.com/i474232898/pm-monitor/internal/monitor/earthengine"
	"github.com/i474232898/pm-monitor/internal/notify"
	"github.com/i474232898/pm-monitor/internal/publish"
	"github.com/i474232898/pm-monitor/internal/store"
)

const mqttConnectTimeout = 10 * time.Second

// app holds the wired components for one process.
type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	service *monitor.Service
	cleanup []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (*config.AppConfig, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)
	if cfg.EnvFileErr != nil {
		logger.Debug("no .env file loaded", "error", cfg.EnvFileErr)
	}
	return cfg, logger, nil
}

// newApp authenticates against Earth Engine and GitHub and wires the monitor
// service. With localOnly the documents are written to disk but not uploaded.
func newApp(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger, localOnly bool, opts ...monitor.Option) (*app, error) {
	if !localOnly {
		if err := cfg.RequirePublishing(); err != nil {
			return nil, err
		}
	}

	session, err := earthengine.Bootstrap(ctx, earthengine.Credentials{
		ServiceAccount: cfg.EEServiceAccount,
		KeyFile:        cfg.EEKeyFile,
		Project:        cfg.EEProject,
	})
	if err != nil {
		return nil, fmt.Errorf("earth engine: %w", err)
	}
	logger.Info("earth engine session ready", "project", session.Project)

	reducer := earthengine.NewReducer(session, earthengine.ResilienceConfig{
		Backoff: earthengine.BackoffConfig{
			MaxRetries:      cfg.EEMaxRetries,
			InitialInterval: cfg.EEInitialBackoff,
			MaxInterval:     cfg.EEMaxBackoff,
		},
		Limiter: rate.NewLimiter(rate.Limit(cfg.EERequestsPerSecond), 1),
	}, logger)

	ledger := store.NewFileHistory(cfg.HistoryPath, cfg.HistoryMax, logger)

	var remote publish.RemoteStore
	if !localOnly {
		gs, err := publish.NewGitHubStore(ctx, cfg.GitHubToken, cfg.GitHubRepo, cfg.GitHubBranch)
		if err != nil {
			return nil, err
		}
		remote = gs
	}
	publisher := publish.NewPublisher(cfg.OutDir, remote, logger)

	a := &app{cfg: cfg, logger: logger}

	opts = append([]monitor.Option{monitor.WithLogger(logger)}, opts...)
	if cfg.MQTTBroker != "" {
		n := notify.NewMQTTNotifier(notify.Options{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
			Site:     cfg.SiteName,
		}, logger)

		connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
		if err := n.Connect(connectCtx); err != nil {
			// The sink is optional; publishing fails per run until reconnected.
			logger.Warn("mqtt connect failed", "broker", cfg.MQTTBroker, "error", err)
		}
		cancel()

		a.cleanup = append(a.cleanup, n.Disconnect)
		opts = append(opts, monitor.WithNotifier(n))
	}

	a.service = monitor.NewService(reducer, ledger, publisher, cfg.Site(), cfg.ScaleM, opts...)
	return a, nil
}
