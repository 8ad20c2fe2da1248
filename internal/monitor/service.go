package monitor

import (
	"context"
	"log/slog"
	"time"
)

// Local file names and their paths in the remote repository.
const (
	RemoteDir = "data"

	CurrentFile    = "current.json"
	AnnualPM25File = "annual_pm25.json"
	AnnualTempFile = "annual_temperature.json"
	HistoryFile    = "history.json"
)

// Service runs one monitoring cycle: reduce, append history, publish.
type Service struct {
	reducer   Reducer
	ledger    HistoryLedger
	publisher Publisher
	notifier  Notifier
	reports   ReportStore

	site   Site
	scale  float64
	clock  func() time.Time
	logger *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier adds an optional sink for the current reading.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithReportStore keeps each run's report in rs.
func WithReportStore(rs ReportStore) Option {
	return func(s *Service) { s.reports = rs }
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new Service. A non-positive scale falls back to DefaultScale.
func NewService(reducer Reducer, ledger HistoryLedger, publisher Publisher, site Site, scale float64, opts ...Option) *Service {
	if scale <= 0 {
		scale = DefaultScale
	}
	s := &Service{
		reducer:   reducer,
		ledger:    ledger,
		publisher: publisher,
		site:      site,
		scale:     scale,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "monitor")
	return s
}

// Run executes one cycle. It only fails on context cancellation before any
// work started; every other failure is recorded in the report.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	run := NewRun(s.clock())
	log := s.logger.With("run", run.ID.String())
	log.Info("run started", "site", s.site.Name, "now", FormatTimestamp(run.Now))

	current := BuildSnapshot(ctx, s.reducer, run, s.site, s.scale)
	annualPM := BuildAnnual(ctx, s.reducer, run, s.site, PM25, s.scale, s.clock)
	annualTemp := BuildAnnual(ctx, s.reducer, run, s.site, Temperature, s.scale, s.clock)

	history, err := s.ledger.Append(EntryFromReading(current))
	if err != nil {
		// The in-memory log is still published; the next run reloads whatever
		// made it to disk.
		log.Warn("history not persisted", "error", err)
	}

	docs := []Document{
		{Name: CurrentFile, Path: RemoteDir + "/" + CurrentFile, Body: current},
		{Name: AnnualPM25File, Path: RemoteDir + "/" + AnnualPM25File, Body: annualPM},
		{Name: AnnualTempFile, Path: RemoteDir + "/" + AnnualTempFile, Body: annualTemp},
		{Name: HistoryFile, Path: RemoteDir + "/" + HistoryFile, Body: history},
	}
	outcomes := s.publisher.Publish(ctx, run, docs)

	if s.notifier != nil {
		if err := s.notifier.NotifyCurrent(ctx, current); err != nil {
			log.Warn("notify current reading failed", "error", err)
		}
	}

	report := Report{
		RunID:      run.ID,
		StartedAt:  run.Now,
		Current:    current,
		AnnualPM25: annualPM,
		AnnualTemp: annualTemp,
		History:    history,
		Outcomes:   outcomes,
	}
	if s.reports != nil {
		s.reports.SaveReport(report)
	}

	log.Info("run completed",
		"pm25_ugm3", valueOrNil(current.PM25),
		"temperature_c", valueOrNil(current.TemperatureC),
		"history", len(history),
		"failed_documents", report.Failed(),
	)
	return report, nil
}

func valueOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
