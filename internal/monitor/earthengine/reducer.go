package earthengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

// Reducer implements monitor.Reducer against the Earth Engine value:compute API.
type Reducer struct {
	session *Session
	cfg     ResilienceConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewReducer wraps an authenticated session.
func NewReducer(session *Session, cfg ResilienceConfig, logger *slog.Logger) *Reducer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         "earthengine",
		MaxRequests:  5,
		Interval:     1 * time.Minute,
		Timeout:      2 * time.Minute,
		IsSuccessful: countsAsSuccess,
	})

	if logger == nil {
		logger = slog.Default()
	}

	return &Reducer{
		session: session,
		cfg:     cfg,
		circuit: cb,
		logger:  logger.With("component", "reducer"),
	}
}

// Reduce evaluates the spatial mean for q. It never returns an error: every
// failure becomes a monitor.Result with StatusNoData or StatusFailed.
func (r *Reducer) Reduce(ctx context.Context, run monitor.Run, q monitor.Query) monitor.Result {
	log := r.logger.With(
		"run", run.ID.String(),
		"collection", q.Dataset.Collection,
		"band", q.Dataset.Band,
		"latest", q.Latest,
	)

	expr := BuildExpression(q)

	result, err := callWithResilience(ctx, r.cfg, r.circuit, isRetryable,
		func(ctx context.Context) (any, error) {
			return r.session.ComputeValue(ctx, expr)
		})
	if err != nil {
		if isNoData(err) {
			log.Info("reduction produced no data", "reason", err)
			return monitor.NoData()
		}
		log.Warn("reduction failed", "error", err)
		return monitor.Failed(err)
	}

	bands, err := parseBands(result)
	if err != nil {
		log.Warn("reduction returned an unexpected payload", "error", err)
		return monitor.Failed(err)
	}

	res := monitor.Values(bands)
	if res.Status == monitor.StatusNoData {
		log.Info("reduction produced no data", "reason", "empty result")
	} else {
		log.Debug("reduction succeeded", "bands", len(bands))
	}
	return res
}

// countsAsSuccess keeps empty-collection replies from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil || isNoData(err)
}

// parseBands converts the reduceRegion dictionary into band values.
// Null band values stay nil.
func parseBands(result any) (map[string]*float64, error) {
	if result == nil {
		return nil, nil
	}
	dict, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a dictionary, got %T", result)
	}

	bands := make(map[string]*float64, len(dict))
	for name, raw := range dict {
		switch v := raw.(type) {
		case nil:
			bands[name] = nil
		case float64:
			f := v
			bands[name] = &f
		default:
			return nil, fmt.Errorf("band %q: expected a number, got %T", name, raw)
		}
	}
	return bands, nil
}
