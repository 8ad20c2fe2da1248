package monitor

import (
	"context"
	"sort"
	"time"
)

// Status classifies the outcome of one spatial reduction.
type Status int

const (
	// StatusValue means the reduction produced at least one band value.
	StatusValue Status = iota
	// StatusNoData means the call succeeded but there was nothing to average.
	StatusNoData
	// StatusFailed means the remote call itself failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusValue:
		return "value"
	case StatusNoData:
		return "no-data"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what a Reducer hands back. Bands is only set for StatusValue.
type Result struct {
	Status Status
	Bands  map[string]*float64
	Err    error
}

// Values wraps a band mapping. An empty mapping is NoData.
func Values(bands map[string]*float64) Result {
	if len(bands) == 0 {
		return NoData()
	}
	return Result{Status: StatusValue, Bands: bands}
}

// NoData is the explicit absent marker.
func NoData() Result {
	return Result{Status: StatusNoData}
}

// Failed records a reduction error.
func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Band returns the value for band, falling back to the first band in name
// order when the requested band is not present. Nil for non-value results.
func (r Result) Band(band string) *float64 {
	if r.Status != StatusValue {
		return nil
	}
	if v, ok := r.Bands[band]; ok {
		return v
	}
	keys := make([]string, 0, len(r.Bands))
	for k := range r.Bands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return nil
	}
	return r.Bands[keys[0]]
}

// Query describes one spatial mean over a dataset.
// When Latest is set, From/To are ignored and only the most recent image is used.
type Query struct {
	Dataset Dataset
	Site    Site
	From    time.Time
	To      time.Time
	Latest  bool
	Scale   float64 // meters
}

// Reducer computes spatial means. Implementations never return errors;
// failures come back as StatusFailed results.
type Reducer interface {
	Reduce(ctx context.Context, run Run, q Query) Result
}

// HistoryLedger is the bounded rolling log of readings.
type HistoryLedger interface {
	Append(entry HistoryEntry) ([]HistoryEntry, error)
}

// Publisher writes documents locally and upserts them remotely.
// Failures are reported per document, never as a whole.
type Publisher interface {
	Publish(ctx context.Context, run Run, docs []Document) []Outcome
}

// Notifier is an optional sink for the current reading.
type Notifier interface {
	NotifyCurrent(ctx context.Context, r Reading) error
}

// ReportStore keeps recent run reports for the HTTP API.
type ReportStore interface {
	SaveReport(report Report)
}
