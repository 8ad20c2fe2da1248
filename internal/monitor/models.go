package monitor

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the UTC timestamp format written into every document.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Site is the fixed point we monitor, buffered into a query region.
// A Site is never mutated after construction.
type Site struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	BufferM float64 `json:"bufferMeters"`
}

// DefaultSite is Monterrey, MX with a 20 km buffer.
var DefaultSite = Site{
	Name:    "Monterrey",
	Lat:     25.6866,
	Lon:     -100.3161,
	BufferM: 20000,
}

// Run carries the per-run context threaded through the builders.
type Run struct {
	ID  uuid.UUID
	Now time.Time // always UTC, captured at run start
}

// NewRun starts a run at now.
func NewRun(now time.Time) Run {
	return Run{ID: uuid.New(), Now: now.UTC()}
}

// Reading is the "current" document. Nil values encode as JSON null.
type Reading struct {
	Timestamp    string   `json:"timestamp_utc"`
	PM25         *float64 `json:"pm25_ugm3"`
	TemperatureC *float64 `json:"temperature_c"`
}

// AnnualAggregate is a 365-day mean of one tracked variable.
type AnnualAggregate struct {
	Metric    string
	Value     *float64
	Dataset   string
	Generated string
}

// MarshalJSON writes the aggregate as {<metric>: value, dataset, generated_utc}.
func (a AnnualAggregate) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range []struct {
		key string
		val any
	}{
		{a.Metric, a.Value},
		{"dataset", a.Dataset},
		{"generated_utc", a.Generated},
	} {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.val)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON is the inverse of MarshalJSON. The metric key is whichever
// key is not dataset or generated_utc.
func (a *AnnualAggregate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case "dataset":
			if err := json.Unmarshal(v, &a.Dataset); err != nil {
				return err
			}
		case "generated_utc":
			if err := json.Unmarshal(v, &a.Generated); err != nil {
				return err
			}
		default:
			a.Metric = k
			if err := json.Unmarshal(v, &a.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// HistoryEntry is one element of history.json.
type HistoryEntry struct {
	TS   string   `json:"ts"`
	PM25 *float64 `json:"pm25"`
	Temp *float64 `json:"temp"`
}

// EntryFromReading derives the ledger triple from a Reading.
func EntryFromReading(r Reading) HistoryEntry {
	return HistoryEntry{
		TS:   r.Timestamp,
		PM25: r.PM25,
		Temp: r.TemperatureC,
	}
}

// Document is one JSON file published per run.
type Document struct {
	Name string // local file name, e.g. current.json
	Path string // path in the remote repository
	Body any
}

// PublishAction is what happened to one document during publishing.
type PublishAction string

const (
	ActionUpdated PublishAction = "updated"
	ActionCreated PublishAction = "created"
	ActionSkipped PublishAction = "skipped"
	ActionFailed  PublishAction = "failed"
)

// Outcome is the per-document publishing result.
type Outcome struct {
	Path   string        `json:"path"`
	Action PublishAction `json:"action"`
	Error  string        `json:"error,omitempty"`
}

// Report is the full result of one run.
type Report struct {
	RunID      uuid.UUID       `json:"runId"`
	StartedAt  time.Time       `json:"startedAt"` // always UTC
	Current    Reading         `json:"current"`
	AnnualPM25 AnnualAggregate `json:"annualPm25"`
	AnnualTemp AnnualAggregate `json:"annualTemperature"`
	History    []HistoryEntry  `json:"history"`
	Outcomes   []Outcome       `json:"outcomes,omitempty"`
}

// Failed counts documents that could not be published.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == ActionFailed {
			n++
		}
	}
	return n
}
