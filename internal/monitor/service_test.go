package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	entries []HistoryEntry
	err     error
}

func (l *fakeLedger) Append(e HistoryEntry) ([]HistoryEntry, error) {
	l.entries = append(l.entries, e)
	return append([]HistoryEntry(nil), l.entries...), l.err
}

type fakePublisher struct {
	docs []Document
}

func (p *fakePublisher) Publish(_ context.Context, _ Run, docs []Document) []Outcome {
	p.docs = docs
	out := make([]Outcome, len(docs))
	for i, d := range docs {
		out[i] = Outcome{Path: d.Path, Action: ActionUpdated}
	}
	out[0].Action = ActionFailed
	return out
}

type fakeNotifier struct {
	got []Reading
	err error
}

func (n *fakeNotifier) NotifyCurrent(_ context.Context, r Reading) error {
	n.got = append(n.got, r)
	return n.err
}

type fakeReports struct {
	saved []Report
}

func (s *fakeReports) SaveReport(r Report) { s.saved = append(s.saved, r) }

func TestService_Run(t *testing.T) {
	pm := 1.0e-8
	reducer := &fakeReducer{results: map[string]Result{
		PM25.Collection: Values(map[string]*float64{PM25.Band: &pm}),
	}}
	ledger := &fakeLedger{}
	pub := &fakePublisher{}
	notifier := &fakeNotifier{err: errors.New("broker down")}
	reports := &fakeReports{}

	svc := NewService(reducer, ledger, pub, DefaultSite, 0,
		WithClock(func() time.Time { return testNow }),
		WithNotifier(notifier),
		WithReportStore(reports),
	)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	// Snapshot (2 queries) plus two annual aggregates.
	require.Len(t, reducer.queries, 4)
	for _, q := range reducer.queries {
		assert.Equal(t, float64(DefaultScale), q.Scale)
	}

	require.Len(t, pub.docs, 4)
	assert.Equal(t, []string{
		"data/current.json",
		"data/annual_pm25.json",
		"data/annual_temperature.json",
		"data/history.json",
	}, []string{pub.docs[0].Path, pub.docs[1].Path, pub.docs[2].Path, pub.docs[3].Path})
	assert.Equal(t, "current.json", pub.docs[0].Name)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, EntryFromReading(report.Current), ledger.entries[0])
	assert.Equal(t, report.History, pub.docs[3].Body)

	assert.Equal(t, FormatTimestamp(testNow), report.Current.Timestamp)
	require.NotNil(t, report.Current.PM25)
	assert.Nil(t, report.Current.TemperatureC)
	assert.Equal(t, "pm25_ugm3", report.AnnualPM25.Metric)
	assert.Equal(t, "temperature_c", report.AnnualTemp.Metric)
	assert.Equal(t, 1, report.Failed())

	assert.Len(t, notifier.got, 1)
	require.Len(t, reports.saved, 1)
	assert.Equal(t, report.RunID, reports.saved[0].RunID)
}

func TestService_RunContinuesWhenHistoryNotPersisted(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("disk full")}
	pub := &fakePublisher{}
	svc := NewService(&fakeReducer{}, ledger, pub, DefaultSite, DefaultScale)

	report, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, report.History, 1)
	assert.Len(t, pub.docs, 4)
}

func TestService_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub := &fakePublisher{}
	svc := NewService(&fakeReducer{}, &fakeLedger{}, pub, DefaultSite, DefaultScale)

	_, err := svc.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, pub.docs)
}
