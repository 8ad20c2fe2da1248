package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

type countingRunner struct {
	mu        sync.Mutex
	calls     int
	deadlines []bool
}

func (r *countingRunner) Run(ctx context.Context) (monitor.Report, error) {
	_, ok := ctx.Deadline()
	r.mu.Lock()
	r.calls++
	r.deadlines = append(r.deadlines, ok)
	r.mu.Unlock()
	return monitor.Report{}, nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestScheduler_IntervalRunsImmediately(t *testing.T) {
	runner := &countingRunner{}
	s := New(Config{Interval: time.Hour, Timeout: time.Minute}, runner, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	assert.Eventually(t, func() bool { return runner.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []bool{true}, runner.deadlines)
}

func TestScheduler_InvalidCron(t *testing.T) {
	s := New(Config{Cron: "every now and then"}, &countingRunner{}, nil)

	assert.Error(t, s.Start())
	s.Stop()
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{}, &countingRunner{}, nil)

	assert.Equal(t, defaultInterval, s.cfg.Interval)
	assert.Equal(t, defaultTimeout, s.cfg.Timeout)
}
