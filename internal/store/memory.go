package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

var (
	// ErrNotFound is returned when no run has been recorded yet, or none in range.
	ErrNotFound = errors.New("no monitoring report available")
)

// MemoryStore is a concurrency-safe in-memory store of recent run reports.
type MemoryStore struct {
	mu sync.RWMutex

	reports []monitor.Report // oldest first

	// retention configuration
	maxReports int           // max number of reports kept
	maxAge     time.Duration // optional max age for reports
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxReports is <= 0, it is treated as unlimited.
func NewMemoryStore(maxReports int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxReports: maxReports,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveReport appends a report and enforces retention.
func (s *MemoryStore) SaveReport(report monitor.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, report)

	// Enforce retention by count.
	if s.maxReports > 0 && len(s.reports) > s.maxReports {
		over := len(s.reports) - s.maxReports
		s.reports = s.reports[over:]
	}

	// Enforce retention by age; the newest report is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.reports)-1; i++ {
			if !s.reports[i].StartedAt.Before(cutoff) {
				break
			}
		}
		s.reports = s.reports[i:]
	}
}

// GetLatest returns the most recent report.
func (s *MemoryStore) GetLatest() (monitor.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.reports) == 0 {
		return monitor.Report{}, ErrNotFound
	}
	return s.reports[len(s.reports)-1], nil
}

// GetRange returns all reports started between from and to (inclusive).
func (s *MemoryStore) GetRange(from, to time.Time) ([]monitor.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []monitor.Report
	for _, r := range s.reports {
		if !r.StartedAt.Before(from) && !r.StartedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
