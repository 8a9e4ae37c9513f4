package engine

import (
	"sort"
	"sync"
	"time"

	"meeple/internal/extraction"
)

const latencyWindowSize = 256

// stats aggregates counters across jobs. Hash latencies are kept in a
// bounded ring so percentile reads never grow with process lifetime.
type stats struct {
	mu sync.Mutex

	jobs          int64
	jobFailures   int64
	lowConfidence int64
	cacheHits     int64
	cacheMisses   int64

	attempts map[extraction.Origin]int64
	failures map[extraction.Origin]int64

	latencies [latencyWindowSize]time.Duration
	latencyN  int
	latencyAt int
}

func newStats() *stats {
	return &stats{
		attempts: make(map[extraction.Origin]int64),
		failures: make(map[extraction.Origin]int64),
	}
}

func (s *stats) recordJob(failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs++
	if failed {
		s.jobFailures++
	}
}

func (s *stats) recordAttempts(attempts []extraction.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range attempts {
		s.attempts[a.Backend]++
		if a.Outcome == extraction.OutcomeRecoverable {
			s.failures[a.Backend]++
		}
	}
}

func (s *stats) recordHashLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[s.latencyAt] = d
	s.latencyAt = (s.latencyAt + 1) % latencyWindowSize
	if s.latencyN < latencyWindowSize {
		s.latencyN++
	}
}

func (s *stats) recordLowConfidence(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lowConfidence += int64(n)
}

func (s *stats) recordCache(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.cacheHits++
	} else {
		s.cacheMisses++
	}
}

// BackendStats counts sandbox attempts per backend.
type BackendStats struct {
	Attempts int64
	Failures int64
}

// Stats is a point-in-time snapshot of engine activity.
type Stats struct {
	Jobs          int64
	JobFailures   int64
	LowConfidence int64
	CacheHits     int64
	CacheMisses   int64

	Backends map[extraction.Origin]BackendStats

	HashSamples    int
	HashLatencyP50 time.Duration
	HashLatencyP95 time.Duration
}

func (s *stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{
		Jobs:          s.jobs,
		JobFailures:   s.jobFailures,
		LowConfidence: s.lowConfidence,
		CacheHits:     s.cacheHits,
		CacheMisses:   s.cacheMisses,
		Backends:      make(map[extraction.Origin]BackendStats, len(s.attempts)),
		HashSamples:   s.latencyN,
	}
	for origin, n := range s.attempts {
		out.Backends[origin] = BackendStats{Attempts: n, Failures: s.failures[origin]}
	}
	if s.latencyN > 0 {
		window := make([]time.Duration, s.latencyN)
		copy(window, s.latencies[:s.latencyN])
		sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
		out.HashLatencyP50 = percentile(window, 50)
		out.HashLatencyP95 = percentile(window, 95)
	}
	return out
}

// percentile uses nearest-rank on an already sorted window.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
