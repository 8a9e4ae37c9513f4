package engine

import (
	"testing"
	"time"
)

func TestPercentileNearestRank(t *testing.T) {
	window := make([]time.Duration, 100)
	for i := range window {
		window[i] = time.Duration(i+1) * time.Millisecond
	}
	if got := percentile(window, 50); got != 50*time.Millisecond {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(window, 95); got != 95*time.Millisecond {
		t.Fatalf("p95 = %v", got)
	}
	if got := percentile(window[:1], 95); got != 1*time.Millisecond {
		t.Fatalf("single sample p95 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty window p50 = %v", got)
	}
}

func TestLatencyWindowIsBounded(t *testing.T) {
	s := newStats()
	for i := 0; i < latencyWindowSize*3; i++ {
		s.recordHashLatency(time.Duration(i) * time.Microsecond)
	}
	snap := s.snapshot()
	if snap.HashSamples != latencyWindowSize {
		t.Fatalf("samples = %d, want %d", snap.HashSamples, latencyWindowSize)
	}
	// Only the most recent window survives; the smallest retained sample is
	// from the final two window-spans.
	if snap.HashLatencyP50 < time.Duration(latencyWindowSize)*time.Microsecond {
		t.Fatalf("p50 %v includes evicted samples", snap.HashLatencyP50)
	}
}
