package engine

import (
	"context"

	"meeple/internal/deps"
	"meeple/internal/hashcache"
)

// HashConfig reports the active fingerprint configuration.
type HashConfig struct {
	Algorithm string
	Version   string
	Bits      int
}

// Health is the operator-facing status surface.
type Health struct {
	Tools []deps.Status

	InFlight   int
	Limit      int
	QueueDepth int

	Hash  HashConfig
	Cache hashcache.Stats
}

// Ready reports whether at least one extraction path is available. The
// in-process renderer needs no external binaries, so extraction is always
// possible; Ready is false only when a required tool is missing.
func (h Health) Ready() bool {
	for _, tool := range h.Tools {
		if !tool.Available && !tool.Optional {
			return false
		}
	}
	return true
}

// Health checks external tool availability and reports engine load and
// configuration.
func (e *Engine) Health(ctx context.Context) Health {
	health := Health{
		Tools:      deps.CheckBinaries(deps.Requirements(e.cfg)),
		InFlight:   e.governor.InFlight(),
		Limit:      e.governor.Limit(),
		QueueDepth: e.governor.QueueDepth(),
		Hash: HashConfig{
			Algorithm: e.cfg.Hash.Algorithm,
			Version:   e.cfg.Hash.Version,
			Bits:      e.cfg.Hash.Bits,
		},
	}
	if e.cache.Enabled() {
		if stats, err := e.cache.Snapshot(ctx); err == nil {
			health.Cache = stats
		}
	}
	return health
}
