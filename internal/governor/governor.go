// Package governor bounds how many extraction jobs run at once and enforces
// the per-job deadline. Admission beyond the limit either queues in FIFO
// order or fails fast, depending on configuration.
package governor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"meeple/internal/config"
	"meeple/internal/logging"
	"meeple/internal/services"
)

// Governor is safe for concurrent use.
type Governor struct {
	slots      chan struct{}
	policy     string
	jobTimeout time.Duration
	logger     *slog.Logger

	inFlight atomic.Int64
	queued   atomic.Int64
	admitted atomic.Int64
	rejected atomic.Int64
	timedOut atomic.Int64
}

// Option configures a Governor.
type Option func(*Governor)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) {
		if logger != nil {
			g.logger = logging.NewComponentLogger(logger, "governor")
		}
	}
}

// New builds a Governor from configuration. Limits below one are raised to
// one so a misconfigured governor can never deadlock every job.
func New(cfg *config.Config, opts ...Option) *Governor {
	limit := cfg.Governor.MaxConcurrentExtractions
	if limit < 1 {
		limit = 1
	}
	timeout := time.Duration(cfg.Extraction.JobTimeoutSeconds) * time.Second
	g := &Governor{
		slots:      make(chan struct{}, limit),
		policy:     cfg.Governor.Policy,
		jobTimeout: timeout,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Limit reports the configured slot count.
func (g *Governor) Limit() int {
	return cap(g.slots)
}

// InFlight reports how many jobs currently hold a slot.
func (g *Governor) InFlight() int {
	return int(g.inFlight.Load())
}

// QueueDepth reports how many callers are waiting for a slot.
func (g *Governor) QueueDepth() int {
	return int(g.queued.Load())
}

// Counters is a point-in-time snapshot for the health surface.
type Counters struct {
	Admitted int64
	Rejected int64
	TimedOut int64
}

// Snapshot returns cumulative admission counters.
func (g *Governor) Snapshot() Counters {
	return Counters{
		Admitted: g.admitted.Load(),
		Rejected: g.rejected.Load(),
		TimedOut: g.timedOut.Load(),
	}
}

// Execute runs job under a slot and the per-job deadline. Under the queue
// policy the call blocks until a slot frees or ctx is done; under fail-fast
// it returns ErrOverloaded immediately when all slots are busy. A deadline
// overrun surfaces as ErrJobTimeout after the job observes cancellation and
// returns.
func (g *Governor) Execute(ctx context.Context, job func(context.Context) error) error {
	if job == nil {
		return errors.New("job required")
	}

	if err := g.acquire(ctx); err != nil {
		return err
	}
	g.inFlight.Add(1)
	g.admitted.Add(1)
	defer func() {
		g.inFlight.Add(-1)
		<-g.slots
	}()

	jobCtx := ctx
	cancel := context.CancelFunc(func() {})
	if g.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, g.jobTimeout)
	}
	defer cancel()

	err := job(jobCtx)
	if jobCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		g.timedOut.Add(1)
		g.logger.Warn("job deadline exceeded",
			logging.Duration("timeout", g.jobTimeout),
		)
		return services.Wrap(services.ErrJobTimeout, "governor", "execute", "job exceeded deadline", err)
	}
	return err
}

func (g *Governor) acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	default:
	}

	if g.policy == config.GovernorPolicyFailFast {
		g.rejected.Add(1)
		return services.Wrap(services.ErrOverloaded, "governor", "admit", "all extraction slots busy", nil)
	}

	g.queued.Add(1)
	defer g.queued.Add(-1)
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		g.rejected.Add(1)
		return ctx.Err()
	}
}
