// Package engine is the top-level entry point: it admits a job through the
// governor, extracts images, fingerprints them (through the cache when one
// is configured), and classifies the result against the caller's expected
// component list.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meeple/internal/config"
	"meeple/internal/extraction"
	"meeple/internal/governor"
	"meeple/internal/hashcache"
	"meeple/internal/imagehash"
	"meeple/internal/logging"
	"meeple/internal/match"
	"meeple/internal/services"
)

// ComponentSpec describes one expected piece by reference images on disk.
// Reference hashes are computed under the engine's configured algorithm, so
// specs stay valid across an algorithm migration.
type ComponentSpec struct {
	Name                string
	ExpectedQuantity    int
	ConfidenceThreshold float64
	ReferencePaths      []string
}

// RunOptions tunes one ExtractAndMatch call.
type RunOptions struct {
	// AllBackends runs every extraction backend over every page. Used for
	// algorithm comparison runs.
	AllBackends bool
	// Algorithm and Version override the configured hash selection when
	// set.
	Algorithm string
	Version   string
}

// Outcome is the full result of one job.
type Outcome struct {
	JobID    string
	Images   []extraction.Image
	Attempts []extraction.Attempt
	Report   match.Report
}

// Engine wires the pipeline together. Construct with New; the zero value is
// not usable.
type Engine struct {
	cfg          *config.Config
	governor     *governor.Governor
	orchestrator *extraction.Orchestrator
	cache        *hashcache.Cache
	logger       *slog.Logger
	stats        *stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logging.NewComponentLogger(logger, "engine")
		}
	}
}

// WithOrchestrator overrides the extraction orchestrator (tests).
func WithOrchestrator(o *extraction.Orchestrator) Option {
	return func(e *Engine) {
		if o != nil {
			e.orchestrator = o
		}
	}
}

// WithCache attaches a hash cache. Without one, every hash is computed
// fresh.
func WithCache(cache *hashcache.Cache) Option {
	return func(e *Engine) {
		if cache != nil {
			e.cache = cache
		}
	}
}

// New constructs an Engine from configuration.
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	e := &Engine{
		cfg:      cfg,
		governor: governor.New(cfg),
		logger:   logging.NewNop(),
		stats:    newStats(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.orchestrator == nil {
		e.orchestrator = extraction.New(cfg, extraction.WithLogger(e.logger))
	}
	return e
}

// Stats returns a snapshot of cumulative engine counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// ExtractAndMatch runs the full pipeline for one PDF. The job's temp
// workspace is reaped before return on every path: success, failure,
// timeout, and cancellation.
func (e *Engine) ExtractAndMatch(ctx context.Context, pdfPath string, specs []ComponentSpec, opts RunOptions) (*Outcome, error) {
	if len(specs) == 0 {
		return nil, errors.New("at least one component required")
	}
	algorithm, version, err := e.resolveAlgorithm(opts)
	if err != nil {
		return nil, err
	}
	components, err := e.resolveComponents(ctx, specs, algorithm, version)
	if err != nil {
		return nil, err
	}

	var outcome *Outcome
	err = e.governor.Execute(ctx, func(jobCtx context.Context) error {
		ws, err := extraction.AcquireWorkspace(e.cfg.Paths.WorkDir)
		if err != nil {
			return fmt.Errorf("acquire workspace: %w", err)
		}
		defer func() {
			if releaseErr := ws.Release(); releaseErr != nil {
				e.logger.Warn("workspace reap failed",
					logging.String(logging.FieldJobID, ws.JobID),
					logging.Error(releaseErr),
				)
			}
		}()

		jobCtx = services.WithJobID(jobCtx, ws.JobID)
		logger := logging.WithContext(jobCtx, e.logger)
		started := time.Now()

		images, attempts, err := e.orchestrator.Extract(jobCtx, pdfPath, ws, extraction.RunOptions{AllBackends: opts.AllBackends})
		e.stats.recordAttempts(attempts)
		if err != nil {
			return err
		}

		candidates, err := e.hashImages(jobCtx, images, algorithm, version)
		if err != nil {
			return err
		}

		report, err := match.Classify(candidates, components, e.policy())
		if err != nil {
			return err
		}
		e.stats.recordLowConfidence(len(report.LowConfidence))

		logger.Info("job complete",
			logging.Int("images", len(images)),
			logging.Int("low_confidence", len(report.LowConfidence)),
			logging.Duration("elapsed", time.Since(started)),
		)
		outcome = &Outcome{
			JobID:    ws.JobID,
			Images:   images,
			Attempts: attempts,
			Report:   report,
		}
		return nil
	})
	e.stats.recordJob(err != nil)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Hash fingerprints one image file, consulting the cache when configured.
func (e *Engine) Hash(ctx context.Context, imagePath, algorithm, version string) (imagehash.Hash, error) {
	if algorithm == "" {
		algorithm = e.cfg.Hash.Algorithm
	}
	return e.hashFile(ctx, imagePath, algorithm, version)
}

func (e *Engine) resolveAlgorithm(opts RunOptions) (string, string, error) {
	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = e.cfg.Hash.Algorithm
	}
	version := opts.Version
	if version == "" {
		if current, ok := imagehash.CurrentVersion(algorithm); ok {
			version = current
		} else {
			return "", "", fmt.Errorf("unknown hash algorithm %q", algorithm)
		}
	}
	return algorithm, version, nil
}

func (e *Engine) resolveComponents(ctx context.Context, specs []ComponentSpec, algorithm, version string) ([]match.Component, error) {
	components := make([]match.Component, 0, len(specs))
	for _, spec := range specs {
		if len(spec.ReferencePaths) == 0 {
			return nil, fmt.Errorf("component %q has no reference images", spec.Name)
		}
		refs := make([]imagehash.Hash, 0, len(spec.ReferencePaths))
		for _, path := range spec.ReferencePaths {
			hash, err := e.hashFile(ctx, path, algorithm, version)
			if err != nil {
				return nil, fmt.Errorf("reference %s: %w", path, err)
			}
			refs = append(refs, hash)
		}
		components = append(components, match.Component{
			Name:                spec.Name,
			ExpectedQuantity:    spec.ExpectedQuantity,
			ConfidenceThreshold: spec.ConfidenceThreshold,
			ReferenceHashes:     refs,
		})
	}
	return components, nil
}

func (e *Engine) hashImages(ctx context.Context, images []extraction.Image, algorithm, version string) ([]match.Candidate, error) {
	candidates := make([]match.Candidate, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hash, err := e.hashFile(ctx, img.Path, algorithm, version)
		if err != nil {
			return nil, fmt.Errorf("hash page %d (%s): %w", img.SourcePage, img.Origin, err)
		}
		candidates = append(candidates, match.Candidate{
			SourcePage: img.SourcePage,
			Origin:     string(img.Origin),
			Path:       img.Path,
			Hash:       hash,
		})
	}
	return candidates, nil
}

func (e *Engine) hashFile(ctx context.Context, path, algorithm, version string) (imagehash.Hash, error) {
	var digest string
	if e.cache.Enabled() {
		d, err := hashcache.FileDigest(path)
		if err != nil {
			return imagehash.Hash{}, err
		}
		digest = d
		if version != "" {
			if hash, ok, err := e.cache.Get(ctx, digest, algorithm, version); err != nil {
				return imagehash.Hash{}, err
			} else if ok {
				e.stats.recordCache(true)
				return hash, nil
			}
		}
		e.stats.recordCache(false)
	}

	started := time.Now()
	hash, err := imagehash.ComputeFile(path, algorithm, version)
	if err != nil {
		return imagehash.Hash{}, err
	}
	e.stats.recordHashLatency(time.Since(started))

	if e.cache.Enabled() {
		if err := e.cache.Put(ctx, digest, hash); err != nil {
			// Cache writes are best effort.
			e.logger.Warn("cache store failed", logging.Error(err))
		}
	}
	return hash, nil
}

func (e *Engine) policy() match.Policy {
	return match.Policy{
		DefaultThreshold:  e.cfg.Matching.DefaultConfidenceThreshold,
		LowConfidenceBand: e.cfg.Matching.LowConfidenceBand,
	}
}
