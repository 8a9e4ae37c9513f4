// Package migrate compares two hash algorithm versions over one image set so
// an operator can see what a default-algorithm switch would change before
// committing to it. It never writes anything: the output is a report.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"

	"meeple/internal/extraction"
	"meeple/internal/imagehash"
	"meeple/internal/logging"
	"meeple/internal/match"
)

// AlgorithmPair names one hash implementation to evaluate.
type AlgorithmPair struct {
	Algorithm string
	Version   string
}

func (p AlgorithmPair) String() string {
	version := p.Version
	if version == "" {
		if current, ok := imagehash.CurrentVersion(p.Algorithm); ok {
			version = current
		}
	}
	return p.Algorithm + "/" + version
}

// Component describes one expected piece by its reference images. Reference
// hashes are recomputed under each algorithm, so references are supplied as
// image paths rather than stored fingerprints.
type Component struct {
	Name                string
	ExpectedQuantity    int
	ConfidenceThreshold float64
	ReferencePaths      []string
}

// Request is one side-by-side comparison run.
type Request struct {
	Images     []extraction.Image
	Components []Component
	Current    AlgorithmPair
	Candidate  AlgorithmPair
	Policy     match.Policy
}

// Change records one image whose outcome differs between the two algorithms.
type Change struct {
	SourcePage int
	Origin     extraction.Origin
	Path       string

	FromStatus    match.Status
	ToStatus      match.Status
	FromComponent string
	ToComponent   string

	// ConfidenceDelta is candidate confidence minus current confidence for
	// this image's best assignment.
	ConfidenceDelta float64
}

// Report holds both classification passes and their diff.
type Report struct {
	Current   AlgorithmPair
	Candidate AlgorithmPair

	CurrentResults   []match.Result
	CandidateResults []match.Result

	// Changes lists images whose status or assigned component differ,
	// in extraction order.
	Changes   []Change
	Unchanged int
}

// Coordinator runs comparison passes. It holds no state between runs.
type Coordinator struct {
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "migrate")
		}
	}
}

// New constructs a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare hashes the image set and every component reference under both
// algorithm pairs, classifies twice with identical policy, and diffs the
// outcomes. Results come back in the input image order, so the two passes
// pair up index by index.
func (c *Coordinator) Compare(req Request) (*Report, error) {
	if len(req.Images) == 0 {
		return nil, errors.New("no images to compare")
	}
	if req.Current.Algorithm == "" || req.Candidate.Algorithm == "" {
		return nil, errors.New("both algorithm pairs must be set")
	}
	if req.Current == req.Candidate {
		return nil, fmt.Errorf("comparing %s against itself", req.Current)
	}

	currentResults, err := c.classifyUnder(req, req.Current)
	if err != nil {
		return nil, fmt.Errorf("current pass (%s): %w", req.Current, err)
	}
	candidateResults, err := c.classifyUnder(req, req.Candidate)
	if err != nil {
		return nil, fmt.Errorf("candidate pass (%s): %w", req.Candidate, err)
	}

	report := &Report{
		Current:          req.Current,
		Candidate:        req.Candidate,
		CurrentResults:   currentResults,
		CandidateResults: candidateResults,
	}
	for i := range currentResults {
		cur, cand := currentResults[i], candidateResults[i]
		if cur.Status == cand.Status && cur.Component == cand.Component {
			report.Unchanged++
			continue
		}
		report.Changes = append(report.Changes, Change{
			SourcePage:      cur.Candidate.SourcePage,
			Origin:          extraction.Origin(cur.Candidate.Origin),
			Path:            cur.Candidate.Path,
			FromStatus:      cur.Status,
			ToStatus:        cand.Status,
			FromComponent:   cur.Component,
			ToComponent:     cand.Component,
			ConfidenceDelta: cand.Confidence - cur.Confidence,
		})
	}

	c.logger.Info("comparison complete",
		logging.String("current", req.Current.String()),
		logging.String("candidate", req.Candidate.String()),
		logging.Int("images", len(req.Images)),
		logging.Int("changed", len(report.Changes)),
	)
	return report, nil
}

func (c *Coordinator) classifyUnder(req Request, pair AlgorithmPair) ([]match.Result, error) {
	components := make([]match.Component, 0, len(req.Components))
	for _, comp := range req.Components {
		if len(comp.ReferencePaths) == 0 {
			return nil, fmt.Errorf("component %q has no reference images", comp.Name)
		}
		refs := make([]imagehash.Hash, 0, len(comp.ReferencePaths))
		for _, path := range comp.ReferencePaths {
			hash, err := imagehash.ComputeFile(path, pair.Algorithm, pair.Version)
			if err != nil {
				return nil, fmt.Errorf("reference %s: %w", path, err)
			}
			refs = append(refs, hash)
		}
		components = append(components, match.Component{
			Name:                comp.Name,
			ExpectedQuantity:    comp.ExpectedQuantity,
			ConfidenceThreshold: comp.ConfidenceThreshold,
			ReferenceHashes:     refs,
		})
	}

	candidates := make([]match.Candidate, 0, len(req.Images))
	for _, img := range req.Images {
		hash, err := imagehash.ComputeFile(img.Path, pair.Algorithm, pair.Version)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", img.Path, err)
		}
		candidates = append(candidates, match.Candidate{
			SourcePage: img.SourcePage,
			Origin:     string(img.Origin),
			Path:       img.Path,
			Hash:       hash,
		})
	}

	report, err := match.Classify(candidates, components, req.Policy)
	if err != nil {
		return nil, err
	}
	return report.Results, nil
}
