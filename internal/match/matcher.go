package match

import (
	"errors"
	"fmt"
	"strings"

	"meeple/internal/imagehash"
)

// Component is an expected physical game piece the caller wants located.
type Component struct {
	Name             string
	ExpectedQuantity int
	// ConfidenceThreshold overrides the policy default when set in (0,1].
	ConfidenceThreshold float64
	// ReferenceHashes are fingerprints of known-good images of the piece.
	ReferenceHashes []imagehash.Hash
}

// Candidate is one extracted image as presented to the matcher.
type Candidate struct {
	SourcePage int
	Origin     string
	Path       string
	Hash       imagehash.Hash
}

// Status classifies the outcome of matching one candidate.
type Status string

const (
	StatusMatched       Status = "matched"
	StatusLowConfidence Status = "low-confidence"
	StatusUnmatched     Status = "unmatched"
)

// Result records the best classification for one candidate.
type Result struct {
	Candidate       Candidate
	Component       string
	HammingDistance int
	Confidence      float64
	Status          Status
}

// Report is the matcher output for one extraction run.
type Report struct {
	Results []Result
	// LowConfidence is the ordered review queue: results in the band below
	// their component's threshold, held for human disposition. The engine
	// never promotes these on its own.
	LowConfidence []Result
}

// Tally counts matched results per component name (fold-normalized).
func (r Report) Tally() map[string]int {
	tally := make(map[string]int)
	for _, res := range r.Results {
		if res.Status == StatusMatched {
			tally[NormalizeName(res.Component)]++
		}
	}
	return tally
}

// componentScore is the best distance a candidate achieved against one
// component's reference set.
type componentScore struct {
	index      int
	distance   int
	confidence float64
	scored     bool
}

// Classify compares every candidate against every component and assigns each
// candidate to the highest-confidence component above threshold. Ties break
// by lowest Hamming distance, then by component declaration order, so output
// is deterministic for identical input.
func Classify(candidates []Candidate, components []Component, policy Policy) (Report, error) {
	policy = policy.normalized()
	if err := validateComponents(components); err != nil {
		return Report{}, err
	}

	report := Report{Results: make([]Result, 0, len(candidates))}
	for _, candidate := range candidates {
		result, err := classifyOne(candidate, components, policy)
		if err != nil {
			return Report{}, err
		}
		report.Results = append(report.Results, result)
		if result.Status == StatusLowConfidence {
			report.LowConfidence = append(report.LowConfidence, result)
		}
	}
	return report, nil
}

func classifyOne(candidate Candidate, components []Component, policy Policy) (Result, error) {
	result := Result{
		Candidate:       candidate,
		Status:          StatusUnmatched,
		HammingDistance: candidate.Hash.Bits,
		Confidence:      0,
	}

	var bestMatched, bestInBand componentScore
	for i, component := range components {
		score, err := scoreComponent(candidate, component, i)
		if err != nil {
			return Result{}, err
		}
		if !score.scored {
			continue
		}
		threshold := policy.thresholdFor(component)
		switch {
		case score.confidence >= threshold:
			if better(score, bestMatched) {
				bestMatched = score
			}
		case score.confidence >= policy.reviewFloor(threshold):
			if better(score, bestInBand) {
				bestInBand = score
			}
		}
	}

	switch {
	case bestMatched.scored:
		result.Component = components[bestMatched.index].Name
		result.HammingDistance = bestMatched.distance
		result.Confidence = bestMatched.confidence
		result.Status = StatusMatched
	case bestInBand.scored:
		result.Component = components[bestInBand.index].Name
		result.HammingDistance = bestInBand.distance
		result.Confidence = bestInBand.confidence
		result.Status = StatusLowConfidence
	}
	return result, nil
}

// scoreComponent finds the closest reference hash of one component.
func scoreComponent(candidate Candidate, component Component, index int) (componentScore, error) {
	score := componentScore{index: index}
	for _, ref := range component.ReferenceHashes {
		distance, err := imagehash.Distance(candidate.Hash, ref)
		if err != nil {
			return componentScore{}, fmt.Errorf("component %q: %w", component.Name, err)
		}
		if !score.scored || distance < score.distance {
			score.distance = distance
			score.confidence = Confidence(distance, candidate.Hash.Bits)
			score.scored = true
		}
	}
	return score, nil
}

// better orders scores by confidence descending, then distance ascending,
// then declaration order. Strict comparisons keep the earliest component on
// full ties.
func better(candidate, incumbent componentScore) bool {
	if !incumbent.scored {
		return candidate.scored
	}
	if candidate.confidence != incumbent.confidence {
		return candidate.confidence > incumbent.confidence
	}
	if candidate.distance != incumbent.distance {
		return candidate.distance < incumbent.distance
	}
	return false
}

func validateComponents(components []Component) error {
	for i, c := range components {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("component %d: name must not be empty", i)
		}
		if c.ExpectedQuantity < 0 {
			return fmt.Errorf("component %q: expected quantity must not be negative", c.Name)
		}
		if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
			return fmt.Errorf("component %q: confidence threshold must be in [0,1]", c.Name)
		}
	}
	if len(components) == 0 {
		return errors.New("at least one component is required")
	}
	return nil
}
