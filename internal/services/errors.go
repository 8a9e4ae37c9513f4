package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the extraction and matching pipeline. Callers classify
// failures with errors.Is against these markers; Wrap attaches stage context
// without losing the marker.
var (
	// Input admission.
	ErrInvalidSignature = errors.New("invalid pdf signature")
	ErrFileTooLarge     = errors.New("file too large")

	// Subprocess layer.
	ErrToolNotFound     = errors.New("tool not found")
	ErrToolTimeout      = errors.New("tool timeout")
	ErrToolCrashed      = errors.New("tool crashed")
	ErrResourceExceeded = errors.New("resource budget exceeded")

	// Extraction outcome.
	ErrExtractionFailed = errors.New("extraction failed")
	ErrDecodeFailed     = errors.New("image decode failed")

	// Hash comparison.
	ErrIncompatibleHash = errors.New("incompatible hash")

	// Concurrency governor.
	ErrJobTimeout = errors.New("job timeout")
	ErrOverloaded = errors.New("overloaded")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExtractionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Terminal reports whether an error aborts the whole job rather than a single
// backend attempt or a single image. Per-backend and per-image failures are
// recovered locally by the orchestrator.
func Terminal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrExtractionFailed),
		errors.Is(err, ErrJobTimeout),
		errors.Is(err, ErrOverloaded):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
