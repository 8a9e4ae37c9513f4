// Package extraction pulls images out of PDF rulebooks through an ordered
// backend chain and returns a deduplicated, decode-validated image set.
package extraction

// Origin records which backend produced an extracted image.
type Origin string

const (
	// OriginEmbedded marks images recovered verbatim from the PDF object
	// stream, with no quality loss.
	OriginEmbedded Origin = "embedded"
	// OriginRendered marks whole pages rasterized by the external
	// renderer.
	OriginRendered Origin = "rendered"
	// OriginLibraryFallback marks pages rendered by the in-process
	// software renderer, generally lower fidelity.
	OriginLibraryFallback Origin = "library-fallback"
)

// Image is one image recovered from a PDF. Path points into the job
// workspace and is owned by the orchestrator until the caller claims it or
// the workspace is released.
type Image struct {
	SourcePage int
	Origin     Origin
	Width      int
	Height     int
	Format     string
	ByteSize   int64
	Path       string
}

// AttemptOutcome classifies one backend attempt.
type AttemptOutcome string

const (
	OutcomeSuccess     AttemptOutcome = "success"
	OutcomeRecoverable AttemptOutcome = "recoverable-failure"
	OutcomeSkipped     AttemptOutcome = "skipped"
)

// Attempt is the typed record of one backend attempt, kept for stats and
// operator triage. A recoverable failure never aborts the run on its own;
// only exhausting every backend with zero images does.
type Attempt struct {
	Backend  Origin
	Page     int // 0 for whole-document attempts
	Outcome  AttemptOutcome
	Produced int
	Detail   string
}
