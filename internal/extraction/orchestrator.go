package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"meeple/internal/config"
	"meeple/internal/logging"
	"meeple/internal/sandbox"
	"meeple/internal/services"
)

// Orchestrator drives the ordered backend chain for one PDF: embedded-object
// extraction first, page rasterization for pages the embedded pass left
// uncovered, and the in-process fallback renderer when the external
// rasterizer is unavailable or fails.
type Orchestrator struct {
	cfg    *config.Config
	runner sandbox.Runner
	pages  PageSource
	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunner overrides the sandbox runner (tests use counting fakes).
func WithRunner(runner sandbox.Runner) Option {
	return func(o *Orchestrator) {
		if runner != nil {
			o.runner = runner
		}
	}
}

// WithPageSource overrides the in-process page renderer.
func WithPageSource(pages PageSource) Option {
	return func(o *Orchestrator) {
		if pages != nil {
			o.pages = pages
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logging.NewComponentLogger(logger, "extraction")
		}
	}
}

// New constructs an Orchestrator with production defaults.
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	o := &Orchestrator{
		cfg:    cfg,
		runner: sandbox.New(),
		pages:  FitzSource{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunOptions tunes one extraction run.
type RunOptions struct {
	// AllBackends runs every backend over every page instead of stopping
	// at the first backend that covers a page. Used for side-by-side
	// comparison runs; normal extraction leaves it false.
	AllBackends bool
}

// rawFile is a produced raster before decode validation.
type rawFile struct {
	page   int
	origin Origin
	path   string
}

// Extract produces the deduplicated image set for one PDF inside the given
// workspace. Backend failures are recoverable and recorded in the attempt
// log; only zero images after exhausting every backend is an error.
func (o *Orchestrator) Extract(ctx context.Context, pdfPath string, ws *Workspace, opts RunOptions) ([]Image, []Attempt, error) {
	if ws == nil || ws.Dir == "" {
		return nil, nil, errors.New("workspace required")
	}

	if err := admit(pdfPath, o.cfg.Extraction.MaxFileSizeBytes); err != nil {
		return nil, nil, err
	}

	logger := logging.WithContext(ctx, o.logger)

	pageCount, err := o.pages.PageCount(pdfPath)
	if err != nil {
		// A PDF the software renderer cannot open may still yield to the
		// external tools; continue with an unknown page count.
		logger.Warn("page count unavailable", logging.Error(err))
		pageCount = 0
	}

	var attempts []Attempt
	var raws []rawFile

	embedded, attempt := o.runEmbedded(ctx, pdfPath, ws, opts)
	attempts = append(attempts, attempt)
	raws = append(raws, embedded...)

	covered := make(map[int]bool, len(embedded))
	for _, r := range embedded {
		covered[r.page] = true
	}

	rendered, rasterAttempts := o.runRaster(ctx, pdfPath, ws, pageCount, covered, opts)
	attempts = append(attempts, rasterAttempts...)
	raws = append(raws, rendered...)

	if err := ctx.Err(); err != nil {
		return nil, attempts, err
	}

	images := o.finalize(logger, raws)
	if len(images) == 0 {
		return nil, attempts, services.Wrap(services.ErrExtractionFailed, "extraction", "", summarize(attempts), nil)
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].SourcePage != images[j].SourcePage {
			return images[i].SourcePage < images[j].SourcePage
		}
		return images[i].Origin < images[j].Origin
	})
	return images, attempts, nil
}

// runEmbedded recovers images exactly as stored in the PDF object stream.
func (o *Orchestrator) runEmbedded(ctx context.Context, pdfPath string, ws *Workspace, opts RunOptions) ([]rawFile, Attempt) {
	attempt := Attempt{Backend: OriginEmbedded}

	if !opts.AllBackends && !declaresImageObjects(pdfPath) {
		attempt.Outcome = OutcomeSkipped
		attempt.Detail = "no image objects declared"
		return nil, attempt
	}

	res, err := o.runner.Run(services.WithBackend(ctx, string(OriginEmbedded)), sandbox.Request{
		Tool:           sandbox.ToolPdfimages,
		InputPath:      pdfPath,
		WorkDir:        ws.Dir,
		OutputPrefix:   "embedded",
		MaxOutputBytes: o.cfg.Extraction.MaxOutputBytes,
	})
	if err != nil {
		attempt.Outcome = OutcomeRecoverable
		attempt.Detail = err.Error()
		return nil, attempt
	}

	var raws []rawFile
	for _, path := range res.Produced {
		page, ok := embeddedPage(path)
		if !ok {
			continue
		}
		raws = append(raws, rawFile{page: page, origin: OriginEmbedded, path: path})
	}
	attempt.Outcome = OutcomeSuccess
	attempt.Produced = len(raws)
	return raws, attempt
}

// runRaster renders pages the embedded pass left uncovered. When the page
// count is unknown it falls back to a whole-document render, but only if the
// embedded pass produced nothing.
func (o *Orchestrator) runRaster(ctx context.Context, pdfPath string, ws *Workspace, pageCount int, covered map[int]bool, opts RunOptions) ([]rawFile, []Attempt) {
	if pageCount <= 0 {
		if len(covered) > 0 && !opts.AllBackends {
			return nil, nil
		}
		return o.rasterWholeDocument(ctx, pdfPath, ws)
	}

	var raws []rawFile
	var attempts []Attempt
	for page := 1; page <= pageCount; page++ {
		if ctx.Err() != nil {
			return raws, attempts
		}
		if covered[page] && !opts.AllBackends {
			continue
		}
		raw, pageAttempts := o.rasterPage(ctx, pdfPath, ws, page, opts)
		attempts = append(attempts, pageAttempts...)
		raws = append(raws, raw...)
	}
	return raws, attempts
}

func (o *Orchestrator) rasterPage(ctx context.Context, pdfPath string, ws *Workspace, page int, opts RunOptions) ([]rawFile, []Attempt) {
	var raws []rawFile
	var attempts []Attempt

	attempt := Attempt{Backend: OriginRendered, Page: page}
	res, err := o.runner.Run(services.WithBackend(ctx, string(OriginRendered)), sandbox.Request{
		Tool:           sandbox.ToolPdftoppm,
		InputPath:      pdfPath,
		WorkDir:        ws.Dir,
		OutputPrefix:   fmt.Sprintf("page-%03d", page),
		DPI:            o.cfg.Extraction.RasterDPI,
		FirstPage:      page,
		LastPage:       page,
		MaxOutputBytes: o.cfg.Extraction.MaxOutputBytes,
	})
	rendered := false
	switch {
	case err == nil && len(res.Produced) > 0:
		attempt.Outcome = OutcomeSuccess
		attempt.Produced = len(res.Produced)
		raws = append(raws, rawFile{page: page, origin: OriginRendered, path: res.Produced[0]})
		rendered = true
	case err == nil:
		attempt.Outcome = OutcomeRecoverable
		attempt.Detail = "renderer produced no output"
	default:
		attempt.Outcome = OutcomeRecoverable
		attempt.Detail = err.Error()
	}
	attempts = append(attempts, attempt)

	if rendered && !opts.AllBackends {
		return raws, attempts
	}
	if ctx.Err() != nil {
		return raws, attempts
	}

	fallback := Attempt{Backend: OriginLibraryFallback, Page: page}
	outPath := filepath.Join(ws.Dir, fmt.Sprintf("fallback-%03d.png", page))
	if err := o.pages.RenderPage(pdfPath, page, o.cfg.Extraction.RasterDPI, outPath); err != nil {
		fallback.Outcome = OutcomeRecoverable
		fallback.Detail = err.Error()
	} else {
		fallback.Outcome = OutcomeSuccess
		fallback.Produced = 1
		raws = append(raws, rawFile{page: page, origin: OriginLibraryFallback, path: outPath})
	}
	attempts = append(attempts, fallback)
	return raws, attempts
}

func (o *Orchestrator) rasterWholeDocument(ctx context.Context, pdfPath string, ws *Workspace) ([]rawFile, []Attempt) {
	attempt := Attempt{Backend: OriginRendered}
	res, err := o.runner.Run(services.WithBackend(ctx, string(OriginRendered)), sandbox.Request{
		Tool:           sandbox.ToolPdftoppm,
		InputPath:      pdfPath,
		WorkDir:        ws.Dir,
		OutputPrefix:   "page",
		DPI:            o.cfg.Extraction.RasterDPI,
		MaxOutputBytes: o.cfg.Extraction.MaxOutputBytes,
	})
	if err != nil {
		attempt.Outcome = OutcomeRecoverable
		attempt.Detail = err.Error()
		return nil, []Attempt{attempt}
	}

	var raws []rawFile
	for _, path := range res.Produced {
		page, ok := trailingPage(path)
		if !ok {
			continue
		}
		raws = append(raws, rawFile{page: page, origin: OriginRendered, path: path})
	}
	attempt.Outcome = OutcomeSuccess
	attempt.Produced = len(raws)
	return raws, []Attempt{attempt}
}

// finalize decodes raw files into Image records and enforces the
// (sourcePage, origin) uniqueness invariant. Decode failures drop the single
// file only.
func (o *Orchestrator) finalize(logger *slog.Logger, raws []rawFile) []Image {
	type key struct {
		page   int
		origin Origin
	}
	seen := make(map[key]bool, len(raws))
	images := make([]Image, 0, len(raws))
	for _, raw := range raws {
		k := key{page: raw.page, origin: raw.origin}
		if raw.page < 1 || seen[k] {
			continue
		}
		img, err := finalizeImage(raw.path, raw.page, raw.origin)
		if err != nil {
			logger.Warn("dropping undecodable image",
				logging.String("file", filepath.Base(raw.path)),
				logging.Int("page", raw.page),
				logging.Error(err),
			)
			continue
		}
		seen[k] = true
		images = append(images, img)
	}
	return images
}

// embeddedFilePattern matches pdfimages -p output: prefix-PPP-NNN.ext with
// the page number in the first group. Sidecar formats the decoders cannot
// read are excluded.
var embeddedFilePattern = regexp.MustCompile(`-(\d+)-\d+\.(?:png|jpe?g|tiff?|bmp)$`)

func embeddedPage(path string) (int, bool) {
	m := embeddedFilePattern.FindStringSubmatch(strings.ToLower(filepath.Base(path)))
	if m == nil {
		return 0, false
	}
	page, err := strconv.Atoi(m[1])
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

var trailingPagePattern = regexp.MustCompile(`-(\d+)\.png$`)

func trailingPage(path string) (int, bool) {
	m := trailingPagePattern.FindStringSubmatch(strings.ToLower(filepath.Base(path)))
	if m == nil {
		return 0, false
	}
	page, err := strconv.Atoi(m[1])
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

func summarize(attempts []Attempt) string {
	if len(attempts) == 0 {
		return "no backends attempted"
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		label := string(a.Backend)
		if a.Page > 0 {
			label = fmt.Sprintf("%s p%d", label, a.Page)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", label, a.Outcome))
	}
	return "all backends exhausted: " + strings.Join(parts, ", ")
}
