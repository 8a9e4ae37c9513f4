package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"meeple/internal/config"
	"meeple/internal/extraction"
	"meeple/internal/fileutil"
	"meeple/internal/hashcache"
	"meeple/internal/imagehash"
	"meeple/internal/match"
	"meeple/internal/sandbox"
	"meeple/internal/services"
	"meeple/internal/testsupport"
)

type fixture struct {
	cfg    *config.Config
	runner *testsupport.FakeRunner
	engine *Engine
	refDir string
}

// newFixture wires an engine whose sandbox and page source are scripted:
// pdfimages emits a left-to-right ramp on page 1, pdftoppm emits the mirror
// ramp for whatever page it is asked for. The reference image matches the
// embedded ramp exactly.
func newFixture(t *testing.T, pageCount int, opts ...Option) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	runner := testsupport.NewFakeRunner()
	runner.Handlers[sandbox.ToolPdfimages] = func(req sandbox.Request) (sandbox.Result, error) {
		out := filepath.Join(req.WorkDir, req.OutputPrefix+"-001-000.png")
		testsupport.WriteGray(t, out, testsupport.RampLTR)
		return sandbox.Result{Produced: []string{out}}, nil
	}
	runner.Handlers[sandbox.ToolPdftoppm] = func(req sandbox.Request) (sandbox.Result, error) {
		out := filepath.Join(req.WorkDir, fmt.Sprintf("%s-%d.png", req.OutputPrefix, req.FirstPage))
		testsupport.WriteGray(t, out, testsupport.RampRTL)
		return sandbox.Result{Produced: []string{out}}, nil
	}

	orch := extraction.New(cfg,
		extraction.WithRunner(runner),
		extraction.WithPageSource(testsupport.FakePages{Count: pageCount}),
	)

	refDir := t.TempDir()
	testsupport.WriteGray(t, filepath.Join(refDir, "board.png"), testsupport.RampLTR)

	opts = append([]Option{WithOrchestrator(orch)}, opts...)
	return &fixture{
		cfg:    cfg,
		runner: runner,
		engine: New(cfg, opts...),
		refDir: refDir,
	}
}

func (f *fixture) boardSpec() []ComponentSpec {
	return []ComponentSpec{
		{Name: "Board", ExpectedQuantity: 1, ReferencePaths: []string{filepath.Join(f.refDir, "board.png")}},
	}
}

func TestExtractAndMatchEndToEnd(t *testing.T) {
	f := newFixture(t, 2)
	pdf := testsupport.WritePDF(t, filepath.Join(t.TempDir(), "rulebook.pdf"), true)

	outcome, err := f.engine.ExtractAndMatch(context.Background(), pdf, f.boardSpec(), RunOptions{})
	if err != nil {
		t.Fatalf("ExtractAndMatch: %v", err)
	}
	if outcome.JobID == "" {
		t.Fatal("outcome must carry the job id")
	}
	if len(outcome.Images) != 2 {
		t.Fatalf("expected embedded page 1 plus rendered page 2, got %+v", outcome.Images)
	}
	if outcome.Images[0].Origin != extraction.OriginEmbedded || outcome.Images[1].Origin != extraction.OriginRendered {
		t.Fatalf("origin order wrong: %+v", outcome.Images)
	}

	results := outcome.Report.Results
	if len(results) != 2 {
		t.Fatalf("expected 2 match results, got %d", len(results))
	}
	if results[0].Status != match.StatusMatched || results[0].Component != "Board" {
		t.Fatalf("embedded ramp should match the board reference: %+v", results[0])
	}
	if results[0].HammingDistance != 0 {
		t.Fatalf("identical image should be distance 0, got %d", results[0].HammingDistance)
	}
	if results[1].Status == match.StatusMatched {
		t.Fatalf("mirrored ramp must not match: %+v", results[1])
	}
}

func TestWorkspaceReapedAfterSuccess(t *testing.T) {
	f := newFixture(t, 1)
	pdf := testsupport.WritePDF(t, filepath.Join(t.TempDir(), "rulebook.pdf"), true)

	if _, err := f.engine.ExtractAndMatch(context.Background(), pdf, f.boardSpec(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	assertNoWorkspaces(t, f.cfg.Paths.WorkDir)
}

func TestWorkspaceReapedAfterFailure(t *testing.T) {
	f := newFixture(t, 1)
	notPDF := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(notPDF, []byte("GIF89a definitely not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.ExtractAndMatch(context.Background(), notPDF, f.boardSpec(), RunOptions{})
	if !errors.Is(err, services.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	assertNoWorkspaces(t, f.cfg.Paths.WorkDir)
}

func assertNoWorkspaces(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		t.Fatalf("workspace %q survived the run", entry.Name())
	}
}

func TestExtractAndMatchValidatesInput(t *testing.T) {
	f := newFixture(t, 1)
	pdf := testsupport.WritePDF(t, filepath.Join(t.TempDir(), "rulebook.pdf"), true)

	if _, err := f.engine.ExtractAndMatch(context.Background(), pdf, nil, RunOptions{}); err == nil {
		t.Fatal("expected error for empty component list")
	}
	specs := []ComponentSpec{{Name: "Board"}}
	if _, err := f.engine.ExtractAndMatch(context.Background(), pdf, specs, RunOptions{}); err == nil {
		t.Fatal("expected error for component without references")
	}
	if _, err := f.engine.ExtractAndMatch(context.Background(), pdf, f.boardSpec(), RunOptions{Algorithm: "ahash"}); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

func TestHashUsesCache(t *testing.T) {
	cache, err := hashcache.Open(filepath.Join(t.TempDir(), "hashes.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	f := newFixture(t, 1, WithCache(cache))
	img := testsupport.WriteGray(t, filepath.Join(t.TempDir(), "piece.png"), testsupport.RampLTR)

	first, err := f.engine.Hash(context.Background(), img, imagehash.AlgorithmDHash, imagehash.DHashVersion)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.engine.Hash(context.Background(), img, imagehash.AlgorithmDHash, imagehash.DHashVersion)
	if err != nil {
		t.Fatal(err)
	}
	if first.Hex() != second.Hex() {
		t.Fatalf("cache returned a different hash: %s vs %s", first.Hex(), second.Hex())
	}

	stats := f.engine.Stats()
	if stats.CacheHits < 1 {
		t.Fatalf("expected a cache hit, stats = %+v", stats)
	}
	if stats.CacheMisses < 1 {
		t.Fatalf("first lookup should miss, stats = %+v", stats)
	}
}

func TestCachedHashSurvivesFileCopy(t *testing.T) {
	cache, err := hashcache.Open(filepath.Join(t.TempDir(), "hashes.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	f := newFixture(t, 1, WithCache(cache))
	dir := t.TempDir()
	original := testsupport.WriteGray(t, filepath.Join(dir, "piece.png"), testsupport.RampLTR)
	copied := filepath.Join(dir, "copy.png")
	if err := fileutil.CopyFile(original, copied); err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.Hash(context.Background(), original, imagehash.AlgorithmDHash, imagehash.DHashVersion); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Hash(context.Background(), copied, imagehash.AlgorithmDHash, imagehash.DHashVersion); err != nil {
		t.Fatal(err)
	}
	// Identical bytes share a digest, so the copy is a hit.
	if stats := f.engine.Stats(); stats.CacheHits < 1 {
		t.Fatalf("expected content-addressed hit, stats = %+v", stats)
	}
}

func TestStatsTrackActivity(t *testing.T) {
	f := newFixture(t, 2)
	pdf := testsupport.WritePDF(t, filepath.Join(t.TempDir(), "rulebook.pdf"), true)

	if _, err := f.engine.ExtractAndMatch(context.Background(), pdf, f.boardSpec(), RunOptions{}); err != nil {
		t.Fatal(err)
	}

	stats := f.engine.Stats()
	if stats.Jobs != 1 || stats.JobFailures != 0 {
		t.Fatalf("job counters wrong: %+v", stats)
	}
	if stats.Backends[extraction.OriginEmbedded].Attempts < 1 {
		t.Fatalf("embedded attempts missing: %+v", stats.Backends)
	}
	if stats.HashSamples < 2 {
		t.Fatalf("hash latency samples = %d, want >= 2", stats.HashSamples)
	}
	if stats.HashLatencyP95 < stats.HashLatencyP50 {
		t.Fatalf("p95 %v < p50 %v", stats.HashLatencyP95, stats.HashLatencyP50)
	}
}

func TestHealthSurface(t *testing.T) {
	f := newFixture(t, 1)
	health := f.engine.Health(context.Background())

	if len(health.Tools) != 2 {
		t.Fatalf("expected two external tools, got %+v", health.Tools)
	}
	if health.Limit != f.cfg.Governor.MaxConcurrentExtractions {
		t.Fatalf("limit = %d, want %d", health.Limit, f.cfg.Governor.MaxConcurrentExtractions)
	}
	if health.InFlight != 0 || health.QueueDepth != 0 {
		t.Fatalf("idle engine reports load: %+v", health)
	}
	if health.Hash.Algorithm != f.cfg.Hash.Algorithm || health.Hash.Bits != 64 {
		t.Fatalf("hash config wrong: %+v", health.Hash)
	}
	// Both poppler tools are optional: extraction can always fall back.
	if !health.Ready() {
		t.Fatal("engine with in-process fallback must report ready")
	}
}
