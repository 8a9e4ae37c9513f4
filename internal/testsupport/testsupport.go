// Package testsupport provides shared fixtures for package tests: throwaway
// configs, tiny deterministic images, minimal PDF bytes, and a scriptable
// sandbox runner.
package testsupport

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"meeple/internal/config"
	"meeple/internal/sandbox"
	"meeple/internal/services"
)

// NewConfig returns a validated config rooted in per-test temp directories.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CachePath = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

// WriteGray writes a 64x64 grayscale image whose pixel values come from
// value(x, y). The output format follows the path extension.
func WriteGray(t *testing.T, path string, value func(x, y int) uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: value(x, y)})
		}
	}
	if err := imaging.Save(imaging.Clone(img), path); err != nil {
		t.Fatal(err)
	}
	return path
}

// RampLTR brightens left to right. Its mirror image RampRTL hashes far away
// from it under every supported algorithm.
func RampLTR(x, _ int) uint8 { return uint8(x * 4) }

// RampRTL brightens right to left.
func RampRTL(x, _ int) uint8 { return uint8((63 - x) * 4) }

// WritePDF writes a minimal file with a valid PDF signature. When
// withImageObjects is true the body declares an image XObject, which the
// extraction census looks for.
func WritePDF(t *testing.T, path string, withImageObjects bool) string {
	t.Helper()
	body := "%PDF-1.4\n1 0 obj\n<< /Type /Page >>\nendobj\n"
	if withImageObjects {
		body += "2 0 obj\n<< /Type /XObject /Subtype /Image /Width 8 >>\nendobj\n"
	}
	body += "%%EOF\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// FakeRunner is a scriptable sandbox.Runner that records every request.
type FakeRunner struct {
	mu       sync.Mutex
	calls    []sandbox.Request
	Handlers map[sandbox.Tool]func(req sandbox.Request) (sandbox.Result, error)
}

// NewFakeRunner returns a runner with no scripted tools: every request
// reports the tool as missing until a handler is installed.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Handlers: make(map[sandbox.Tool]func(sandbox.Request) (sandbox.Result, error))}
}

// Run dispatches to the scripted handler for the request's tool.
func (f *FakeRunner) Run(ctx context.Context, req sandbox.Request) (sandbox.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	handler := f.Handlers[req.Tool]
	f.mu.Unlock()
	if handler == nil {
		return sandbox.Result{}, services.Wrap(services.ErrToolNotFound, "sandbox", req.Tool.String(), "not scripted", nil)
	}
	return handler(req)
}

// Calls returns a copy of all requests seen so far.
func (f *FakeRunner) Calls() []sandbox.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sandbox.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount reports how many requests targeted one tool.
func (f *FakeRunner) CallCount(tool sandbox.Tool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Tool == tool {
			n++
		}
	}
	return n
}

// FakePages is a scriptable extraction.PageSource.
type FakePages struct {
	Count     int
	CountErr  error
	RenderErr error
	// Render paints rendered pages; RampLTR when nil.
	Render func(x, y int) uint8
}

// PageCount returns the scripted count.
func (f FakePages) PageCount(string) (int, error) {
	return f.Count, f.CountErr
}

// RenderPage writes a deterministic image to outPath.
func (f FakePages) RenderPage(_ string, _, _ int, outPath string) error {
	if f.RenderErr != nil {
		return f.RenderErr
	}
	value := f.Render
	if value == nil {
		value = RampLTR
	}
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: value(x, y)})
		}
	}
	return imaging.Save(imaging.Clone(img), outPath)
}
