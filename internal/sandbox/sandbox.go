package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"meeple/internal/fileutil"
	"meeple/internal/logging"
	"meeple/internal/services"
)

// Tool identifies a whitelisted external binary. Callers can never supply a
// binary name or flag directly; argument lists are built from the fixed
// templates in buildArgs.
type Tool int

const (
	// ToolPdfimages extracts embedded image objects from a PDF.
	ToolPdfimages Tool = iota
	// ToolPdftoppm rasterizes PDF pages to PNG at a fixed DPI.
	ToolPdftoppm
)

// String returns the tool's canonical name.
func (t Tool) String() string {
	switch t {
	case ToolPdfimages:
		return "pdfimages"
	case ToolPdftoppm:
		return "pdftoppm"
	default:
		return fmt.Sprintf("tool(%d)", int(t))
	}
}

// Request describes one sandboxed tool invocation.
type Request struct {
	Tool      Tool
	InputPath string
	// WorkDir is the per-job temp directory. All output lands beneath it;
	// it doubles as the subprocess working directory.
	WorkDir string
	// OutputPrefix is the base name for produced files inside WorkDir.
	OutputPrefix string
	// DPI applies to ToolPdftoppm only.
	DPI int
	// FirstPage and LastPage bound the rasterized page range
	// (ToolPdftoppm only). Zero means the whole document.
	FirstPage int
	LastPage  int
	// Timeout bounds wall-clock runtime. Zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration
	// MaxOutputBytes bounds the total bytes the tool may write into
	// WorkDir. Zero disables the budget.
	MaxOutputBytes int64
}

// Result reports a completed invocation.
type Result struct {
	// Produced lists absolute paths of files the tool created under
	// WorkDir, sorted by name.
	Produced []string
	Duration time.Duration
}

// Runner executes sandboxed tool invocations. The concrete Sandbox runs real
// subprocesses; tests substitute counting or scripted fakes.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithBinary overrides the binary used for a tool. Used by configuration
// plumbing and by tests that point tools at scripted stand-ins.
func WithBinary(tool Tool, binary string) Option {
	return func(s *Sandbox) {
		if binary != "" {
			s.binaries[tool] = binary
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sandbox) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "sandbox")
		}
	}
}

// Sandbox runs whitelisted external tools with resource limits.
type Sandbox struct {
	binaries map[Tool]string
	logger   *slog.Logger
	// budgetPollInterval controls how often the output budget watchdog
	// walks the work dir. Shortened in tests.
	budgetPollInterval time.Duration
}

// New constructs a Sandbox with default binary names.
func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		binaries: map[Tool]string{
			ToolPdfimages: "pdfimages",
			ToolPdftoppm:  "pdftoppm",
		},
		logger:             logging.NewNop(),
		budgetPollInterval: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one tool invocation under the configured limits. The process
// runs in its own process group so that expiry or cancellation kills the tool
// and any children it spawned.
func (s *Sandbox) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return Result{}, err
	}

	binary := s.binaries[req.Tool]
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return Result{}, services.Wrap(services.ErrToolNotFound, "sandbox", req.Tool.String(), fmt.Sprintf("binary %q not in PATH", binary), nil)
	}

	args := buildArgs(req)

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	before, err := snapshotDir(req.WorkDir)
	if err != nil {
		return Result{}, services.Wrap(services.ErrToolCrashed, "sandbox", req.Tool.String(), "snapshot work dir", err)
	}

	cmd := exec.Command(resolved, args...) //nolint:gosec // args come from fixed templates only
	cmd.Dir = req.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var output strings.Builder
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return Result{}, services.Wrap(services.ErrToolCrashed, "sandbox", req.Tool.String(), "start", err)
	}
	pgid := cmd.Process.Pid

	killed := make(chan error, 1)
	done := make(chan struct{})
	var watchdog sync.WaitGroup
	watchdog.Add(1)
	go func() {
		defer watchdog.Done()
		ticker := time.NewTicker(s.budgetPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				killGroup(pgid)
				if errors.Is(runCtx.Err(), context.DeadlineExceeded) && req.Timeout > 0 && ctx.Err() == nil {
					killed <- services.Wrap(services.ErrToolTimeout, "sandbox", req.Tool.String(), fmt.Sprintf("deadline %s exceeded", req.Timeout), nil)
				} else {
					killed <- runCtx.Err()
				}
				return
			case <-ticker.C:
				if req.MaxOutputBytes <= 0 {
					continue
				}
				size, err := fileutil.DirSize(req.WorkDir)
				if err != nil {
					continue
				}
				if size > req.MaxOutputBytes {
					killGroup(pgid)
					killed <- services.Wrap(services.ErrResourceExceeded, "sandbox", req.Tool.String(), fmt.Sprintf("output %d bytes exceeds budget %d", size, req.MaxOutputBytes), nil)
					return
				}
			}
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	watchdog.Wait()

	duration := time.Since(start)

	select {
	case killErr := <-killed:
		s.discardOutputs(req.WorkDir, before)
		return Result{Duration: duration}, killErr
	default:
	}

	if waitErr != nil {
		detail := strings.TrimSpace(tail(output.String(), 512))
		if detail == "" {
			detail = waitErr.Error()
		}
		return Result{Duration: duration}, services.Wrap(services.ErrToolCrashed, "sandbox", req.Tool.String(), detail, waitErr)
	}

	produced, err := producedFiles(req.WorkDir, before)
	if err != nil {
		return Result{Duration: duration}, services.Wrap(services.ErrToolCrashed, "sandbox", req.Tool.String(), "collect outputs", err)
	}

	s.logger.Debug("tool completed",
		logging.String(logging.FieldEventType, "sandbox_run"),
		logging.String("tool", req.Tool.String()),
		logging.Int("produced", len(produced)),
		logging.Duration("duration", duration),
	)

	return Result{Produced: produced, Duration: duration}, nil
}

func validateRequest(req Request) error {
	switch req.Tool {
	case ToolPdfimages, ToolPdftoppm:
	default:
		return services.Wrap(services.ErrToolNotFound, "sandbox", "", fmt.Sprintf("unknown tool %d", int(req.Tool)), nil)
	}
	if strings.TrimSpace(req.InputPath) == "" {
		return services.Wrap(services.ErrToolCrashed, "sandbox", req.Tool.String(), "input path required", nil)
	}
	if !filepath.IsAbs(req.WorkDir) {
		return services.Wrap(services.ErrToolCrashed, "sandbox", req.Tool.String(), "work dir must be absolute", nil)
	}
	prefix := req.OutputPrefix
	if prefix == "" || prefix != filepath.Base(prefix) || strings.ContainsAny(prefix, "/\\") {
		return services.Wrap(services.ErrToolCrashed, "sandbox", req.Tool.String(), "output prefix must be a bare file name", nil)
	}
	if !fileutil.WithinDir(req.WorkDir, filepath.Join(req.WorkDir, prefix)) {
		return services.Wrap(services.ErrToolCrashed, "sandbox", req.Tool.String(), "output prefix escapes work dir", nil)
	}
	return nil
}

// buildArgs assembles the fixed argument template for a tool. Nothing here is
// caller-controlled beyond the input path, the prefix (validated to be a bare
// name), and the numeric DPI.
func buildArgs(req Request) []string {
	out := filepath.Join(req.WorkDir, req.OutputPrefix)
	switch req.Tool {
	case ToolPdfimages:
		return []string{"-all", "-p", req.InputPath, out}
	case ToolPdftoppm:
		dpi := req.DPI
		if dpi <= 0 {
			dpi = 300
		}
		args := []string{"-png", "-r", strconv.Itoa(dpi)}
		if req.FirstPage > 0 {
			args = append(args, "-f", strconv.Itoa(req.FirstPage))
		}
		if req.LastPage > 0 {
			args = append(args, "-l", strconv.Itoa(req.LastPage))
		}
		return append(args, req.InputPath, out)
	default:
		return nil
	}
}

func killGroup(pgid int) {
	// Negative pid addresses the whole process group.
	_ = unix.Kill(-pgid, unix.SIGKILL)
}

func snapshotDir(dir string) (map[string]struct{}, error) {
	entries := make(map[string]struct{})
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			entries[path] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func producedFiles(dir string, before map[string]struct{}) ([]string, error) {
	var produced []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, existed := before[path]; existed {
			return nil
		}
		if !fileutil.WithinDir(dir, path) {
			return nil
		}
		produced = append(produced, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(produced)
	return produced, nil
}

// discardOutputs removes files created during a killed run so partial output
// never leaks to the caller.
func (s *Sandbox) discardOutputs(dir string, before map[string]struct{}) {
	produced, err := producedFiles(dir, before)
	if err != nil {
		return
	}
	for _, path := range produced {
		_ = os.Remove(path)
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
