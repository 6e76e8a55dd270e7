// Package forge runs the forge executable and converts its output into
// diagnostics.
//
// Every invocation is bounded by a timeout. A non-zero exit status is not an
// error: forge exits non-zero whenever the source has compile errors, and
// those errors are exactly what callers want. Launch failures are reported as
// ErrToolUnavailable and logged once per Runner.
package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"forgelsp/internal/diag"
	"forgelsp/internal/diagparse"
	"forgelsp/internal/source"
)

// Mode is the forge subcommand used for an invocation.
type Mode string

const (
	ModeCompile Mode = "compile"
	ModeLint    Mode = "lint"
)

// LintPolicy controls whether lint runs.
type LintPolicy uint8

const (
	// LintAuto probes the tool once and lints when the probe succeeds.
	LintAuto LintPolicy = iota
	// LintAlways skips the probe.
	LintAlways
	// LintNever disables lint.
	LintNever
)

// DefaultTimeout bounds a single invocation.
const DefaultTimeout = 60 * time.Second

// Options configures a Runner.
type Options struct {
	Path     string
	Timeout  time.Duration
	Lint     LintPolicy
	Exec     ExecFunc
	Logger   *slog.Logger
	Metrics  *Metrics
	LoadFile func(path string) (*source.File, error)
}

// Result holds the diagnostics extracted for one file.
type Result struct {
	Diagnostics []diag.Diagnostic
	Skipped     int
	ExitCode    int
}

// Runner invokes forge. It is safe for concurrent use.
type Runner struct {
	path     string
	timeout  time.Duration
	lint     LintPolicy
	exec     ExecFunc
	log      *slog.Logger
	metrics  *Metrics
	loadFile func(path string) (*source.File, error)

	versionOnce sync.Once
	version     VersionInfo
	versionErr  error

	probeOnce sync.Once
	canLint   bool

	lintOff     atomic.Bool
	unavailable atomic.Bool
	reportOnce  sync.Once
}

// New constructs a Runner.
func New(opts Options) *Runner {
	path := opts.Path
	if path == "" {
		path = "forge"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	execFn := opts.Exec
	if execFn == nil {
		execFn = SystemExec
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		path:     path,
		timeout:  timeout,
		lint:     opts.Lint,
		exec:     execFn,
		log:      log,
		metrics:  opts.Metrics,
		loadFile: opts.LoadFile,
	}
}

// Path returns the configured executable.
func (r *Runner) Path() string { return r.path }

// Unavailable reports whether a launch has already failed.
func (r *Runner) Unavailable() bool { return r.unavailable.Load() }

// DetectVersion runs `forge --version` once and caches the result.
func (r *Runner) DetectVersion(ctx context.Context) (VersionInfo, error) {
	r.versionOnce.Do(func() {
		out, err := r.invoke(ctx, "", "--version")
		if err != nil {
			r.versionErr = err
			return
		}
		r.version = ParseVersion(string(out.Stdout))
		r.log.Info("forge detected",
			slog.String("path", r.path),
			slog.String("version", r.version.Version),
			slog.String("channel", string(r.version.Channel)))
	})
	return r.version, r.versionErr
}

// SupportsLinting reports whether `forge lint` exists. Under LintAuto the
// answer comes from a single `forge lint --help` probe whose result is
// cached for the lifetime of the Runner.
func (r *Runner) SupportsLinting(ctx context.Context) bool {
	if r.lintOff.Load() {
		return false
	}
	switch r.lint {
	case LintAlways:
		return true
	case LintNever:
		return false
	}
	r.probeOnce.Do(func() {
		out, err := r.invoke(ctx, "", "lint", "--help")
		r.canLint = err == nil && out.ExitCode == 0
		r.log.Debug("forge lint probe", slog.Bool("supported", r.canLint))
	})
	return r.canLint
}

// DisableLint turns lint off (or back on) regardless of the policy.
func (r *Runner) DisableLint(off bool) { r.lintOff.Store(off) }

// RunCompile compiles file and returns the diagnostics that point into it.
// useCache=false adds --no-cache so warnings suppressed by a warm build
// cache are reported again.
func (r *Runner) RunCompile(ctx context.Context, dir, file string, useCache bool) (Result, error) {
	args := []string{"compile", file, "--json"}
	if !useCache {
		args = append(args, "--no-cache")
	}
	return r.run(ctx, ModeCompile, dir, file, useCache, args)
}

// RunLint lints file. Callers are expected to check SupportsLinting first;
// Analyze does.
func (r *Runner) RunLint(ctx context.Context, dir, file string) (Result, error) {
	return r.run(ctx, ModeLint, dir, file, true, []string{"lint", file, "--json"})
}

// Analyze runs compile and, when supported, lint concurrently and
// concatenates their diagnostics, compile first. The returned error is the
// compile error if any, otherwise the lint error.
func (r *Runner) Analyze(ctx context.Context, dir, file string, useCache bool) (Result, error) {
	var compile, lint Result
	var compileErr, lintErr error
	var g errgroup.Group
	g.Go(func() error {
		compile, compileErr = r.RunCompile(ctx, dir, file, useCache)
		return nil
	})
	if r.SupportsLinting(ctx) {
		g.Go(func() error {
			lint, lintErr = r.RunLint(ctx, dir, file)
			return nil
		})
	}
	_ = g.Wait()

	out := Result{
		Diagnostics: append(compile.Diagnostics, lint.Diagnostics...),
		Skipped:     compile.Skipped + lint.Skipped,
		ExitCode:    compile.ExitCode,
	}
	if compileErr != nil {
		return out, compileErr
	}
	return out, lintErr
}

// Remappings returns the raw lines of `forge remappings`.
func (r *Runner) Remappings(ctx context.Context, dir string) ([]string, error) {
	out, err := r.invoke(ctx, dir, "remappings")
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(out.Stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (r *Runner) run(ctx context.Context, mode Mode, dir, file string, useCache bool, args []string) (Result, error) {
	started := time.Now()
	out, err := r.invoke(ctx, dir, args...)
	if errors.Is(err, ErrToolUnavailable) {
		r.metrics.observe(mode, "unavailable", time.Since(started), 0, 0)
		return Result{}, err
	}

	opts := diagparse.Options{WorkDir: dir, LoadFile: r.loadFile}
	var batch diagparse.Batch
	switch mode {
	case ModeLint:
		// forge lint writes its JSON records to stderr
		batch = diagparse.ParseLint(append(append([]byte{}, out.Stderr...), out.Stdout...), opts)
	default:
		batch = diagparse.ParseCompile(out.Stdout, opts)
	}
	target := diagparse.ResolvePath(dir, file)
	diags := make([]diag.Diagnostic, 0, len(batch.Diagnostics))
	for _, d := range batch.Diagnostics {
		switch {
		case d.FilePath == "":
			// whole-unit failures name no file; report them on the target
			d.FilePath = target
			d.Range = source.Range{}
			diags = append(diags, d)
		case samePath(d.FilePath, target):
			diags = append(diags, d)
		}
	}

	elapsed := time.Since(started)
	outcome := "ok"
	attrs := []any{
		slog.String("mode", string(mode)),
		slog.String("file", file),
		slog.String("dir", dir),
		slog.Bool("use_cache", useCache),
		slog.Duration("duration", elapsed),
		slog.Int("exit_code", out.ExitCode),
		slog.Int("diagnostics", len(diags)),
		slog.Int("skipped", batch.Skipped),
	}
	switch {
	case errors.Is(err, ErrToolTimeout):
		outcome = "timeout"
		r.log.Warn("forge timed out", attrs...)
	case err != nil:
		outcome = "error"
		r.log.Warn("forge failed", append(attrs, slog.String("error", err.Error()))...)
	default:
		r.log.Debug("forge finished", attrs...)
	}
	r.metrics.observe(mode, outcome, elapsed, len(diags), batch.Skipped)
	return Result{Diagnostics: diags, Skipped: batch.Skipped, ExitCode: out.ExitCode}, err
}

func (r *Runner) invoke(ctx context.Context, dir string, args ...string) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	out, err := r.exec(runCtx, dir, r.path, args...)
	switch {
	case err == nil:
		r.unavailable.Store(false)
		return out, nil
	case isLaunchError(err):
		r.unavailable.Store(true)
		r.reportOnce.Do(func() {
			r.log.Error("forge unavailable", slog.String("path", r.path), slog.String("error", err.Error()))
		})
		return out, fmt.Errorf("%w: %s: %w", ErrToolUnavailable, r.path, err)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return out, fmt.Errorf("%w after %s: forge %s", ErrToolTimeout, r.timeout, strings.Join(args, " "))
	default:
		return out, fmt.Errorf("forge %s: %w", strings.Join(args, " "), err)
	}
}

// isLaunchError reports a failure to find or execute the tool itself. A
// missing working directory surfaces as *fs.PathError from chdir and does
// not count.
func isLaunchError(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	ea, errA := filepath.EvalSymlinks(a)
	eb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ea == eb
}
