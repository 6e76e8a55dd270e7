package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"forgelsp/internal/forge"
	"forgelsp/internal/prof"
	"forgelsp/internal/project"
	"forgelsp/internal/workspace"
)

// newLogger builds the process logger. Logs always go to stderr because
// stdout carries the JSON-RPC stream in lsp mode.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	level, err := parseLevel(raw)
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (must be debug, info, warn or error)", s)
}

func parseLintPolicy(s string) (forge.LintPolicy, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return forge.LintAuto, nil
	case "always", "on":
		return forge.LintAlways, nil
	case "never", "off":
		return forge.LintNever, nil
	}
	return 0, fmt.Errorf("unknown lint policy %q (must be auto, always or never)", s)
}

// newRunner reads the tool flags shared by every command.
func newRunner(cmd *cobra.Command, log *slog.Logger, metrics *forge.Metrics) (*forge.Runner, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("forge")
	if err != nil {
		return nil, fmt.Errorf("failed to get forge flag: %w", err)
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return nil, fmt.Errorf("failed to get timeout flag: %w", err)
	}
	lintRaw, err := flags.GetString("lint")
	if err != nil {
		return nil, fmt.Errorf("failed to get lint flag: %w", err)
	}
	lint, err := parseLintPolicy(lintRaw)
	if err != nil {
		return nil, err
	}
	return forge.New(forge.Options{
		Path:    path,
		Timeout: timeout,
		Lint:    lint,
		Logger:  log,
		Metrics: metrics,
	}), nil
}

// colorEnabled resolves --color against the terminal state of f.
func colorEnabled(cmd *cobra.Command, f *os.File) (bool, error) {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return isTerminal(f) && os.Getenv("NO_COLOR") == "", nil
	}
	return false, fmt.Errorf("unknown color mode %q (must be auto, on or off)", mode)
}

// startProfiling enables the profilers requested by the persistent flags.
func startProfiling(cmd *cobra.Command) (*prof.Session, error) {
	flags := cmd.Flags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return nil, nil
	}
	return prof.Start(opts)
}

// openSession opens the project enclosing path. Without a foundry.toml the
// directory itself is served with the default layout.
func openSession(ctx context.Context, path string, opts workspace.Options) (*workspace.Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := abs
	if info, statErr := os.Stat(abs); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	manifestPath, found, err := project.FindFoundryToml(dir)
	if err != nil {
		return nil, err
	}
	root := dir
	if found {
		root = filepath.Dir(manifestPath)
	} else {
		manifestPath = ""
	}
	return workspace.New(ctx, root, manifestPath, opts)
}
