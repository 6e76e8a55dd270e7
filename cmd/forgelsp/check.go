package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"forgelsp/internal/diag"
	"forgelsp/internal/diagcache"
	"forgelsp/internal/diagfmt"
	"forgelsp/internal/forge"
	"forgelsp/internal/observ"
	"forgelsp/internal/source"
	"forgelsp/internal/version"
	"forgelsp/internal/workspace"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file.sol>",
	Short: "Run forge diagnostics on one Solidity file",
	Long: `Run forge compile (and forge lint when available) on a single file and print the
diagnostics. The command exits with status 1 when any error is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("fresh", false, "bypass the forge build cache, as on save")
	checkCmd.Flags().Bool("json", false, "shorthand for --format json")
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json|sarif)")
	checkCmd.Flags().Bool("timings", false, "print phase timings to stderr")
	checkCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	checkCmd.Flags().Int("max-diagnostics", 0, "maximum number of diagnostics in JSON output (0=all)")
}

var errDiagnosticsFailed = errors.New("diagnostics reported errors")

func runCheck(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	fresh, err := flags.GetBool("fresh")
	if err != nil {
		return fmt.Errorf("failed to get fresh flag: %w", err)
	}
	asJSON, err := flags.GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
	}
	format, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if asJSON {
		format = "json"
	}
	showTimings, err := flags.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	fullPath, err := flags.GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	maxDiags, err := flags.GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	switch format {
	case "pretty", "json", "sarif":
	default:
		return fmt.Errorf("unknown format %q (must be pretty, json or sarif)", format)
	}

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, log, nil)
	if err != nil {
		return err
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if !strings.HasSuffix(path, ".sol") {
		return fmt.Errorf("%s: not a Solidity source file", args[0])
	}

	timer := observ.NewTimer()
	var sess *workspace.Session
	err = timer.Track("load project", func() error {
		var openErr error
		sess, openErr = openSession(cmd.Context(), path, workspace.Options{Runner: runner, Logger: log})
		return openErr
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	trigger := diagcache.OnOpen
	if fresh {
		trigger = diagcache.OnSave
	}
	var diags []diag.Diagnostic
	analyzeErr := timer.Track("forge "+trigger.String(), func() error {
		var runErr error
		diags, runErr = sess.Diagnostics(cmd.Context(), path, trigger)
		return runErr
	})
	if errors.Is(analyzeErr, forge.ErrToolUnavailable) {
		return analyzeErr
	}
	if analyzeErr != nil {
		log.Warn("analysis incomplete", slog.String("file", path), slog.String("error", analyzeErr.Error()))
	}
	bag := diag.NewBag(diags...)
	bag.Sort()
	diags = bag.Items()

	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	out := cmd.OutOrStdout()
	err = timer.Track("render", func() error {
		switch format {
		case "json":
			return diagfmt.JSON(out, diags, diagfmt.JSONOpts{PathMode: pathMode, BaseDir: sess.Root(), Max: maxDiags})
		case "sarif":
			return diagfmt.Sarif(out, diags, diagfmt.SarifRunMeta{
				ToolName:    "forgelsp",
				ToolVersion: version.Version,
				BaseDir:     sess.Root(),
			})
		}
		useColor, colorErr := colorEnabled(cmd, os.Stdout)
		if colorErr != nil {
			return colorErr
		}
		return diagfmt.Pretty(out, diags, loadFiles(diags), diagfmt.PrettyOpts{
			Color:    useColor,
			Context:  true,
			PathMode: pathMode,
			BaseDir:  sess.Root(),
			ShowHelp: true,
		})
	})
	if err != nil {
		return err
	}
	if showTimings {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if bag.HasErrors() {
		return fmt.Errorf("%w: %d error(s)", errDiagnosticsFailed, bag.Count(diag.SevError))
	}
	return nil
}

// loadFiles reads each distinct file named by diags for context lines.
// Unreadable files are skipped; their diagnostics print without context.
func loadFiles(diags []diag.Diagnostic) map[string]*source.File {
	files := make(map[string]*source.File)
	for _, d := range diags {
		if _, seen := files[d.FilePath]; seen {
			continue
		}
		f, err := source.Load(d.FilePath)
		if err != nil {
			files[d.FilePath] = nil
			continue
		}
		files[d.FilePath] = f
	}
	return files
}
