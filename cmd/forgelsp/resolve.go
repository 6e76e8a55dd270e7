package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"forgelsp/internal/index"
	"forgelsp/internal/project"
	"forgelsp/internal/workspace"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [flags] <import>",
	Short: "Resolve an import path the way the language server does",
	Long: `Resolve an import path against the importing file's directory, the project's
remappings (foundry.toml, remappings.txt and forge remappings) and its library directories.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("from", "", "importing file (default: the project root)")
	resolveCmd.Flags().Bool("deps", false, "also list the resolved imports of --from")
}

func runResolve(cmd *cobra.Command, args []string) error {
	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return fmt.Errorf("failed to get from flag: %w", err)
	}
	showDeps, err := cmd.Flags().GetBool("deps")
	if err != nil {
		return fmt.Errorf("failed to get deps flag: %w", err)
	}
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, log, nil)
	if err != nil {
		return err
	}
	start := "."
	if from != "" {
		start = from
	}
	sess, err := openSession(cmd.Context(), start, workspace.Options{Runner: runner, Logger: log})
	if err != nil {
		return err
	}
	defer sess.Close()

	fromFile := filepath.Join(sess.Root(), project.ManifestName)
	if from != "" {
		if fromFile, err = filepath.Abs(from); err != nil {
			return err
		}
	}
	target, err := sess.ResolveImport(cmd.Context(), args[0], fromFile)
	if errors.Is(err, index.ErrImportNotFound) {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, target)
	if showDeps && from != "" {
		for _, dep := range sess.Index().Dependencies(cmd.Context(), fromFile) {
			fmt.Fprintln(out, "  ", dep)
		}
	}
	return nil
}
