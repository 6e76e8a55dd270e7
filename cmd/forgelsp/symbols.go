package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"forgelsp/internal/index"
	"forgelsp/internal/workspace"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols [flags] [query]",
	Short: "Search declarations across the project",
	Long: `List contracts, functions, events, structs, enums, modifiers and state variables whose
name contains query. Matching is lexical: results are best-effort, not semantically checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSymbols,
}

func init() {
	symbolsCmd.Flags().String("dir", ".", "directory inside the project")
	symbolsCmd.Flags().String("file", "", "list the declarations of one file instead")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return fmt.Errorf("failed to get dir flag: %w", err)
	}
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return fmt.Errorf("failed to get file flag: %w", err)
	}
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, log, nil)
	if err != nil {
		return err
	}
	start := dir
	if file != "" {
		start = file
	}
	sess, err := openSession(cmd.Context(), start, workspace.Options{Runner: runner, Logger: log})
	if err != nil {
		return err
	}
	defer sess.Close()

	var syms []index.SymbolEntry
	if file != "" {
		abs, absErr := filepath.Abs(file)
		if absErr != nil {
			return absErr
		}
		syms = sess.DocumentSymbols(cmd.Context(), abs)
	} else {
		syms, err = sess.WorkspaceSymbols(cmd.Context(), query)
		if err != nil {
			return err
		}
	}
	return writeSymbolTable(cmd.OutOrStdout(), sess.Root(), syms)
}

// writeSymbolTable prints one aligned row per symbol. Widths are measured
// in terminal cells so names with wide characters stay aligned.
func writeSymbolTable(w io.Writer, root string, syms []index.SymbolEntry) error {
	kindWidth, nameWidth := len("KIND"), len("NAME")
	for _, s := range syms {
		kindWidth = max(kindWidth, runewidth.StringWidth(kindLabel(s)))
		nameWidth = max(nameWidth, runewidth.StringWidth(qualifiedName(s)))
	}
	if _, err := fmt.Fprintf(w, "%s  %s  %s\n", runewidth.FillRight("KIND", kindWidth), runewidth.FillRight("NAME", nameWidth), "LOCATION"); err != nil {
		return err
	}
	for _, s := range syms {
		loc := s.FilePath
		if rel, err := filepath.Rel(root, s.FilePath); err == nil {
			loc = filepath.ToSlash(rel)
		}
		if _, err := fmt.Fprintf(w, "%s  %s  %s:%d:%d\n",
			runewidth.FillRight(kindLabel(s), kindWidth),
			runewidth.FillRight(qualifiedName(s), nameWidth),
			loc, s.Line+1, s.Column+1); err != nil {
			return err
		}
	}
	return nil
}

func kindLabel(s index.SymbolEntry) string {
	if s.Detail != "" {
		return s.Detail
	}
	return s.Kind.String()
}

func qualifiedName(s index.SymbolEntry) string {
	if s.Container != "" {
		return s.Container + "." + s.Name
	}
	return s.Name
}
