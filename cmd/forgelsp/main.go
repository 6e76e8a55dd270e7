package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"forgelsp/internal/docstore"
	"forgelsp/internal/forge"
	"forgelsp/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "forgelsp",
	Short:         "Language server and diagnostics CLI for Foundry projects",
	Long:          `forgelsp runs forge on Solidity sources and serves diagnostics and lexical navigation over LSP`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// main registers subcommands and persistent flags, then executes the root
// command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("forge", "forge", "path to the forge executable")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.Duration("timeout", forge.DefaultTimeout, "timeout for a single forge invocation")
	flags.Duration("debounce", docstore.DefaultDebounce, "quiet period after an edit before analysis")
	flags.String("lint", "auto", "lint policy (auto|always|never)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a runtime trace to this file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		rootCmd.PrintErrln("error:", err)
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
