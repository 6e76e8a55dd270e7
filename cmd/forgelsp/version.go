package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"forgelsp/internal/version"
)

type versionInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

type versionOptions struct {
	format   string
	showHash bool
	showDate bool
	forge    bool
}

type versionPayload struct {
	Tool         string `json:"tool"`
	Version      string `json:"version"`
	GitCommit    string `json:"git_commit,omitempty"`
	BuildDate    string `json:"build_date,omitempty"`
	ForgeVersion string `json:"forge_version,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show forgelsp build information",
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("hash", false, "include git commit hash")
	versionCmd.Flags().Bool("date", false, "include build timestamp")
	versionCmd.Flags().Bool("full", false, "show every recorded bit of build metadata")
	versionCmd.Flags().Bool("forge", false, "also run forge --version")
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	format, _ := flags.GetString("format")
	showHash, _ := flags.GetBool("hash")
	showDate, _ := flags.GetBool("date")
	full, _ := flags.GetBool("full")
	withForge, _ := flags.GetBool("forge")
	opts := versionOptions{
		format:   strings.ToLower(format),
		showHash: showHash || full,
		showDate: showDate || full,
		forge:    withForge || full,
	}
	switch opts.format {
	case "pretty", "json":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	forgeVersion := ""
	if opts.forge {
		log, err := newLogger(cmd)
		if err != nil {
			return err
		}
		runner, err := newRunner(cmd, log, nil)
		if err != nil {
			return err
		}
		info, err := runner.DetectVersion(cmd.Context())
		if err != nil {
			forgeVersion = "unavailable (" + err.Error() + ")"
		} else {
			forgeVersion = info.Raw
		}
	}

	info := collectVersionInfo()
	if opts.format == "json" {
		return renderVersionJSON(cmd.OutOrStdout(), info, opts, forgeVersion)
	}
	useColor, err := colorEnabled(cmd, os.Stdout)
	if err != nil {
		return err
	}
	if useColor {
		info.Version = version.Colored()
	}
	renderVersionPretty(cmd.OutOrStdout(), info, opts, forgeVersion)
	return nil
}

func collectVersionInfo() versionInfo {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	return versionInfo{
		Version:   v,
		GitCommit: strings.TrimSpace(version.GitCommit),
		BuildDate: strings.TrimSpace(version.BuildDate),
	}
}

func renderVersionPretty(out io.Writer, info versionInfo, opts versionOptions, forgeVersion string) {
	fmt.Fprintf(out, "forgelsp %s\n", info.Version)
	if opts.showHash {
		fmt.Fprintf(out, "commit: %s\n", valueOrUnknown(info.GitCommit))
	}
	if opts.showDate {
		fmt.Fprintf(out, "built:  %s\n", valueOrUnknown(info.BuildDate))
	}
	if opts.forge {
		fmt.Fprintf(out, "forge:  %s\n", valueOrUnknown(forgeVersion))
	}
}

func renderVersionJSON(out io.Writer, info versionInfo, opts versionOptions, forgeVersion string) error {
	payload := versionPayload{
		Tool:    "forgelsp",
		Version: info.Version,
	}
	if opts.showHash {
		payload.GitCommit = valueOrUnknown(info.GitCommit)
	}
	if opts.showDate {
		payload.BuildDate = valueOrUnknown(info.BuildDate)
	}
	if opts.forge {
		payload.ForgeVersion = valueOrUnknown(forgeVersion)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
