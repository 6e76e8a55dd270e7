package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"forgelsp/internal/forge"
	"forgelsp/internal/index"
	"forgelsp/internal/lsp"
	"forgelsp/internal/version"
)

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the language server over stdio",
	SilenceUsage: true,
	RunE:         runLSP,
}

func init() {
	lspCmd.Flags().Bool("disk-cache", false, "persist symbol scans under the user cache directory")
	lspCmd.Flags().Int("jobs", 0, "max parallel workers for project scans (0=auto)")
	lspCmd.Flags().Bool("watch", true, "watch build artifacts and configuration for changes")
	lspCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
}

func runLSP(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	profiling, err := startProfiling(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := profiling.Stop(); stopErr != nil {
			log.Warn("failed to write profiles", slog.String("error", stopErr.Error()))
		}
	}()

	flags := cmd.Flags()
	debounce, err := flags.GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("failed to get debounce flag: %w", err)
	}
	useDiskCache, err := flags.GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	watchFiles, err := flags.GetBool("watch")
	if err != nil {
		return fmt.Errorf("failed to get watch flag: %w", err)
	}
	metricsAddr, err := flags.GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("failed to get metrics-addr flag: %w", err)
	}

	var metrics *forge.Metrics
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = forge.NewMetrics(reg)
		stopMetrics := serveMetrics(metricsAddr, reg, log)
		defer stopMetrics()
	}

	runner, err := newRunner(cmd, log, metrics)
	if err != nil {
		return err
	}

	var disk *index.DiskCache
	if useDiskCache {
		disk, err = index.OpenDiskCache("forgelsp")
		if err != nil {
			log.Warn("disk cache disabled", slog.String("error", err.Error()))
			disk = nil
		}
	}

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Runner:    runner,
		Debounce:  debounce,
		DiskCache: disk,
		Jobs:      jobs,
		Watch:     watchFiles,
		Version:   version.Version,
		Logger:    log,
	})
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", slog.String("addr", addr), slog.String("error", err.Error()))
		}
	}()
	log.Info("serving metrics", slog.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
