// Command ftpd is the startup binary: CLI flag handling, log file
// wiring, and opening the credentials database happen here rather than
// in package server, which only knows how to run a listener once handed
// a driver, a verifier and a root directory.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/ftpd/ftpd/internal/authdb"
	"github.com/ftpd/ftpd/internal/config"
	"github.com/ftpd/ftpd/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "/etc/ftpd/ftpd.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		return 1
	}
	defer closeLog()

	verifier, err := authdb.Open(cfg.CredentialsDB)
	if err != nil {
		logger.Error("failed to open credentials database", "error", err)
		return 1
	}
	defer verifier.Close()

	if err := os.MkdirAll(cfg.RootDir, 0755); err != nil {
		logger.Error("failed to create root directory", "error", err)
		return 1
	}

	opts := []server.Option{
		server.WithDriver(server.NewFSDriver()),
		server.WithVerifier(verifier),
		server.WithRootDir(cfg.RootDir),
		server.WithWorkers(cfg.Workers),
		server.WithLogger(logger),
		server.WithBandwidthLimit(cfg.BandwidthLimit),
		server.WithPassivePortRange(cfg.PasvPortMin, cfg.PasvPortMax),
	}

	var registry *prometheus.Registry
	if cfg.MetricsAddr != "" {
		registry = prometheus.NewRegistry()
		opts = append(opts, server.WithMetricsCollector(server.NewPrometheusMetrics(registry)))
	}

	srv, err := server.NewServer(cfg.ListenAddr, opts...)
	if err != nil {
		logger.Error("failed to construct server", "error", err)
		return 1
	}

	if registry != nil {
		go serveMetrics(cfg.MetricsAddr, registry, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", "error", err)
			return 1
		}
		return 0
	case <-sigCh:
		logger.Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
			return 1
		}
		return 0
	}
}

func newLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	var w *os.File = os.Stderr
	closeFn := func() error { return nil }
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = f.Close
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
