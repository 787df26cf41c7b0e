package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"github.com/verylucky01/repo-sync/syncer"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "source",
			Sources: cli.EnvVars("SOURCE_REPO_URL"),
			Usage:   "Source repository URL to mirror from.",
		},
		&cli.StringFlag{
			Name:    "target",
			Sources: cli.EnvVars("TARGET_REPO_URL"),
			Usage:   "Target repository URL to mirror to.",
		},
		&cli.StringFlag{
			Name:    "target-token",
			Sources: cli.EnvVars("TARGET_REPO_TOKEN"),
			Usage:   "Auth token for the target repository.",
		},
		&cli.StringFlag{
			Name:    "local-path",
			Sources: cli.EnvVars("LOCAL_REPO_PATH"),
			Usage:   "Path of the local workspace directory.",
		},
		&cli.StringFlag{
			Name:    "branch",
			Sources: cli.EnvVars("REPO_BRANCH"),
			Usage:   "Branch mirrored from source to target, default 'master'.",
		},
		&cli.IntFlag{
			Name:    "sync-interval",
			Sources: cli.EnvVars("SYNC_INTERVAL"),
			Usage:   "Seconds between sync runs, default 60.",
		},
		&cli.BoolFlag{
			Name:    "once",
			Sources: cli.EnvVars("SYNC_ONCE"),
			Usage:   "Run a single sync and exit instead of scheduling.",
		},
		&cli.StringFlag{
			Name:    "config",
			Sources: cli.EnvVars("REPO_SYNC_CONFIG"),
			Usage:   "Path to an optional YAML config file, env vars and flags take precedence.",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
			Usage:   "Log level",
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Sources: cli.EnvVars("METRICS_ADDR"),
			Usage:   "Listen address for prometheus metrics, disabled when empty.",
		},
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

func main() {
	// optional .env for local runs, must happen before flags are parsed
	// as env vars are flag sources
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:   "repo-sync",
		Usage:  "repo-sync periodically mirrors a source git repository to a target remote.",
		Flags:  flags,
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("failed to run app", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	// set log level according to argument
	if v, ok := levelStrings[strings.ToLower(c.String("log-level"))]; ok {
		loggerLevel.Set(v)
	}

	conf, err := buildConfig(c)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	syncer.EnableMetrics("repo_sync", registry)
	registry.MustRegister(configSuccess, configSuccessTime)

	if addr := c.String("metrics-addr"); addr != "" {
		go serveMetrics(addr, registry)
	}

	// git resolves binaries and its global config through these
	gitENVs := []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
		fmt.Sprintf("HOME=%s", os.Getenv("HOME")),
	}

	s, err := syncer.New(*conf, gitENVs, logger.With("logger", "repo-sync"))
	if err != nil {
		logger.Error("could not create syncer", "err", err)
		os.Exit(1)
	}

	if c.Bool("once") {
		return s.Sync(ctx)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// start sync loop
	go s.StartLoop(loopCtx)

	// listenForShutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")
	cancel()
	s.Stop()

	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "err", err)
	}
}
