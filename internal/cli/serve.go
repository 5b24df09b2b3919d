package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/rangerwatch/internal/drift"
	"github.com/ppiankov/rangerwatch/internal/history"
	"github.com/ppiankov/rangerwatch/internal/metrics"
	"github.com/ppiankov/rangerwatch/internal/monitor"
	"github.com/ppiankov/rangerwatch/internal/notify"
	"github.com/ppiankov/rangerwatch/internal/policy"
	"github.com/ppiankov/rangerwatch/internal/probe"
	"github.com/ppiankov/rangerwatch/internal/ranger"
	"github.com/ppiankov/rangerwatch/internal/remediation"
	"github.com/ppiankov/rangerwatch/internal/store"
	"github.com/ppiankov/rangerwatch/internal/web"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	defaultConfigPath = "/etc/rangerwatch/config.yaml"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run checks continuously with a status page and /metrics",
	Long: `Start rangerwatch as a long-running service.

Every refreshEvery, runs all checks from the config file's checks list
against Ranger Admin (a few at a time) and serves the results over HTTP.

Endpoints:
  /                 Status page, worst checks first
  /metrics          Prometheus scrape endpoint
  /healthz          Liveness probe (503 before the first cycle or when stale)
  /api/v1/results   JSON results of the last cycle
  /api/v1/history   Recent cycle summaries (with --history-db)
  /api/v1/trend     Outcomes of one check over time, ?check=NAME (with --history-db)`,
	Example: `  # Run with the default config (/etc/rangerwatch/config.yaml)
  rangerwatch serve

  # Custom config and listen address, with history
  rangerwatch serve --config ./rangerwatch.yaml --listen :9090 --history-db /var/lib/rangerwatch/history.db

  # JSON logs for log aggregation
  rangerwatch serve --log-format json --log-level info`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addConnectionFlags(serveCmd)
	serveCmd.Flags().String("config", defaultConfigPath, "Path to config file")
	serveCmd.Flags().String("listen", "", "Listen address (overrides config)")
	serveCmd.Flags().String("history-db", "", "Path to SQLite history database (enables /api/v1/history and /api/v1/trend)")
}

// checkRunner runs one check.
type checkRunner interface {
	Run(ctx context.Context, spec store.CheckSpec, listing bool) (store.CheckResult, policy.Outcome)
}

// runCycle runs every check with at most limit in flight. Results keep the
// order of checks.
func runCycle(ctx context.Context, r checkRunner, checks []store.CheckSpec, limit int) store.Snapshot {
	results := make([]store.CheckResult, len(checks))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range checks {
		i := i
		g.Go(func() error {
			results[i], _ = r.Run(ctx, checks[i], false)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never fail; outcomes are in results
	return store.Snapshot{At: time.Now(), Results: results}
}

// runTicker calls cycle every interval until ctx is done. The returned
// channel is closed once the loop has exited and no cycle is running.
func runTicker(ctx context.Context, interval time.Duration, cycle func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cycle()
			}
		}
	}()
	return done
}

// serveConfigPath returns the config path to load. A missing file at the
// default path means "use defaults"; a missing explicit path is an error.
func serveConfigPath(cmd *cobra.Command) (string, error) {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if cfgPath == "" {
		return "", nil
	}
	if _, statErr := os.Stat(cfgPath); statErr != nil {
		if cfgPath == defaultConfigPath {
			return "", nil
		}
		return "", fmt.Errorf("config file not found: %s", cfgPath)
	}
	return cfgPath, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath, err := serveConfigPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadSettings(cmd, cfgPath, os.Getenv)
	if err != nil {
		return err
	}
	if len(cfg.Checks) == 0 {
		return errors.New("no checks configured: add a checks list to the config file")
	}

	listenFlag, _ := cmd.Flags().GetString("listen") //nolint:errcheck // flag registered above
	if listenFlag != "" {
		cfg.ListenAddr = listenFlag
	}
	historyDB, _ := cmd.Flags().GetString("history-db") //nolint:errcheck // flag registered above
	if historyDB != "" {
		cfg.HistoryDB = historyDB
	}

	var histStore *history.Store
	if cfg.HistoryDB != "" {
		var histErr error
		histStore, histErr = history.Open(cfg.HistoryDB)
		if histErr != nil {
			return fmt.Errorf("opening history database: %w", histErr)
		}
		defer histStore.Close() //nolint:errcheck // best-effort cleanup on shutdown
		slog.Info("history storage enabled", "path", cfg.HistoryDB)
	}

	tracer, shutdown := initTracing(cmd)
	defer flushTracing(shutdown)

	client, err := ranger.New(cfg.Ranger, ranger.WithTracer(tracer))
	if err != nil {
		return err
	}
	runner := probe.NewRunner(client, cfg.DisplayName,
		probe.WithTracer(tracer),
		probe.WithVerbose(client.Endpoint()),
	)

	notifier := notify.New(cfg.Notifications)

	var mu sync.RWMutex
	var currentSnap store.Snapshot

	getSnapshot := func() store.Snapshot {
		mu.RLock()
		defer mu.RUnlock()
		return currentSnap
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/", web.UIHandler(getSnapshot))
	mux.HandleFunc("/healthz", web.HealthzHandler(getSnapshot, 2*cfg.RefreshEvery))
	mux.HandleFunc("/api/v1/results", web.ResultsHandler(getSnapshot))
	if histStore != nil {
		mux.HandleFunc("/api/v1/history", web.HistoryHandler(histStore))
		mux.HandleFunc("/api/v1/trend", web.TrendHandler(histStore))
	}
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cycle := func() {
		start := time.Now()
		snap := runCycle(ctx, runner, cfg.Checks, cfg.Concurrency)
		duration := time.Since(start)
		remediation.Apply(snap.Results)

		mu.Lock()
		prev := currentSnap
		currentSnap = snap
		mu.Unlock()

		collector.Update(snap, duration)

		changes := drift.Detect(prev, snap)
		for i := range changes {
			slog.Warn("policy changed", "check", changes[i].Check,
				"kind", changes[i].Kind, "detail", changes[i].Detail)
		}
		collector.RecordChanges(changes)

		if histStore != nil {
			if saveErr := histStore.Save(snap); saveErr != nil {
				slog.Error("saving history snapshot", "err", saveErr)
			}
		}

		if notifier != nil {
			notifier.Notify(prev, snap)
		}

		counts := make(map[store.Severity]int, 4)
		for i := range snap.Results {
			counts[snap.Results[i].Severity]++
			if snap.Results[i].Severity != store.SeverityOK {
				slog.Warn("check not ok", "check", snap.Results[i].Check,
					"severity", snap.Results[i].Severity, "message", snap.Results[i].Message)
			}
		}
		slog.Info("check cycle complete", "checks", len(snap.Results),
			"worst", monitor.Worst(snap),
			"ok", counts[store.SeverityOK], "critical", counts[store.SeverityCritical],
			"unknown", counts[store.SeverityUnknown],
			"duration", duration.Round(time.Millisecond))
	}

	safeCycle := func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("check cycle panic recovered", "panic", r)
			}
		}()
		cycle()
	}

	safeCycle()

	loopDone := runTicker(ctx, cfg.RefreshEvery, safeCycle)
	// Registered after the history close, so it runs first: no cycle may
	// write to the store once it is closed.
	defer func() {
		stop()
		<-loopDone
	}()

	srvErr := make(chan error, 1)
	go func() {
		slog.Info("rangerwatch serve listening", "version", version, "addr", cfg.ListenAddr,
			"checks", len(cfg.Checks), "ranger", client.Endpoint())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}
