// Command automata runs one registered sim in the background and serves it
// over the HTTP control API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/automata/internal/api"
	"github.com/talgya/automata/internal/config"
	"github.com/talgya/automata/internal/engine"
	"github.com/talgya/automata/internal/logging"
	"github.com/talgya/automata/internal/observability"
	"github.com/talgya/automata/internal/persistence"
	"github.com/talgya/automata/internal/rules"
	"github.com/talgya/automata/internal/sims"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		slog.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing)

	// ── Board ─────────────────────────────────────────────────────────
	board, err := sims.New(cfg.Sim, cfg.Params)
	if err != nil {
		slog.Error("failed to build sim", "sim", cfg.Sim, "available", sims.Names(), "error", err)
		os.Exit(1)
	}
	if cfg.Rules != "" {
		src, err := os.ReadFile(cfg.Rules)
		if err != nil {
			slog.Error("failed to read rules", "path", cfg.Rules, "error", err)
			os.Exit(1)
		}
		if err := rules.Apply(board, string(src)); err != nil {
			slog.Error("invalid rules", "path", cfg.Rules, "error", err)
			os.Exit(1)
		}
		slog.Info("rules applied", "path", cfg.Rules, "layers", board.Rules().Layers())
	}
	slog.Info("board ready",
		"sim", cfg.Sim,
		"size", fmt.Sprintf("%dx%d", board.Width(), board.Height()),
		"layers", board.LayerCount(),
		"agents", humanize.Comma(int64(board.AgentCount())),
	)

	// ── Metrics ───────────────────────────────────────────────────────
	metrics, err := observability.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("metrics init failed", "error", err)
		os.Exit(1)
	}
	board.Scheduler().SetObserver(metrics)
	metrics.ObserveBoard(board)

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.ResultsDB != "" {
		os.MkdirAll(filepath.Dir(cfg.ResultsDB), 0755)
		db, err = persistence.Open(cfg.ResultsDB)
		if err != nil {
			slog.Error("failed to open database", "path", cfg.ResultsDB, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.SaveMeta("last_sim", cfg.Sim); err != nil {
			slog.Warn("failed to save meta", "error", err)
		}
		if err := db.SaveMeta("started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("failed to save meta", "error", err)
		}
		slog.Info("database opened", "path", cfg.ResultsDB)
	}

	// ── Runner ────────────────────────────────────────────────────────
	runner := engine.NewRunner(board, cfg.Tick)
	runner.SetSpeed(cfg.Speed)
	var (
		lastSettled bool
		startedAt   = time.Now()
	)
	runner.OnTick = func(b *engine.Board) {
		metrics.ObserveStep(b)
		settled := !sims.Simulated(b)
		if settled && !lastSettled {
			slog.Info("sim settled", "step", humanize.Comma(int64(b.StepCount())),
				"after", humanize.RelTime(startedAt, time.Now(), "", ""))
			if db != nil {
				saveSnapshot(ctx, db, cfg.Sim, b)
			}
		}
		lastSettled = settled
	}
	board.OnReset(func(*engine.Board) error {
		lastSettled = false
		startedAt = time.Now()
		return nil
	})

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("AUTOMATA_ADMIN_KEY not set, control POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Runner:   runner,
		Sim:      cfg.Sim,
		Metrics:  metrics,
		DB:       db,
		Port:     cfg.Port,
		AdminKey: cfg.AdminKey,
	}
	srv := apiServer.Start()

	fmt.Printf("\n%s is running on a %dx%d board with %s agents.\n",
		cfg.Sim, board.Width(), board.Height(), humanize.Comma(int64(board.AgentCount())))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	fmt.Println("Stepping... (Ctrl+C to stop)")

	runErr := runner.Run(ctx)
	if runErr != nil {
		slog.Error("runner stopped on error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown failed", "error", err)
	}

	// Final snapshot on shutdown.
	if db != nil {
		runner.Do(func(b *engine.Board) error {
			saveSnapshot(context.Background(), db, cfg.Sim, b)
			return nil
		})
	}

	var steps int
	runner.Do(func(b *engine.Board) error {
		steps = b.StepCount()
		return nil
	})
	fmt.Printf("Stopped after %s steps.\n", humanize.Comma(int64(steps)))
	if runErr != nil {
		os.Exit(1)
	}
}

func saveSnapshot(ctx context.Context, db *persistence.DB, sim string, b *engine.Board) {
	if err := db.SaveSnapshot(ctx, api.Snapshot(sim, b)); err != nil {
		slog.Error("snapshot save failed", "error", err)
	}
}
