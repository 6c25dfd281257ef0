// Command sweep runs a batch experiment: every combination of parameter
// values on every board size, repeated, writing one row per run.
//
//	sweep -sim elementary -p rule=30|90|110 -p density=0.1|0.5 -sizes 50x50,100x100 -reps 3 -csv out.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/automata/internal/config"
	"github.com/talgya/automata/internal/experiment"
	"github.com/talgya/automata/internal/logging"
	"github.com/talgya/automata/internal/observability"
	"github.com/talgya/automata/internal/persistence"
	"github.com/talgya/automata/internal/sims"
)

// paramFlags collects repeated -p name=v1|v2|v3 flags.
type paramFlags map[string][]string

func (p paramFlags) String() string {
	parts := make([]string, 0, len(p))
	for k, vs := range p {
		parts = append(parts, k+"="+strings.Join(vs, "|"))
	}
	return strings.Join(parts, " ")
}

func (p paramFlags) Set(s string) error {
	name, values, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || values == "" {
		return fmt.Errorf("want name=v1|v2, got %q", s)
	}
	for _, v := range strings.Split(values, "|") {
		p[name] = append(p[name], strings.TrimSpace(v))
	}
	return nil
}

func main() {
	params := paramFlags{}
	sim := flag.String("sim", "elementary", "registered sim to sweep ("+strings.Join(sims.Names(), ", ")+")")
	flag.Var(params, "p", "parameter values as name=v1|v2 (repeatable)")
	sizes := flag.String("sizes", "50x50", "comma-separated board sizes as WxH")
	reps := flag.Int("reps", 1, "repetitions per combination and size")
	maxSteps := flag.Int("max-steps", 1000, "per-run step cap (0 = until the sim settles)")
	workers := flag.Int("workers", runtime.NumCPU(), "number of worker goroutines")
	csvPath := flag.String("csv", "", "write results to this CSV file")
	dbPath := flag.String("db", "", "append results to this SQLite database")
	flag.Parse()

	logging.Setup(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})

	plan := experiment.Plan{
		ID:          uuid.NewString(),
		Sim:         *sim,
		Data:        params,
		Repetitions: *reps,
		MaxSteps:    *maxSteps,
		Workers:     *workers,
	}
	for _, s := range strings.Split(*sizes, ",") {
		size, err := experiment.ParseSize(s)
		if err != nil {
			slog.Error("invalid size", "error", err)
			os.Exit(2)
		}
		plan.Sizes = append(plan.Sizes, size)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, config.TracingFromEnv())
	if err != nil {
		slog.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing)

	metrics, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		slog.Error("metrics init failed", "error", err)
		os.Exit(1)
	}

	var sinks []experiment.Sink
	var csvFile *experiment.CSVFile
	if *csvPath != "" {
		csvFile, err = experiment.CreateCSV(*csvPath)
		if err != nil {
			slog.Error("failed to create csv", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, csvFile)
	}

	var (
		db    *persistence.DB
		store *experiment.StoreSink
	)
	if *dbPath != "" {
		db, err = persistence.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open database", "path", *dbPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.SaveSweep(ctx, plan.ID, plan.Sim, plan.Total(), plan); err != nil {
			slog.Error("failed to save sweep", "error", err)
			os.Exit(1)
		}
		store = experiment.NewStoreSink(db, 0)
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		slog.Warn("no -csv or -db given, results are only logged")
	}

	h := experiment.NewHarness(sinks...)
	start := time.Now()
	h.OnResult = func(r experiment.Result, done, total int) {
		metrics.SweepRuns.Inc()
		slog.Debug("run finished", "run", r.Run, "size", r.Size, "steps", r.Steps, "settled", r.Settled, "took", r.Duration)
		if done%max(1, total/10) == 0 || done == total {
			slog.Info("sweep progress",
				"done", humanize.Comma(int64(done)),
				"total", humanize.Comma(int64(total)),
				"started", humanize.Time(start),
			)
		}
	}

	results, runErr := h.Run(ctx, plan)
	if runErr != nil {
		slog.Error("sweep failed", "sweep", plan.ID, "completed", len(results), "error", runErr)
	}

	// Whatever finished is still written out.
	if store != nil {
		if err := store.Flush(context.Background()); err != nil {
			slog.Error("failed to flush results", "error", err)
			runErr = err
		}
	}
	if csvFile != nil {
		if err := csvFile.Close(); err != nil {
			slog.Error("failed to write csv", "error", err)
			runErr = err
		}
	}

	settled, steps := 0, 0
	for _, r := range results {
		if r.Settled {
			settled++
		}
		steps += r.Steps
	}
	fmt.Printf("Sweep %s: %s runs (%s settled), %s steps in %s.\n",
		plan.ID,
		humanize.Comma(int64(len(results))),
		humanize.Comma(int64(settled)),
		humanize.Comma(int64(steps)),
		time.Since(start).Round(time.Millisecond),
	)
	if runErr != nil {
		os.Exit(1)
	}
}
