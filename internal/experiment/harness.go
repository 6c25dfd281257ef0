package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talgya/automata/internal/engine"
	"github.com/talgya/automata/internal/observability"
	"github.com/talgya/automata/internal/sims"
)

// Result is one run of one combination.
type Result struct {
	SweepID  string            `json:"sweep_id"`
	RunID    string            `json:"run_id"`
	Run      int               `json:"run"`
	Sim      string            `json:"sim"`
	Size     Size              `json:"size"`
	Steps    int               `json:"steps"`
	Duration time.Duration     `json:"duration"`
	Settled  bool              `json:"settled"` // Stopped by the sim rather than the step cap
	Data     map[string]string `json:"data"`
	Vars     map[string]string `json:"vars"`
	States   map[string]int    `json:"states"`
}

// Sink receives results as they complete. Record is only ever called from a
// single goroutine.
type Sink interface {
	Record(ctx context.Context, r Result) error
}

// Harness runs plans against the sim registry.
type Harness struct {
	sinks []Sink

	// OnResult, if set, is called after each result has reached every sink.
	OnResult func(r Result, done, total int)
}

// NewHarness creates a harness writing to the given sinks.
func NewHarness(sinks ...Sink) *Harness {
	return &Harness{sinks: sinks}
}

type job struct {
	index int // Position in the plan, used to number runs
	size  Size
	data  map[string]string
}

// Run executes the plan and returns every result ordered by run number.
// The first failure cancels the remaining work and is returned.
func (h *Harness) Run(ctx context.Context, p Plan) ([]Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	factory, ok := sims.Lookup(p.Sim)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sim %q", engine.ErrConfiguration, p.Sim)
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sweepID := p.ID
	if sweepID == "" {
		sweepID = uuid.NewString()
	}
	combos := Combinations(p.Data)
	total := len(combos) * len(p.Sizes) * p.Repetitions

	slog.Info("sweep started", "sweep", sweepID, "sim", p.Sim, "runs", total,
		"combinations", len(combos), "sizes", len(p.Sizes), "repetitions", p.Repetitions, "workers", workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job)
	results := make(chan Result)
	errc := make(chan error, workers+1)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := runJob(ctx, factory, p, sweepID, j, results); err != nil {
					errc <- err
					cancel()
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(jobs)
		n := 0
		for _, size := range p.Sizes {
			for _, data := range combos {
				select {
				case jobs <- job{index: n, size: size, data: data}:
				case <-ctx.Done():
					return
				}
				n++
			}
		}
	}()

	start := time.Now()
	var all []Result
	for r := range results {
		if ctx.Err() != nil {
			continue // Drain so workers can exit.
		}
		if err := h.record(ctx, r); err != nil {
			errc <- err
			cancel()
			continue
		}
		all = append(all, r)
		if h.OnResult != nil {
			h.OnResult(r, len(all), total)
		}
	}

	close(errc)
	var errs []error
	for err := range errc {
		if !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return all, errs[0]
	}
	if err := ctx.Err(); err != nil && len(all) < total {
		return all, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Run < all[j].Run })
	slog.Info("sweep finished", "sweep", sweepID, "runs", len(all), "took", time.Since(start))
	return all, nil
}

func (h *Harness) record(ctx context.Context, r Result) error {
	for _, s := range h.sinks {
		if err := s.Record(ctx, r); err != nil {
			return fmt.Errorf("record run %d: %w", r.Run, err)
		}
	}
	return nil
}

// runJob builds one board for the combination and runs every repetition on
// it, resetting in between.
func runJob(ctx context.Context, factory sims.Factory, p Plan, sweepID string, j job, out chan<- Result) error {
	params := maps.Clone(j.data)
	params["w"] = fmt.Sprint(j.size.W)
	params["h"] = fmt.Sprint(j.size.H)

	b, err := factory(params)
	if err != nil {
		return fmt.Errorf("build %s %s %v: %w", p.Sim, j.size, j.data, err)
	}

	for rep := 0; rep < p.Repetitions; rep++ {
		run := j.index*p.Repetitions + rep
		_, span := observability.StartSpan(ctx, "experiment.run",
			attribute.String("sim", p.Sim),
			attribute.String("size", j.size.String()),
			attribute.Int("run", run),
		)

		start := time.Now()
		if err := b.Reset(); err != nil {
			span.End()
			return fmt.Errorf("reset: %w", err)
		}
		settled, err := runToEnd(ctx, b, p.MaxSteps)
		span.SetAttributes(attribute.Int("steps", b.StepCount()), attribute.Bool("settled", settled))
		span.End()
		if err != nil {
			return err
		}
		r := Result{
			SweepID:  sweepID,
			RunID:    uuid.NewString(),
			Run:      run,
			Sim:      p.Sim,
			Size:     j.size,
			Steps:    b.StepCount(),
			Duration: time.Since(start),
			Settled:  settled,
			Data:     maps.Clone(j.data),
			Vars:     formatVars(b.Vars()),
			States:   b.StateCounts(),
		}
		slog.Debug("run finished", "run", r.Run, "size", j.size.String(), "steps", r.Steps, "took", r.Duration)

		select {
		case out <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// runToEnd steps until the sim settles or the cap is reached. A cap of zero
// means no cap.
func runToEnd(ctx context.Context, b *engine.Board, maxSteps int) (bool, error) {
	for sims.Simulated(b) {
		if maxSteps > 0 && b.StepCount() >= maxSteps {
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := b.Step(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func formatVars(vars map[string]any) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = fmt.Sprint(v)
	}
	return out
}
