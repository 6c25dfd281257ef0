package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner drives a board forward on a wall-clock interval and serializes every
// other access to it. The board itself is single-threaded, so consumers on
// other goroutines (the HTTP API, a renderer) go through Do.
type Runner struct {
	mu    sync.Mutex
	board *Board

	interval time.Duration // Base tick interval
	speed    float64       // Multiplier: 1.0 = one step per interval, 0 = paused
	running  bool

	// OnTick runs after every successful step, under the runner lock.
	OnTick func(b *Board)
}

// NewRunner creates a paused-until-Run runner stepping once per interval.
func NewRunner(b *Board, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{
		board:    b,
		interval: interval,
		speed:    1.0,
	}
}

// Do runs fn with exclusive access to the board.
func (r *Runner) Do(fn func(b *Board) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.board)
}

// Step advances the board by one tick under the lock.
func (r *Runner) Step() error {
	return r.Do(r.step)
}

func (r *Runner) step(b *Board) error {
	if err := b.Step(); err != nil {
		return err
	}
	if r.OnTick != nil {
		r.OnTick(b)
	}
	return nil
}

// SetSpeed changes the speed multiplier. Zero or less pauses the loop.
func (r *Runner) SetSpeed(speed float64) {
	r.mu.Lock()
	r.speed = speed
	r.mu.Unlock()
}

// Speed returns the current speed multiplier.
func (r *Runner) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// Running reports whether Run is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Run steps the board until ctx is done or a step fails. The failing step's
// error is returned; cancellation returns nil.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.running = true
	slog.Info("runner started", "step", r.board.StepCount(), "speed", r.speed, "interval", r.interval)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		slog.Info("runner stopped", "step", r.board.StepCount())
		r.mu.Unlock()
	}()

	for {
		speed := r.Speed()
		if speed <= 0 {
			// Paused: check again shortly.
			if !sleepCtx(ctx, 100*time.Millisecond) {
				return nil
			}
			continue
		}

		start := time.Now()
		if err := r.Step(); err != nil {
			slog.Error("step failed", "error", err)
			return err
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		target := time.Duration(float64(r.interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if !sleepCtx(ctx, target-elapsed) {
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
