package experiment

import (
	"context"
	"fmt"

	"github.com/talgya/automata/internal/persistence"
)

// RunStore is the slice of persistence.DB the store sink needs.
type RunStore interface {
	SaveRuns(ctx context.Context, runs []persistence.Run) error
}

// StoreSink writes results to a RunStore in batches.
type StoreSink struct {
	store   RunStore
	batch   int
	pending []persistence.Run
}

// NewStoreSink batches up to batch rows per transaction. Call Flush when the
// sweep ends.
func NewStoreSink(store RunStore, batch int) *StoreSink {
	if batch <= 0 {
		batch = 64
	}
	return &StoreSink{store: store, batch: batch}
}

// Record queues r and writes the batch once it is full.
func (s *StoreSink) Record(ctx context.Context, r Result) error {
	s.pending = append(s.pending, persistence.Run{
		RunID:    r.RunID,
		SweepID:  r.SweepID,
		Run:      r.Run,
		Sim:      r.Sim,
		Width:    r.Size.W,
		Height:   r.Size.H,
		Steps:    r.Steps,
		Duration: r.Duration,
		Settled:  r.Settled,
		Data:     r.Data,
		Vars:     r.Vars,
		States:   r.States,
	})
	if len(s.pending) < s.batch {
		return nil
	}
	return s.Flush(ctx)
}

// Flush writes any queued rows.
func (s *StoreSink) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.store.SaveRuns(ctx, s.pending); err != nil {
		return fmt.Errorf("save %d runs: %w", len(s.pending), err)
	}
	s.pending = s.pending[:0]
	return nil
}
