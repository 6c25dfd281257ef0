package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// Phase is one operation of a tick. Phases run in registration order, each to
// completion before the next starts.
type Phase struct {
	Name string
	Run  func(b *Board) error
}

// PhaseObserver receives the wall-clock duration of every phase run. It is
// diagnostic only and cannot affect the step.
type PhaseObserver interface {
	ObservePhase(name string, d time.Duration)
}

// Default phases.
var (
	UpdatePhase = Phase{Name: "update", Run: updateAgents}
	CommitPhase = Phase{Name: "commit", Run: commitAgents}
)

// Scheduler is the ordered phase list run by Board.Step.
type Scheduler struct {
	phases   []Phase
	observer PhaseObserver
}

// NewScheduler returns a scheduler with the default update and commit phases.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	s.Restore()
	return s
}

// Append adds a phase after the existing ones.
func (s *Scheduler) Append(p Phase) {
	s.phases = append(s.phases, p)
}

// Clear removes every phase; Step then only advances the counter.
func (s *Scheduler) Clear() {
	s.phases = nil
}

// Restore resets the list to the default update and commit phases.
func (s *Scheduler) Restore() {
	s.phases = []Phase{UpdatePhase, CommitPhase}
}

// Phases returns a copy of the phase list.
func (s *Scheduler) Phases() []Phase {
	return append([]Phase(nil), s.phases...)
}

// SetObserver installs the phase timing observer. nil disables it.
func (s *Scheduler) SetObserver(o PhaseObserver) {
	s.observer = o
}

func (s *Scheduler) run(b *Board) error {
	var total time.Duration
	for _, p := range s.phases {
		start := time.Now()
		err := p.Run(b)
		took := time.Since(start)
		total += took

		if s.observer != nil {
			s.observer.ObservePhase(p.Name, took)
		}
		slog.Debug("phase finished", "step", b.stepCount, "phase", p.Name, "took", took)

		if err != nil {
			return fmt.Errorf("phase %s: %w", p.Name, err)
		}
	}
	slog.Debug("step finished", "step", b.stepCount, "took", total)
	return nil
}

// updateAgents runs every movable agent's behavior over a snapshot of the
// movable list. Agents removed earlier in the phase are skipped; agents added
// during the phase wait for the next tick.
func updateAgents(b *Board) error {
	for _, a := range b.registry.Movable() {
		if a.board != b {
			continue
		}
		if err := a.update(); err != nil {
			return err
		}
	}
	return nil
}

// commitAgents applies staged changes as if every agent acted at once:
// states first, then all staged moves together, then the update hooks of
// changed agents in insertion order. A failing hook stops the remaining ones.
func commitAgents(b *Board) error {
	var (
		live    []*Agent
		moves   []move
		changed = make(map[*Agent]bool)
	)
	for _, a := range b.registry.Movable() {
		if a.board != b {
			continue
		}
		live = append(live, a)
		if a.applyState() {
			changed[a] = true
		}
		if to, ok := a.takeMove(); ok {
			moves = append(moves, move{agent: a, from: a.pos, to: to})
		}
	}

	for _, a := range b.commitMoves(moves) {
		changed[a] = true
	}

	for _, a := range live {
		if !changed[a] || a.board != b {
			continue
		}
		if err := fireAgent("update", &a.onUpdate, a); err != nil {
			return err
		}
	}
	return nil
}
