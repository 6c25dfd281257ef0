package sims

import (
	"github.com/talgya/automata/internal/engine"
)

// Cell states shared by the two-state automata.
const (
	StateAlive = "Alive"
	StateDead  = "Dead"
)

// Life is Conway's B3/S23 on a board seeded from a noise field.
type Life struct {
	Width     int
	Height    int
	Threshold float64 // Cells whose noise exceeds this start alive
	Wrap      bool
	Seed      int64
}

// LifeFromParams reads w, h, threshold, wrap and seed.
func LifeFromParams(m map[string]string) (Life, error) {
	p := newParams(m)
	l := Life{
		Width:     p.int("w", 64),
		Height:    p.int("h", 64),
		Threshold: p.float("threshold", 0.55),
		Wrap:      p.bool("wrap", true),
		Seed:      p.seed(),
	}
	return l, p.err
}

// Build creates the board and populates it. Every reset draws a fresh noise
// field from the seed sequence.
func (l Life) Build() (*engine.Board, error) {
	b, err := engine.NewBoard(l.Width, l.Height, 1)
	if err != nil {
		return nil, err
	}
	b.Vars()[VarFramerate] = 0.1

	act := &activity{}
	b.Scheduler().Append(act.phase())
	behavior := LifeBehavior(l.Wrap)
	seed := l.Seed

	b.OnReset(func(b *engine.Board) error {
		act.start(b)
		field := NewNoiseField(seed)
		seed++
		for y := 0; y < b.Height(); y++ {
			for x := 0; x < b.Width(); x++ {
				state := StateDead
				if field.At(x, y) > l.Threshold {
					state = StateAlive
				}
				a, err := b.Spawn(engine.Pos(x, y), state, 0, behavior)
				if err != nil {
					return err
				}
				act.watch(a)
			}
		}
		return nil
	})
	if err := b.Reset(); err != nil {
		return nil, err
	}
	return b, nil
}

// LifeBehavior stages the B3/S23 transition for one cell.
func LifeBehavior(wrap bool) engine.Behavior {
	isAlive := func(a *engine.Agent) bool { return a.State() == StateAlive }
	return func(a *engine.Agent) error {
		n := a.CountNeighbors(1, wrap, isAlive)
		switch {
		case a.State() == StateAlive && (n < 2 || n > 3):
			a.SetState(StateDead)
		case a.State() == StateDead && n == 3:
			a.SetState(StateAlive)
		}
		return nil
	}
}

func init() {
	Register("life", func(m map[string]string) (*engine.Board, error) {
		l, err := LifeFromParams(m)
		if err != nil {
			return nil, err
		}
		return l.Build()
	})
}
