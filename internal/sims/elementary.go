package sims

import (
	"fmt"
	"math/rand"

	"github.com/talgya/automata/internal/engine"
)

// Elementary is a one-dimensional Wolfram automaton drawn top-down: the top
// row is the seed and every other row takes the rule of the three cells
// above it, wrapping horizontally.
type Elementary struct {
	Width   int
	Height  int
	Rule    uint8
	Density float64 // Chance a top-row cell starts alive
	Center  bool    // Seed a single live cell instead of a random row
	Seed    int64
}

// ElementaryFromParams reads w, h, rule, density, center and seed.
func ElementaryFromParams(m map[string]string) (Elementary, error) {
	p := newParams(m)
	e := Elementary{
		Width:   p.int("w", 50),
		Height:  p.int("h", 50),
		Density: p.float("density", 0.1),
		Center:  p.bool("center", false),
		Seed:    p.seed(),
	}
	rule := p.int("rule", 90)
	if p.err != nil {
		return e, p.err
	}
	if rule < 0 || rule > 255 {
		return e, fmt.Errorf("%w: rule %d outside [0,255]", engine.ErrConfiguration, rule)
	}
	e.Rule = uint8(rule)
	return e, nil
}

// Build creates the board and populates it.
func (e Elementary) Build() (*engine.Board, error) {
	b, err := engine.NewBoard(e.Width, e.Height, 1)
	if err != nil {
		return nil, err
	}
	b.Vars()[VarFramerate] = 0.05

	rng := rand.New(rand.NewSource(e.Seed))
	act := &activity{}
	b.Scheduler().Append(act.phase())
	behavior := e.behavior()

	b.OnReset(func(b *engine.Board) error {
		act.start(b)
		top := b.Height() - 1
		for y := 0; y < b.Height(); y++ {
			for x := 0; x < b.Width(); x++ {
				state := StateDead
				if y == top && e.seeded(x, rng) {
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

func (e Elementary) seeded(x int, rng *rand.Rand) bool {
	if e.Center {
		return x == e.Width/2
	}
	return rng.Float64() < e.Density
}

func (e Elementary) behavior() engine.Behavior {
	return func(a *engine.Agent) error {
		if a.Pos().Y == a.Board().Height()-1 {
			return nil
		}
		n := a.Neighbors(1, true)
		idx := alive(n[0])<<2 | alive(n[1])<<1 | alive(n[2])
		if (e.Rule>>idx)&1 == 1 {
			a.SetState(StateAlive)
		} else {
			a.SetState(StateDead)
		}
		return nil
	}
}

func alive(a *engine.Agent) uint8 {
	if a != nil && a.State() == StateAlive {
		return 1
	}
	return 0
}

func init() {
	Register("elementary", func(m map[string]string) (*engine.Board, error) {
		e, err := ElementaryFromParams(m)
		if err != nil {
			return nil, err
		}
		return e.Build()
	})
}
