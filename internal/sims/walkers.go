package sims

import (
	"image/color"
	"math/rand"

	"github.com/talgya/automata/internal/engine"
	"github.com/talgya/automata/internal/rules"
)

// Walker layers.
const (
	LayerWalkers = 0
	LayerWalls   = 1
)

// StateWall labels wall agents.
const StateWall = "Wall"

const walkerRules = `
layer 0 {
	1: wall;
	0: wall;
}
`

// Walkers starts one walker per row at the left edge. Each tick every walker
// steps right until a wall or the board edge stops it.
type Walkers struct {
	Width     int
	Height    int
	WallX     int     // Column of the wall
	WallRatio float64 // Chance each row gets a wall cell
	Wrap      bool    // Walk around the board instead of stopping at the edge
	Seed      int64
}

// WalkersFromParams reads w, h, wall, walls, wrap and seed.
func WalkersFromParams(m map[string]string) (Walkers, error) {
	p := newParams(m)
	w := Walkers{
		Width:     p.int("w", 10),
		Height:    p.int("h", 10),
		WallRatio: p.float("walls", 1),
		Wrap:      p.bool("wrap", false),
		Seed:      p.seed(),
	}
	w.WallX = p.int("wall", w.Width-1)
	return w, p.err
}

// Build creates the two-layer board and populates it.
func (w Walkers) Build() (*engine.Board, error) {
	b, err := engine.NewBoard(w.Width, w.Height, 2)
	if err != nil {
		return nil, err
	}
	if err := rules.Apply(b, walkerRules); err != nil {
		return nil, err
	}
	b.Palette()[StateWall] = color.RGBA{R: 200, G: 80, B: 60, A: 255}
	b.Vars()[VarFramerate] = 0.2

	rng := rand.New(rand.NewSource(w.Seed))
	act := &activity{}
	b.Scheduler().Append(act.phase())

	step := func(a *engine.Agent) error {
		if w.Wrap {
			a.MoveWrap(engine.Pos(1, 0))
		} else {
			a.Move(engine.Pos(1, 0))
		}
		return nil
	}

	b.OnReset(func(b *engine.Board) error {
		act.start(b)
		for y := 0; y < b.Height(); y++ {
			if w.WallX > 0 && w.WallX < b.Width() && rng.Float64() < w.WallRatio {
				if _, err := b.SpawnStatic(engine.Pos(w.WallX, y), StateWall, LayerWalls); err != nil {
					return err
				}
			}
			a, err := b.Spawn(engine.Pos(0, y), StateAlive, LayerWalkers, step)
			if err != nil {
				return err
			}
			act.watch(a)
		}
		return nil
	})
	if err := b.Reset(); err != nil {
		return nil, err
	}
	return b, nil
}

func init() {
	Register("walkers", func(m map[string]string) (*engine.Board, error) {
		w, err := WalkersFromParams(m)
		if err != nil {
			return nil, err
		}
		return w.Build()
	})
}
