package sims

import (
	"errors"
	"slices"
	"testing"

	"github.com/talgya/automata/internal/engine"
)

func stepUntilSettled(t *testing.T, b *engine.Board, max int) int {
	t.Helper()
	for Simulated(b) {
		if b.StepCount() >= max {
			t.Fatalf("board still active after %d steps", max)
		}
		if err := b.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	return b.StepCount()
}

func TestRegistryHasBuiltins(t *testing.T) {
	names := Names()
	for _, want := range []string{"elementary", "life", "walkers"} {
		if !slices.Contains(names, want) {
			t.Fatalf("Names() = %v, missing %s", names, want)
		}
	}
	if _, err := New("nope", nil); !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("unknown sim err = %v", err)
	}
}

func TestMalformedParam(t *testing.T) {
	if _, err := New("life", map[string]string{"w": "wide"}); !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if _, err := New("elementary", map[string]string{"rule": "300"}); !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if _, err := New("walkers", map[string]string{"w": "0"}); !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("zero width err = %v, want ErrConfiguration", err)
	}
}

func TestElementaryRule90(t *testing.T) {
	b, err := New("elementary", map[string]string{
		"w": "9", "h": "5", "center": "true", "seed": "1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.AgentCount() != 45 {
		t.Fatalf("AgentCount = %d, want 45", b.AgentCount())
	}

	steps := stepUntilSettled(t, b, 20)
	if steps != 5 {
		t.Fatalf("settled after %d steps, want 5", steps)
	}

	row := func(y int) string {
		out := make([]byte, b.Width())
		for x := range out {
			a, _ := b.AgentAt(engine.Pos(x, y))
			out[x] = '.'
			if a.State() == StateAlive {
				out[x] = '#'
			}
		}
		return string(out)
	}
	want := []string{
		"....#....",
		"...#.#...",
		"..#...#..",
		".#.#.#.#.",
		"#.......#",
	}
	for i, w := range want {
		y := b.Height() - 1 - i
		if got := row(y); got != w {
			t.Fatalf("row %d = %s, want %s", y, got, w)
		}
	}
}

func TestElementaryResetRestartsRun(t *testing.T) {
	b, err := New("elementary", map[string]string{"w": "5", "h": "3", "center": "true"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stepUntilSettled(t, b, 10)
	if err := b.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !Simulated(b) || b.StepCount() != 0 || b.AgentCount() != 15 {
		t.Fatalf("after reset: simulated=%v step=%d agents=%d", Simulated(b), b.StepCount(), b.AgentCount())
	}
}

func TestLifeBlinker(t *testing.T) {
	b, err := engine.NewBoard(5, 5, 1)
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	behavior := LifeBehavior(false)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			state := StateDead
			if y == 2 && x >= 1 && x <= 3 {
				state = StateAlive
			}
			if _, err := b.Spawn(engine.Pos(x, y), state, 0, behavior); err != nil {
				t.Fatalf("spawn: %v", err)
			}
		}
	}

	state := func(x, y int) string {
		a, _ := b.AgentAt(engine.Pos(x, y))
		return a.State()
	}

	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	for y := 1; y <= 3; y++ {
		if state(2, y) != StateAlive {
			t.Fatalf("(2,%d) = %s after one step, want Alive", y, state(2, y))
		}
	}
	if state(1, 2) != StateDead || state(3, 2) != StateDead {
		t.Fatal("blinker arms survived")
	}
	if got := b.StateCounts()[StateAlive]; got != 3 {
		t.Fatalf("alive = %d, want 3", got)
	}

	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if state(1, 2) != StateAlive || state(2, 1) != StateDead {
		t.Fatal("blinker did not return to its first phase")
	}
}

func TestLifeSeedIsDeterministic(t *testing.T) {
	params := map[string]string{"w": "16", "h": "16", "seed": "42", "threshold": "0.5"}
	a, err := New("life", params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New("life", params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.StateCounts()[StateAlive] != b.StateCounts()[StateAlive] {
		t.Fatalf("same seed gave %v and %v", a.StateCounts(), b.StateCounts())
	}
	if a.AgentCount() != 256 {
		t.Fatalf("AgentCount = %d, want 256", a.AgentCount())
	}
}

func TestNoiseFieldRange(t *testing.T) {
	f := NewNoiseField(7)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := f.At(x, y)
			if v < 0 || v > 1 {
				t.Fatalf("At(%d,%d) = %f outside [0,1]", x, y, v)
			}
		}
	}
}

func TestWalkersStopAtWall(t *testing.T) {
	b, err := New("walkers", map[string]string{"w": "5", "h": "3", "wall": "3", "seed": "1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := b.Occupied(LayerWalls); got != 3 {
		t.Fatalf("walls = %d, want 3", got)
	}

	steps := stepUntilSettled(t, b, 20)
	if steps != 3 {
		t.Fatalf("settled after %d steps, want 3", steps)
	}
	for _, a := range b.Movable() {
		if a.Pos().X != 2 {
			t.Fatalf("walker %v stopped at x=%d, want 2", a, a.Pos().X)
		}
	}
}

func TestWalkersWrapNeverSettle(t *testing.T) {
	b, err := New("walkers", map[string]string{"w": "4", "h": "2", "walls": "0", "wrap": "true", "seed": "1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 6; i++ {
		if err := b.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if !Simulated(b) {
		t.Fatal("wrapping walkers settled")
	}
	for _, a := range b.Movable() {
		if a.Pos().X != 2 {
			t.Fatalf("walker at x=%d after 6 steps on width 4, want 2", a.Pos().X)
		}
	}
}
