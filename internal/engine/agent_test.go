package engine

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

func TestMoveCommitsOnStep(t *testing.T) {
	b := newTestBoard(t, 3, 3, 1)
	a, err := b.Spawn(Pos(0, 0), "Alive", 0, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if !a.Move(Pos(1, 0)) {
		t.Fatal("Move into an empty in-bounds slot reported false")
	}
	if a.Pos() != Pos(0, 0) {
		t.Fatalf("position changed before commit: %s", a.Pos())
	}
	if next, ok := a.NextPos(); !ok || next != Pos(1, 0) {
		t.Fatalf("NextPos = %s, %v", next, ok)
	}

	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if a.Pos() != Pos(1, 0) {
		t.Fatalf("Pos = %s after step, want (1, 0)", a.Pos())
	}
	if _, ok := b.AgentAt(Pos(0, 0)); ok {
		t.Fatal("old slot still occupied")
	}
	if got, _ := b.AgentAt(Pos(1, 0)); got != a {
		t.Fatal("new slot does not hold the agent")
	}
	if _, ok := a.NextPos(); ok {
		t.Fatal("staged position not cleared by commit")
	}
}

func TestMoveOutOfBounds(t *testing.T) {
	b := newTestBoard(t, 3, 3, 1)
	a, _ := b.Spawn(Pos(0, 0), "Alive", 0, nil)

	if a.Move(Pos(-1, 0)) {
		t.Fatal("Move off the board reported true")
	}
	if _, ok := a.NextPos(); ok {
		t.Fatal("failed move staged a position")
	}
	if !a.MoveWrap(Pos(-1, -1)) {
		t.Fatal("MoveWrap reported false")
	}
	if next, _ := a.NextPos(); next != Pos(2, 2) {
		t.Fatalf("wrapped target = %s, want (2, 2)", next)
	}
}

func TestWallBlocksMove(t *testing.T) {
	b := newTestBoard(t, 3, 3, 2)
	if err := b.AddCollision(0, 1, CollisionWall); err != nil {
		t.Fatalf("AddCollision: %v", err)
	}
	a, _ := b.Spawn(Pos(0, 1), "Alive", 0, nil)
	if _, err := b.SpawnStatic(Pos(1, 1), "Wall", 1); err != nil {
		t.Fatalf("spawn wall: %v", err)
	}

	if a.Move(Pos(1, 0)) {
		t.Fatal("Move into a wall reported true")
	}
	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if a.Pos() != Pos(0, 1) {
		t.Fatalf("Pos = %s, want (0, 1)", a.Pos())
	}

	// Moving elsewhere is unaffected.
	if !a.Move(Pos(0, 1)) {
		t.Fatal("Move to a free slot reported false")
	}
}

func TestInfoCollisionDoesNotBlock(t *testing.T) {
	b := newTestBoard(t, 3, 1, 2)
	b.AddCollision(0, 1, CollisionInfo)
	a, _ := b.Spawn(Pos(0, 0), "Alive", 0, nil)
	b.SpawnStatic(Pos(1, 0), "Marker", 1)

	got := a.CheckCollisions(Pos(1, 0))
	if !got.Has(CollisionInfo) || got.Has(CollisionWall) {
		t.Fatalf("CheckCollisions = %v, want info only", got.Kinds())
	}
	if !a.Move(Pos(1, 0)) {
		t.Fatal("info collision blocked the move")
	}
}

func TestStaticNeighborWallScenario(t *testing.T) {
	b := newTestBoard(t, 3, 3, 1)
	if err := b.AddCollision(0, 0, CollisionWall); err != nil {
		t.Fatalf("AddCollision: %v", err)
	}
	blocker, err := b.SpawnStatic(Pos(1, 0), "Wall", 0)
	if err != nil {
		t.Fatalf("spawn static: %v", err)
	}
	a, err := b.Spawn(Pos(1, 1), "Alive", 0, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if a.Move(Pos(0, -1)) {
		t.Fatal("Move onto the static agent reported true")
	}
	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if a.Pos() != Pos(1, 1) {
		t.Fatalf("Pos = %s, want (1, 1)", a.Pos())
	}
	if blocker.Pos() != Pos(1, 0) {
		t.Fatalf("static agent moved to %s", blocker.Pos())
	}
	// The agent's own slot never collides with itself.
	if c := a.CheckCollisions(a.Pos()); !c.Empty() {
		t.Fatalf("self collision = %v", c.Kinds())
	}
}

func TestStaticAgentNeverStages(t *testing.T) {
	b := newTestBoard(t, 3, 3, 1)
	s, _ := b.SpawnStatic(Pos(1, 1), "Wall", 0)
	if s.SetState("Alive") {
		t.Fatal("static SetState reported true")
	}
	if s.Move(Pos(1, 0)) {
		t.Fatal("static Move reported true")
	}
	if len(b.Movable()) != 0 {
		t.Fatalf("Movable() = %v, want none", b.Movable())
	}
	if err := s.Kill(); err != nil {
		t.Fatalf("Kill static: %v", err)
	}
}

func TestUnregisteredAgentCannotMove(t *testing.T) {
	a := NewAgent(Pos(0, 0), "Alive", 0, nil)
	if a.Move(Pos(1, 0)) {
		t.Fatal("unregistered Move reported true")
	}
	if err := a.Kill(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Kill unregistered err = %v, want ErrNotFound", err)
	}
}

func TestStagedChangesAreInvisibleUntilCommit(t *testing.T) {
	b := newTestBoard(t, 3, 1, 1)
	var seen []string
	left, _ := b.Spawn(Pos(0, 0), "Dead", 0, func(a *Agent) error {
		a.SetState("Alive")
		return nil
	})
	b.Spawn(Pos(1, 0), "Dead", 0, func(a *Agent) error {
		n, _ := a.Board().AgentAt(Pos(0, 0))
		seen = append(seen, n.State())
		return nil
	})

	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !slices.Equal(seen, []string{"Dead"}) {
		t.Fatalf("neighbor saw %v during update, want committed Dead", seen)
	}
	if left.State() != "Alive" {
		t.Fatalf("State = %q after commit", left.State())
	}
}

// moverSpec is an agent that stages one move by delta every tick.
type moverSpec struct {
	pos   Position
	layer int
	delta Position
}

// stepMovers spawns specs, in reverse when asked, runs one step and checks
// that every agent's slot points back at it. Agents return in spec order.
func stepMovers(t *testing.T, w, h, layers int, walls [][2]int, specs []moverSpec, reversed bool) (*Board, []*Agent) {
	t.Helper()
	b := newTestBoard(t, w, h, layers)
	for _, wl := range walls {
		if err := b.AddCollision(wl[0], wl[1], CollisionWall); err != nil {
			t.Fatalf("AddCollision: %v", err)
		}
	}
	agents := make([]*Agent, len(specs))
	order := make([]int, len(specs))
	for i := range order {
		order[i] = i
	}
	if reversed {
		slices.Reverse(order)
	}
	for _, i := range order {
		delta := specs[i].delta
		a, err := b.Spawn(specs[i].pos, "Alive", specs[i].layer, func(a *Agent) error {
			a.Move(delta)
			return nil
		})
		if err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
		agents[i] = a
	}
	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	for i, a := range agents {
		if got, ok := b.AgentGet(a.Pos(), a.Layer(), false); !ok || got != a {
			t.Fatalf("agent %d at %s layer %d: slot holds %v", i, a.Pos(), a.Layer(), got)
		}
		if _, ok := a.NextPos(); ok {
			t.Fatalf("agent %d kept a staged position", i)
		}
	}
	occupied := 0
	for l := 0; l < layers; l++ {
		occupied += b.Occupied(l)
	}
	if n := b.AgentCount(); n != len(specs) || occupied != n {
		t.Fatalf("AgentCount = %d, occupied slots = %d, want %d", n, occupied, len(specs))
	}
	return b, agents
}

// assertMovers checks the committed positions for both insertion orders.
func assertMovers(t *testing.T, w, h, layers int, walls [][2]int, specs []moverSpec, want []Position) {
	t.Helper()
	for _, reversed := range []bool{false, true} {
		_, agents := stepMovers(t, w, h, layers, walls, specs, reversed)
		for i, a := range agents {
			if a.Pos() != want[i] {
				t.Fatalf("reversed=%v: agent %d at %s, want %s", reversed, i, a.Pos(), want[i])
			}
		}
	}
}

func TestCommitChainFollowsLeader(t *testing.T) {
	assertMovers(t, 3, 1, 1, nil,
		[]moverSpec{
			{pos: Pos(1, 0), delta: Pos(1, 0)}, // leader
			{pos: Pos(0, 0), delta: Pos(1, 0)}, // follower
		},
		[]Position{Pos(2, 0), Pos(1, 0)},
	)
}

func TestCommitChainBlockedAtHead(t *testing.T) {
	// The leader walks off the board edge, so it stays and blocks the rest.
	assertMovers(t, 4, 1, 1, nil,
		[]moverSpec{
			{pos: Pos(3, 0), delta: Pos(1, 0)},
			{pos: Pos(2, 0), delta: Pos(1, 0)},
			{pos: Pos(1, 0), delta: Pos(1, 0)},
			{pos: Pos(0, 0), delta: Pos(1, 0)},
		},
		[]Position{Pos(3, 0), Pos(2, 0), Pos(1, 0), Pos(0, 0)},
	)
}

func TestCommitSwap(t *testing.T) {
	assertMovers(t, 2, 1, 1, nil,
		[]moverSpec{
			{pos: Pos(0, 0), delta: Pos(1, 0)},
			{pos: Pos(1, 0), delta: Pos(-1, 0)},
		},
		[]Position{Pos(1, 0), Pos(0, 0)},
	)
}

func TestCommitRotation(t *testing.T) {
	// Four agents cycling around a 2x2 block.
	assertMovers(t, 2, 2, 1, nil,
		[]moverSpec{
			{pos: Pos(0, 0), delta: Pos(1, 0)},
			{pos: Pos(1, 0), delta: Pos(0, 1)},
			{pos: Pos(1, 1), delta: Pos(-1, 0)},
			{pos: Pos(0, 1), delta: Pos(0, -1)},
		},
		[]Position{Pos(1, 0), Pos(1, 1), Pos(0, 1), Pos(0, 0)},
	)
}

func TestCommitContestedSlotKeepsClaimantsHome(t *testing.T) {
	assertMovers(t, 3, 1, 1, nil,
		[]moverSpec{
			{pos: Pos(0, 0), delta: Pos(1, 0)},
			{pos: Pos(2, 0), delta: Pos(-1, 0)},
		},
		[]Position{Pos(0, 0), Pos(2, 0)},
	)
}

func TestCommitDroppedMoveBlocksFollower(t *testing.T) {
	// Two claim (2,0) and both stay; the agent behind the left one must stay too.
	assertMovers(t, 5, 1, 1, nil,
		[]moverSpec{
			{pos: Pos(1, 0), delta: Pos(1, 0)},
			{pos: Pos(3, 0), delta: Pos(-1, 0)},
			{pos: Pos(0, 0), delta: Pos(1, 0)},
		},
		[]Position{Pos(1, 0), Pos(3, 0), Pos(0, 0)},
	)
}

func TestCommitLayersMoveIndependently(t *testing.T) {
	// Without rules, agents on different layers may share a position.
	assertMovers(t, 3, 1, 2, nil,
		[]moverSpec{
			{pos: Pos(0, 0), layer: 0, delta: Pos(1, 0)},
			{pos: Pos(2, 0), layer: 1, delta: Pos(-1, 0)},
			{pos: Pos(1, 0), layer: 1, delta: Pos(-1, 0)},
		},
		[]Position{Pos(1, 0), Pos(1, 0), Pos(0, 0)},
	)
}

func TestCommitWallAfterOtherLayerMoves(t *testing.T) {
	// Layer 0 treats layer 1 as wall. Both target (1,0) and stage fine, but
	// once the blocker lands there the walker would sit on a wall.
	b, agents := stepMovers(t, 3, 1, 2, [][2]int{{0, 1}},
		[]moverSpec{
			{pos: Pos(2, 0), layer: 1, delta: Pos(-1, 0)}, // blocker
			{pos: Pos(0, 0), layer: 0, delta: Pos(1, 0)},  // walker
		}, false)
	blocker, walker := agents[0], agents[1]
	if blocker.Pos() != Pos(1, 0) {
		t.Fatalf("blocker at %s, want (1, 0)", blocker.Pos())
	}
	if walker.Pos() != Pos(0, 0) {
		t.Fatalf("walker at %s, want (0, 0)", walker.Pos())
	}
	if walker.CheckCollisions(walker.Pos()).Has(CollisionWall) {
		t.Fatal("walker committed onto a wall")
	}
	if got, ok := b.AgentGet(Pos(1, 0), 0, false); ok {
		t.Fatalf("layer 0 at (1, 0) holds %v", got)
	}

	assertMovers(t, 3, 1, 2, [][2]int{{0, 1}},
		[]moverSpec{
			{pos: Pos(2, 0), layer: 1, delta: Pos(-1, 0)},
			{pos: Pos(0, 0), layer: 0, delta: Pos(1, 0)},
		},
		[]Position{Pos(1, 0), Pos(0, 0)},
	)
}

func TestCommitWallClaimantsThatDropDoNotBlock(t *testing.T) {
	// Two layer-1 agents contest (1,0) and stay home, so it is no wall for
	// the walker.
	assertMovers(t, 3, 2, 2, [][2]int{{0, 1}},
		[]moverSpec{
			{pos: Pos(1, 1), layer: 1, delta: Pos(0, -1)},
			{pos: Pos(2, 0), layer: 1, delta: Pos(-1, 0)},
			{pos: Pos(0, 0), layer: 0, delta: Pos(1, 0)},
		},
		[]Position{Pos(1, 1), Pos(2, 0), Pos(1, 0)},
	)
}

func TestCommitChainAcrossLayers(t *testing.T) {
	// Layer 0 treats layer 1 as wall. The walker right behind the layer-1 head
	// cannot stage into it and stays, which blocks the walker behind it.
	assertMovers(t, 4, 1, 2, [][2]int{{0, 1}},
		[]moverSpec{
			{pos: Pos(2, 0), layer: 1, delta: Pos(1, 0)},
			{pos: Pos(1, 0), layer: 0, delta: Pos(1, 0)},
			{pos: Pos(0, 0), layer: 0, delta: Pos(1, 0)},
		},
		[]Position{Pos(3, 0), Pos(1, 0), Pos(0, 0)},
	)
}

func TestUpdateHooksFireOnlyOnChange(t *testing.T) {
	b := newTestBoard(t, 3, 1, 1)
	a, _ := b.Spawn(Pos(0, 0), "Dead", 0, nil)

	var calls []string
	a.OnUpdate(func(got *Agent) error {
		calls = append(calls, "first:"+got.State())
		return nil
	})
	id := a.OnUpdate(func(got *Agent) error {
		calls = append(calls, "second")
		return nil
	})

	a.SetState("Dead")
	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("hooks fired on an unchanged state: %v", calls)
	}

	a.SetState("Alive")
	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !slices.Equal(calls, []string{"first:Alive", "second"}) {
		t.Fatalf("hook calls = %v", calls)
	}

	calls = nil
	a.RemoveUpdateHook(id)
	a.Move(Pos(1, 0))
	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !slices.Equal(calls, []string{"first:Alive"}) {
		t.Fatalf("hook calls after removal = %v", calls)
	}
}

func TestBehaviorErrorStopsStep(t *testing.T) {
	b := newTestBoard(t, 3, 1, 1)
	boom := errors.New("boom")
	ran := false
	b.Spawn(Pos(0, 0), "Alive", 0, func(*Agent) error { return boom })
	b.Spawn(Pos(1, 0), "Alive", 0, func(*Agent) error { ran = true; return nil })

	err := b.Step()
	if !errors.Is(err, boom) {
		t.Fatalf("Step err = %v, want boom", err)
	}
	if ran {
		t.Fatal("later behavior ran after a failure")
	}
	if b.StepCount() != 0 {
		t.Fatalf("StepCount = %d after failed step, want 0", b.StepCount())
	}
}

func TestUpdateHookErrorStopsLaterHooks(t *testing.T) {
	b := newTestBoard(t, 3, 1, 1)
	boom := errors.New("boom")
	a, _ := b.Spawn(Pos(0, 0), "Dead", 0, func(a *Agent) error { a.SetState("Alive"); return nil })
	c, _ := b.Spawn(Pos(1, 0), "Dead", 0, func(a *Agent) error { a.SetState("Alive"); return nil })
	a.OnUpdate(func(*Agent) error { return boom })
	fired := false
	c.OnUpdate(func(*Agent) error { fired = true; return nil })

	if err := b.Step(); !errors.Is(err, boom) {
		t.Fatalf("Step err = %v, want boom", err)
	}
	if a.State() != "Alive" || c.State() != "Alive" {
		t.Fatal("failing hook rolled back the commit")
	}
	if fired {
		t.Fatal("later hook fired after a failing one")
	}
	if b.StepCount() != 0 {
		t.Fatalf("StepCount = %d after failed step, want 0", b.StepCount())
	}
}

func TestAgentKilledMidUpdateIsSkipped(t *testing.T) {
	b := newTestBoard(t, 3, 1, 1)
	var victim *Agent
	ran := false
	b.Spawn(Pos(0, 0), "Alive", 0, func(*Agent) error { return victim.Kill() })
	victim, _ = b.Spawn(Pos(1, 0), "Alive", 0, func(*Agent) error { ran = true; return nil })

	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if ran {
		t.Fatal("killed agent's behavior still ran")
	}
	if b.AgentCount() != 1 {
		t.Fatalf("AgentCount = %d, want 1", b.AgentCount())
	}
}

func TestAgentSpawnedMidUpdateWaitsForNextTick(t *testing.T) {
	b := newTestBoard(t, 3, 1, 1)
	runs := 0
	child := func(*Agent) error { runs++; return nil }
	spawned := false
	b.Spawn(Pos(0, 0), "Alive", 0, func(a *Agent) error {
		if spawned {
			return nil
		}
		spawned = true
		_, err := a.Board().Spawn(Pos(2, 0), "Alive", 0, child)
		return err
	})

	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if runs != 0 {
		t.Fatalf("spawned agent ran %d times in its birth tick", runs)
	}
	if err := b.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if runs != 1 {
		t.Fatalf("spawned agent ran %d times, want 1", runs)
	}
}

func TestAgentString(t *testing.T) {
	a := NewStaticAgent(Pos(1, 2), "Wall", 0)
	want := fmt.Sprintf("StaticAgent(id: %d, pos: (1, 2), layer: 0, state: Wall)", a.ID())
	if got := a.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
