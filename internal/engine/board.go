package engine

import (
	"fmt"
	"image/color"
	"maps"
)

// DefaultPalette is the display map a new board starts with.
var DefaultPalette = map[string]color.RGBA{
	"Dead":  {R: 100, G: 100, B: 100, A: 255},
	"Alive": {R: 150, G: 255, B: 150, A: 255},
	"None":  {R: 0, G: 0, B: 0, A: 255},
}

// Board owns a fixed width×height grid per layer and every agent placed on it.
//
// A Board is not safe for concurrent use. All calls, including hooks and
// behaviors, run to completion on the calling goroutine. Calling Step from a
// hook or behavior triggered by that same Step is a precondition violation
// with undefined results; the board does not guard against it.
type Board struct {
	width      int
	height     int
	layerCount int

	layers    [][]*Agent // [layer][y*width+x]
	registry  *Registry
	rules     *Ruleset
	scheduler *Scheduler
	census    census
	stepCount int

	onAdd    hookList[AgentHook]
	onDelete hookList[AgentHook]
	onReset  hookList[ResetHook]

	// Sidecars. Passed through untouched: no kernel logic reads them and
	// Reset leaves them alone.
	vars    map[string]any
	palette map[string]color.RGBA
}

// NewBoard allocates layerCount empty grids of width×height slots.
func NewBoard(width, height, layerCount int) (*Board, error) {
	if width <= 0 || height <= 0 || layerCount <= 0 {
		return nil, fmt.Errorf("%w: board %dx%d with %d layers", ErrConfiguration, width, height, layerCount)
	}
	b := &Board{
		width:      width,
		height:     height,
		layerCount: layerCount,
		registry:   newRegistry(),
		rules:      NewRuleset(layerCount),
		scheduler:  NewScheduler(),
		census:     census{},
		vars:       make(map[string]any),
		palette:    maps.Clone(DefaultPalette),
	}
	b.layers = allocLayers(width*height, layerCount)
	return b, nil
}

func allocLayers(size, count int) [][]*Agent {
	layers := make([][]*Agent, count)
	for i := range layers {
		layers[i] = make([]*Agent, size)
	}
	return layers
}

// Width returns the number of columns.
func (b *Board) Width() int { return b.width }

// Height returns the number of rows.
func (b *Board) Height() int { return b.height }

// LayerCount returns the number of layers.
func (b *Board) LayerCount() int { return b.layerCount }

// StepCount returns the number of completed steps since construction or the
// last Reset.
func (b *Board) StepCount() int { return b.stepCount }

// Scheduler returns the ordered phase list run by Step.
func (b *Board) Scheduler() *Scheduler { return b.scheduler }

// Rules returns the collision ruleset consulted by Move and CheckCollisions.
func (b *Board) Rules() *Ruleset { return b.rules }

// Vars returns the opaque experiment parameter map.
func (b *Board) Vars() map[string]any { return b.vars }

// Palette returns the state-to-color display map used by renderers.
func (b *Board) Palette() map[string]color.RGBA { return b.palette }

// AddCollision adds a rule to the board's ruleset.
func (b *Board) AddCollision(layer, other int, kind CollisionKind) error {
	return b.rules.Add(layer, other, kind)
}

// SetRules replaces the ruleset. It fails with ErrConfiguration when the
// ruleset was built for a different number of layers.
func (b *Board) SetRules(r *Ruleset) error {
	if r == nil {
		return fmt.Errorf("%w: nil ruleset", ErrConfiguration)
	}
	if r.LayerCount() != b.layerCount {
		return fmt.Errorf("%w: ruleset for %d layers on a board with %d",
			ErrConfiguration, r.LayerCount(), b.layerCount)
	}
	b.rules = r
	return nil
}

// ── Hooks ────────────────────────────────────────────────────────────

// OnAdd registers an observer fired after an agent is placed.
func (b *Board) OnAdd(fn AgentHook) HookID { return b.onAdd.add(fn) }

// OnDelete registers an observer fired after an agent is removed.
func (b *Board) OnDelete(fn AgentHook) HookID { return b.onDelete.add(fn) }

// OnReset registers an observer fired after Reset cleared the board.
func (b *Board) OnReset(fn ResetHook) HookID { return b.onReset.add(fn) }

// RemoveAddHook deregisters an add observer.
func (b *Board) RemoveAddHook(id HookID) bool { return b.onAdd.remove(id) }

// RemoveDeleteHook deregisters a delete observer.
func (b *Board) RemoveDeleteHook(id HookID) bool { return b.onDelete.remove(id) }

// RemoveResetHook deregisters a reset observer.
func (b *Board) RemoveResetHook(id HookID) bool { return b.onReset.remove(id) }

// ── Lifecycle ────────────────────────────────────────────────────────

// Reset clears every slot and the registry without firing delete hooks, sets
// the step count to zero, then fires the reset hooks in registration order.
// A failing hook stops the remaining ones; the clear is not undone.
func (b *Board) Reset() error {
	for _, a := range b.registry.order {
		a.board = nil
		a.ClearStaged()
	}
	b.layers = allocLayers(b.width*b.height, b.layerCount)
	b.registry.clear()
	b.census.clear()
	b.stepCount = 0

	return fireReset(&b.onReset, b)
}

// Step runs every scheduler phase in order. The step count advances only when
// all phases succeed.
func (b *Board) Step() error {
	if err := b.scheduler.run(b); err != nil {
		return fmt.Errorf("step %d: %w", b.stepCount, err)
	}
	b.stepCount++
	return nil
}

// ── Agents ───────────────────────────────────────────────────────────

// AgentAdd places a into its slot, registers it and fires the add hooks.
func (b *Board) AgentAdd(a *Agent) error {
	if a == nil {
		return fmt.Errorf("add agent: %w", ErrNotFound)
	}
	if a.board != nil {
		return fmt.Errorf("add agent %d: %w", a.id, ErrAlreadyRegistered)
	}
	if a.layer < 0 || a.layer >= b.layerCount || !a.pos.In(b.width, b.height) {
		return fmt.Errorf("add agent %d at %s layer %d: %w", a.id, a.pos, a.layer, ErrOutOfBounds)
	}
	idx := a.pos.Index(b.width)
	if occ := b.layers[a.layer][idx]; occ != nil {
		return fmt.Errorf("add agent %d at %s layer %d (held by %d): %w",
			a.id, a.pos, a.layer, occ.id, ErrOccupiedSlot)
	}

	b.layers[a.layer][idx] = a
	a.board = b
	b.registry.insert(a)
	b.census.add(a.state)

	return fireAgent("add", &b.onAdd, a)
}

// AgentRemove clears a's slot, unregisters it and fires the delete hooks.
func (b *Board) AgentRemove(a *Agent) error {
	if !b.registry.Contains(a) {
		id := AgentID(0)
		if a != nil {
			id = a.id
		}
		return fmt.Errorf("remove agent %d: %w", id, ErrNotFound)
	}

	b.layers[a.layer][a.pos.Index(b.width)] = nil
	b.registry.delete(a)
	b.census.remove(a.state)
	a.board = nil
	a.ClearStaged()

	return fireAgent("delete", &b.onDelete, a)
}

// Spawn creates a movable agent and adds it.
func (b *Board) Spawn(pos Position, state string, layer int, behavior Behavior) (*Agent, error) {
	a := NewAgent(pos, state, layer, behavior)
	if err := b.AgentAdd(a); err != nil {
		return nil, err
	}
	return a, nil
}

// SpawnStatic creates a static agent and adds it.
func (b *Board) SpawnStatic(pos Position, state string, layer int) (*Agent, error) {
	a := NewStaticAgent(pos, state, layer)
	if err := b.AgentAdd(a); err != nil {
		return nil, err
	}
	return a, nil
}

// AgentGet returns the occupant of (layer, pos). Outside the board the result
// is empty unless wrap is set, in which case each coordinate is reduced modulo
// its axis. An unknown layer is empty.
func (b *Board) AgentGet(pos Position, layer int, wrap bool) (*Agent, bool) {
	if layer < 0 || layer >= b.layerCount {
		return nil, false
	}
	if !pos.In(b.width, b.height) {
		if !wrap {
			return nil, false
		}
		pos = pos.Wrap(b.width, b.height)
	}
	a := b.layers[layer][pos.Index(b.width)]
	return a, a != nil
}

// AgentAt is AgentGet on layer 0 without wrapping.
func (b *Board) AgentAt(pos Position) (*Agent, bool) {
	return b.AgentGet(pos, 0, false)
}

// Agent looks up a live agent by identity.
func (b *Board) Agent(id AgentID) (*Agent, bool) {
	return b.registry.Get(id)
}

// Agents returns all live agents in insertion order.
func (b *Board) Agents() []*Agent { return b.registry.All() }

// Movable returns the live movable agents in insertion order.
func (b *Board) Movable() []*Agent { return b.registry.Movable() }

// AgentCount returns the number of live agents.
func (b *Board) AgentCount() int { return b.registry.Len() }

// Occupied reports how many slots of a layer hold an agent.
func (b *Board) Occupied(layer int) int {
	if layer < 0 || layer >= b.layerCount {
		return 0
	}
	n := 0
	for _, a := range b.layers[layer] {
		if a != nil {
			n++
		}
	}
	return n
}

// StateCounts returns the number of live agents per state label.
func (b *Board) StateCounts() map[string]int {
	return maps.Clone(b.census)
}

// census counts live agents per state.
type census map[string]int

func (c census) add(state string) { c[state]++ }

func (c census) remove(state string) {
	if c[state] <= 1 {
		delete(c, state)
		return
	}
	c[state]--
}

func (c census) move(from, to string) {
	c.remove(from)
	c.add(to)
}

func (c census) clear() { clear(c) }
