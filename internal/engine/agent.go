package engine

import (
	"fmt"
)

// Behavior is the per-tick transition function of a movable agent. It runs in
// the update phase and may stage a new state with SetState and a new position
// with Move; it must not touch the grid directly.
type Behavior func(a *Agent) error

// Agent is an entity occupying one slot of one layer. Movable agents take part
// in the staged update each tick; static agents only leave through Kill.
type Agent struct {
	id      AgentID
	board   *Board // Set while registered
	pos     Position
	layer   int
	state   string
	movable bool

	behavior Behavior

	// Staged by the update phase, applied and cleared by the commit phase.
	nextState *string
	nextPos   *Position

	onUpdate hookList[AgentHook]
}

// NewAgent creates an unregistered movable agent. Its identity is assigned
// here; place it with Board.AgentAdd. A nil behavior stages nothing.
func NewAgent(pos Position, state string, layer int, behavior Behavior) *Agent {
	return &Agent{
		id:       nextAgentID(),
		pos:      pos,
		layer:    layer,
		state:    state,
		movable:  true,
		behavior: behavior,
	}
}

// NewStaticAgent creates an unregistered immovable agent, e.g. a wall.
func NewStaticAgent(pos Position, state string, layer int) *Agent {
	return &Agent{
		id:    nextAgentID(),
		pos:   pos,
		layer: layer,
		state: state,
	}
}

// ID returns the agent's identity.
func (a *Agent) ID() AgentID { return a.id }

// Pos returns the committed position.
func (a *Agent) Pos() Position { return a.pos }

// Layer returns the layer the agent occupies.
func (a *Agent) Layer() int { return a.layer }

// State returns the committed state label.
func (a *Agent) State() string { return a.state }

// Movable reports whether the agent takes part in the staged update.
func (a *Agent) Movable() bool { return a.movable }

// Board returns the board the agent is registered on, or nil.
func (a *Agent) Board() *Board { return a.board }

// Alive reports whether the agent is currently registered on a board.
func (a *Agent) Alive() bool {
	return a.board != nil && a.board.registry.Contains(a)
}

// SetBehavior replaces the transition function.
func (a *Agent) SetBehavior(fn Behavior) {
	a.behavior = fn
}

// NextState returns the staged state, if any.
func (a *Agent) NextState() (string, bool) {
	if a.nextState == nil {
		return "", false
	}
	return *a.nextState, true
}

// NextPos returns the staged position, if any.
func (a *Agent) NextPos() (Position, bool) {
	if a.nextPos == nil {
		return Position{}, false
	}
	return *a.nextPos, true
}

// SetState stages a state change for the next commit. Static agents never
// stage; for them this reports false.
func (a *Agent) SetState(state string) bool {
	if !a.movable {
		return false
	}
	a.nextState = &state
	return true
}

// Move stages a move by delta. It reports false, staging nothing, when the
// agent is static or unregistered, when the target lies outside the board, or
// when the target has a wall collision for this agent's layer.
func (a *Agent) Move(delta Position) bool {
	return a.stageMove(a.pos.Add(delta), false)
}

// MoveWrap is Move on a torus: the target is folded back onto the board.
func (a *Agent) MoveWrap(delta Position) bool {
	return a.stageMove(a.pos.Add(delta), true)
}

func (a *Agent) stageMove(target Position, wrap bool) bool {
	if !a.movable || a.board == nil {
		return false
	}
	b := a.board
	if wrap {
		target = target.Wrap(b.width, b.height)
	} else if !target.In(b.width, b.height) {
		return false
	}
	if a.CheckCollisions(target).Has(CollisionWall) {
		return false
	}
	a.nextPos = &target
	return true
}

// ClearStaged drops any staged state or position.
func (a *Agent) ClearStaged() {
	a.nextState = nil
	a.nextPos = nil
}

// Kill removes the agent from its board.
func (a *Agent) Kill() error {
	if a.board == nil {
		return fmt.Errorf("kill agent %d: %w", a.id, ErrNotFound)
	}
	return a.board.AgentRemove(a)
}

// OnUpdate registers an observer fired after a commit changed the agent.
func (a *Agent) OnUpdate(fn AgentHook) HookID {
	return a.onUpdate.add(fn)
}

// RemoveUpdateHook deregisters an update observer.
func (a *Agent) RemoveUpdateHook(id HookID) bool {
	return a.onUpdate.remove(id)
}

// update runs the transition function.
func (a *Agent) update() error {
	if a.behavior == nil {
		return nil
	}
	if err := a.behavior(a); err != nil {
		return fmt.Errorf("agent %d: %w", a.id, err)
	}
	return nil
}

// applyState commits the staged state and reports whether it changed.
func (a *Agent) applyState() bool {
	if a.nextState == nil {
		return false
	}
	next := *a.nextState
	a.nextState = nil
	if next == a.state {
		return false
	}
	a.board.census.move(a.state, next)
	a.state = next
	return true
}

// takeMove clears the staged position and returns it when it differs from
// the current one.
func (a *Agent) takeMove() (Position, bool) {
	if a.nextPos == nil {
		return Position{}, false
	}
	target := *a.nextPos
	a.nextPos = nil
	return target, target != a.pos
}

// String returns a short description for logs.
func (a *Agent) String() string {
	kind := "Agent"
	if !a.movable {
		kind = "StaticAgent"
	}
	return fmt.Sprintf("%s(id: %d, pos: %s, layer: %d, state: %s)", kind, a.id, a.pos, a.layer, a.state)
}
