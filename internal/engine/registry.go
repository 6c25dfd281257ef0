package engine

import "sync/atomic"

// AgentID is a unique identifier for an agent. IDs come from a process-wide
// counter and are never reused, even across boards and resets.
type AgentID uint64

var lastAgentID atomic.Uint64

func nextAgentID() AgentID {
	return AgentID(lastAgentID.Add(1))
}

// Registry is the canonical store of live agents on a board. Grid slots and
// the movable list only reference entries held here.
type Registry struct {
	index   map[AgentID]*Agent
	order   []*Agent // Insertion order, all agents
	movable []*Agent // Insertion order, movable agents only
}

func newRegistry() *Registry {
	return &Registry{index: make(map[AgentID]*Agent)}
}

// Get returns the live agent with the given id.
func (r *Registry) Get(id AgentID) (*Agent, bool) {
	a, ok := r.index[id]
	return a, ok
}

// Contains reports whether this exact agent is registered.
func (r *Registry) Contains(a *Agent) bool {
	if a == nil {
		return false
	}
	got, ok := r.index[a.id]
	return ok && got == a
}

// Len returns the number of live agents.
func (r *Registry) Len() int {
	return len(r.order)
}

// MovableLen returns the number of live movable agents.
func (r *Registry) MovableLen() int {
	return len(r.movable)
}

// All returns a copy of the live agents in insertion order.
func (r *Registry) All() []*Agent {
	return append([]*Agent(nil), r.order...)
}

// Movable returns a copy of the live movable agents in insertion order.
func (r *Registry) Movable() []*Agent {
	return append([]*Agent(nil), r.movable...)
}

func (r *Registry) insert(a *Agent) {
	r.index[a.id] = a
	r.order = append(r.order, a)
	if a.movable {
		r.movable = append(r.movable, a)
	}
}

func (r *Registry) delete(a *Agent) {
	delete(r.index, a.id)
	r.order = removeAgent(r.order, a)
	if a.movable {
		r.movable = removeAgent(r.movable, a)
	}
}

func (r *Registry) clear() {
	r.index = make(map[AgentID]*Agent)
	r.order = nil
	r.movable = nil
}

func removeAgent(list []*Agent, a *Agent) []*Agent {
	for i, x := range list {
		if x == a {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
