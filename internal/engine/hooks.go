package engine

import "fmt"

// HookID identifies a registered observer so it can be removed later.
type HookID uint64

// AgentHook observes an agent being added, deleted or updated.
type AgentHook func(a *Agent) error

// ResetHook observes a board reset. It usually repopulates the board.
type ResetHook func(b *Board) error

type hookEntry[T any] struct {
	id HookID
	fn T
}

// hookList is an append-only ordered observer list with removal by id.
type hookList[T any] struct {
	next    HookID
	entries []hookEntry[T]
}

func (l *hookList[T]) add(fn T) HookID {
	l.next++
	l.entries = append(l.entries, hookEntry[T]{id: l.next, fn: fn})
	return l.next
}

func (l *hookList[T]) remove(id HookID) bool {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (l *hookList[T]) len() int {
	return len(l.entries)
}

// snapshot copies the current observers so registrations made while firing
// take effect on the next event.
func (l *hookList[T]) snapshot() []hookEntry[T] {
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]hookEntry[T], len(l.entries))
	copy(out, l.entries)
	return out
}

func fireAgent(kind string, l *hookList[AgentHook], a *Agent) error {
	for _, e := range l.snapshot() {
		if err := e.fn(a); err != nil {
			return fmt.Errorf("%s hook %d for agent %d: %w", kind, e.id, a.id, err)
		}
	}
	return nil
}

func fireReset(l *hookList[ResetHook], b *Board) error {
	for _, e := range l.snapshot() {
		if err := e.fn(b); err != nil {
			return fmt.Errorf("reset hook %d: %w", e.id, err)
		}
	}
	return nil
}
