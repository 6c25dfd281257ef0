// Package sims holds ready-made automata built on the engine: each factory
// returns a populated board whose reset hook re-seeds it.
package sims

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/talgya/automata/internal/engine"
)

// VarSimulated is the Vars key a sim clears once it has settled. Drivers stop
// stepping when it is false.
const VarSimulated = "simulated"

// VarFramerate is the seconds-per-frame hint for renderers.
const VarFramerate = "draw_framerate"

// Factory builds a board from flag-style parameters.
type Factory func(params map[string]string) (*engine.Board, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds a factory under name, replacing any previous one.
func Register(name string, f Factory) {
	if name == "" || f == nil {
		return
	}
	mu.Lock()
	factories[name] = f
	mu.Unlock()
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Names lists the registered sims alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// New builds the named sim.
func New(name string, params map[string]string) (*engine.Board, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sim %q (have %s)",
			engine.ErrConfiguration, name, strings.Join(Names(), ", "))
	}
	b, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("sim %s: %w", name, err)
	}
	return b, nil
}

// Simulated reports whether the board still wants steps. Boards that never
// set the flag run until their driver stops them.
func Simulated(b *engine.Board) bool {
	v, ok := b.Vars()[VarSimulated].(bool)
	return !ok || v
}

// activity counts committed agent changes and, through its settle phase,
// clears VarSimulated after a step that changed nothing.
type activity struct {
	changed int
}

func (t *activity) watch(a *engine.Agent) {
	a.OnUpdate(func(*engine.Agent) error {
		t.changed++
		return nil
	})
}

func (t *activity) phase() engine.Phase {
	return engine.Phase{Name: "settle", Run: func(b *engine.Board) error {
		b.Vars()[VarSimulated] = t.changed > 0
		t.changed = 0
		return nil
	}}
}

// start marks the board live again. Used at the top of reset hooks.
func (t *activity) start(b *engine.Board) {
	t.changed = 0
	b.Vars()[VarSimulated] = true
}
