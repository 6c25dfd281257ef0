package engine

import (
	"fmt"
	"sort"
	"strings"
)

// CollisionKind describes how a layer reacts to an occupant in another layer.
type CollisionKind uint8

const (
	CollisionNone  CollisionKind = iota // No interaction, never reported
	CollisionAgent                      // Informational: another agent is there
	CollisionWall                       // Blocking: Move refuses the target
	CollisionInfo                       // Informational: a marker or trigger is there
)

// String returns the lower-case name of the kind.
func (k CollisionKind) String() string {
	switch k {
	case CollisionNone:
		return "none"
	case CollisionAgent:
		return "agent"
	case CollisionWall:
		return "wall"
	case CollisionInfo:
		return "info"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseCollisionKind accepts the names produced by String, case-insensitively.
// "solid" and "trigger" are accepted as aliases for wall and info.
func ParseCollisionKind(s string) (CollisionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return CollisionNone, nil
	case "agent":
		return CollisionAgent, nil
	case "wall", "solid":
		return CollisionWall, nil
	case "info", "trigger":
		return CollisionInfo, nil
	}
	return CollisionNone, fmt.Errorf("%w: unknown collision kind %q", ErrConfiguration, s)
}

// Collisions is the set of kinds found at a position.
type Collisions uint8

// Has reports whether k is in the set.
func (c Collisions) Has(k CollisionKind) bool {
	return c&(1<<k) != 0
}

// Empty reports whether nothing was found.
func (c Collisions) Empty() bool {
	return c == 0
}

// Kinds lists the members. The set is unordered: the list always runs in
// ascending kind value, whatever order the rules were configured in.
func (c Collisions) Kinds() []CollisionKind {
	var out []CollisionKind
	for k := CollisionAgent; k <= CollisionInfo; k++ {
		if c.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (c Collisions) with(k CollisionKind) Collisions {
	if k == CollisionNone {
		return c
	}
	return c | 1<<k
}

// Rule is one entry of a layer's collision list.
type Rule struct {
	Other int           `json:"other"`
	Kind  CollisionKind `json:"kind"`
}

// Ruleset maps a layer to its ordered collision rules. Layer indices are
// checked when rules are added, never when they are queried.
type Ruleset struct {
	layerCount int
	rules      map[int][]Rule
}

// NewRuleset creates an empty ruleset for a board with layerCount layers.
func NewRuleset(layerCount int) *Ruleset {
	return &Ruleset{
		layerCount: layerCount,
		rules:      make(map[int][]Rule),
	}
}

// Add appends a rule saying that agents on layer react to occupants of other
// with kind. Out-of-range layers fail with ErrConfiguration.
func (r *Ruleset) Add(layer, other int, kind CollisionKind) error {
	if layer < 0 || layer >= r.layerCount {
		return fmt.Errorf("%w: layer %d outside [0,%d)", ErrConfiguration, layer, r.layerCount)
	}
	if other < 0 || other >= r.layerCount {
		return fmt.Errorf("%w: rule on layer %d references layer %d outside [0,%d)",
			ErrConfiguration, layer, other, r.layerCount)
	}
	r.rules[layer] = append(r.rules[layer], Rule{Other: other, Kind: kind})
	return nil
}

// For returns the rules of a layer in configured order. The slice is shared;
// callers must not modify it.
func (r *Ruleset) For(layer int) []Rule {
	return r.rules[layer]
}

// LayerCount returns the number of layers the ruleset was validated against.
func (r *Ruleset) LayerCount() int {
	return r.layerCount
}

// Layers returns the layers that have at least one rule, ascending.
func (r *Ruleset) Layers() []int {
	out := make([]int, 0, len(r.rules))
	for l := range r.rules {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Clear drops every rule.
func (r *Ruleset) Clear() {
	r.rules = make(map[int][]Rule)
}
