package engine

import "log/slog"

// move is one staged relocation within a layer.
type move struct {
	agent    *Agent
	from, to Position
	dropped  bool
}

// slot addresses one cell of one layer.
type slot struct {
	layer, index int
}

// commitMoves applies staged moves simultaneously and returns the agents that
// moved. Every mover leaves its slot first, so chains and swaps go through.
// See blockedMove for when a move is dropped; its agent then stays home, which
// can block others, so the checks repeat until nothing changes. Each round
// decides from the same view, keeping the outcome independent of insertion
// order.
func (b *Board) commitMoves(moves []move) []*Agent {
	if len(moves) == 0 {
		return nil
	}
	claims := make(map[slot][]int, len(moves))
	for i, m := range moves {
		b.layers[m.agent.layer][m.from.Index(b.width)] = nil
		t := b.slotOf(m.agent.layer, m.to)
		claims[t] = append(claims[t], i)
	}

	for {
		var drop []int
		for i := range moves {
			if moves[i].dropped {
				continue
			}
			if reason, ok := b.blockedMove(moves, i, claims); !ok {
				m := moves[i]
				slog.Debug("move dropped", "reason", reason,
					"agent", m.agent.id, "from", m.from.String(), "to", m.to.String())
				drop = append(drop, i)
			}
		}
		if len(drop) == 0 {
			break
		}
		for _, i := range drop {
			m := &moves[i]
			m.dropped = true
			t := b.slotOf(m.agent.layer, m.to)
			claims[t] = without(claims[t], i)
			b.layers[m.agent.layer][m.from.Index(b.width)] = m.agent
		}
	}

	var moved []*Agent
	for _, m := range moves {
		if m.dropped {
			continue
		}
		b.layers[m.agent.layer][m.to.Index(b.width)] = m.agent
		m.agent.pos = m.to
		moved = append(moved, m.agent)
	}
	return moved
}

// blockedMove reports whether moves[i] can still land, and if not, why. A move
// is blocked when another mover claims the same slot or an agent that stays
// holds it. It is also blocked when a wall rule of its layer finds another
// agent at the target, with other layers seen as they will be after the
// pending moves land.
func (b *Board) blockedMove(moves []move, i int, claims map[slot][]int) (string, bool) {
	m := moves[i]
	t := b.slotOf(m.agent.layer, m.to)
	if len(claims[t]) > 1 {
		return "target contested", false
	}
	if b.layers[t.layer][t.index] != nil {
		return "target taken", false
	}
	for _, r := range b.rules.For(m.agent.layer) {
		if r.Kind != CollisionWall {
			continue
		}
		if occ := b.landingAt(moves, slot{r.Other, t.index}, claims); occ != nil && occ != m.agent {
			return "wall at target", false
		}
	}
	return "", true
}

// landingAt returns the agent that will hold s once the pending moves land.
// A held or contested slot keeps its current holder, since its claimants drop.
func (b *Board) landingAt(moves []move, s slot, claims map[slot][]int) *Agent {
	if occ := b.layers[s.layer][s.index]; occ != nil {
		return occ
	}
	if c := claims[s]; len(c) == 1 {
		return moves[c[0]].agent
	}
	return nil
}

func (b *Board) slotOf(layer int, p Position) slot {
	return slot{layer: layer, index: p.Index(b.width)}
}

func without(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}
