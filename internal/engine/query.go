package engine

// Neighbors returns the (2·radius+1)² window around the agent on its own
// layer, including its own cell. Rows run from pos.y+radius down to
// pos.y-radius; within a row x runs left to right. Empty and out-of-board
// cells are nil.
func (a *Agent) Neighbors(radius int, wrap bool) []*Agent {
	return a.NeighborsIn(a.layer, radius, wrap)
}

// NeighborsIn is Neighbors over another layer.
func (a *Agent) NeighborsIn(layer, radius int, wrap bool) []*Agent {
	if a.board == nil || radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]*Agent, 0, side*side)
	for y := a.pos.Y + radius; y >= a.pos.Y-radius; y-- {
		for x := a.pos.X - radius; x <= a.pos.X+radius; x++ {
			n, _ := a.board.AgentGet(Position{X: x, Y: y}, layer, wrap)
			out = append(out, n)
		}
	}
	return out
}

// CountNeighbors counts agents in the Moore neighborhood of the given radius,
// excluding the agent itself, for which match returns true. A nil match
// counts every occupant.
func (a *Agent) CountNeighbors(radius int, wrap bool, match func(*Agent) bool) int {
	n := 0
	for _, o := range a.Neighbors(radius, wrap) {
		if o == nil || o == a {
			continue
		}
		if match == nil || match(o) {
			n++
		}
	}
	return n
}

// CheckCollisions evaluates the ruleset of the agent's layer at pos. For each
// rule in configured order whose other layer holds an agent at pos (other
// than this one), the rule's kind joins the result. Positions outside the
// board collide with nothing.
func (a *Agent) CheckCollisions(pos Position) Collisions {
	if a.board == nil {
		return 0
	}
	var found Collisions
	for _, r := range a.board.rules.For(a.layer) {
		occ, ok := a.board.AgentGet(pos, r.Other, false)
		if !ok || occ == a {
			continue
		}
		found = found.with(r.Kind)
	}
	return found
}
