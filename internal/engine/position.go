// Package engine provides the layered grid kernel: positions, the board and its
// occupancy layers, agents with staged two-phase updates, collision rules,
// the step scheduler and the observer hooks external consumers attach to.
package engine

import "fmt"

// Position is a cell coordinate on the board. The origin is the bottom-left
// cell; y grows upward, which is why neighbor scans start at the top row.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pos is shorthand for Position{X: x, Y: y}.
func Pos(x, y int) Position {
	return Position{X: x, Y: y}
}

// Add returns p + o.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns p - o.
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y}
}

// Index returns the row-major slot index for a grid of the given width.
func (p Position) Index(width int) int {
	return p.Y*width + p.X
}

// In reports whether p lies inside [0,w)×[0,h).
func (p Position) In(w, h int) bool {
	return p.X >= 0 && p.X < w && p.Y >= 0 && p.Y < h
}

// Wrap folds p onto a w×h torus. Negative coordinates wrap from the far edge,
// any number of periods away.
func (p Position) Wrap(w, h int) Position {
	return Position{X: (p.X%w + w) % w, Y: (p.Y%h + h) % h}
}

// String renders the position as "(x, y)".
func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Moore neighborhood offsets, top row first, matching the Neighbors scan order
// without the center cell.
var MooreDirections = [8]Position{
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
}

// Chebyshev returns the king-move distance between two positions.
func Chebyshev(a, b Position) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
