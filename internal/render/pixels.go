// Package render paints boards. The pixel and bookkeeping code here builds
// everywhere; the ebiten window lives behind the ebiten build tag.
package render

import (
	"image/color"
	"time"

	"github.com/talgya/automata/internal/engine"
	"github.com/talgya/automata/internal/sims"
)

// Background fills slots no layer occupies.
var Background = color.RGBA{R: 150, G: 150, B: 150, A: 255}

// DefaultFrameInterval applies when the board carries no framerate hint.
const DefaultFrameInterval = 500 * time.Millisecond

// fillBoardRGBA paints b into buf, one pixel per cell, layers drawn in order
// so higher layers cover lower ones. Row 0 of the image is the board's top
// row. States missing from the palette use the "None" entry.
func fillBoardRGBA(buf []byte, b *engine.Board) {
	w, h := b.Width(), b.Height()
	palette := b.Palette()
	fallback, ok := palette["None"]
	if !ok {
		fallback = color.RGBA{A: 255}
	}

	for y := range h {
		row := h - 1 - y
		for x := range w {
			col := Background
			for layer := range b.LayerCount() {
				a, ok := b.AgentGet(engine.Pos(x, y), layer, false)
				if !ok {
					continue
				}
				if c, ok := palette[a.State()]; ok {
					col = c
				} else {
					col = fallback
				}
			}
			base := (row*w + x) * 4
			buf[base+0] = col.R
			buf[base+1] = col.G
			buf[base+2] = col.B
			buf[base+3] = col.A
		}
	}
}

// FrameInterval reads the seconds-per-step hint from the board's vars.
func FrameInterval(b *engine.Board) time.Duration {
	var secs float64
	switch v := b.Vars()[sims.VarFramerate].(type) {
	case float64:
		secs = v
	case int:
		secs = float64(v)
	default:
		return DefaultFrameInterval
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// Tracker marks a board dirty whenever something visible changes, so the
// viewer repaints only when needed.
type Tracker struct {
	dirty bool
	hooks struct {
		add, del, reset engine.HookID
	}
	board *engine.Board
}

// Track attaches to b's lifecycle hooks and to the update hook of every
// agent already on it.
func Track(b *engine.Board) *Tracker {
	t := &Tracker{board: b, dirty: true}
	t.hooks.add = b.OnAdd(func(a *engine.Agent) error {
		t.watch(a)
		t.dirty = true
		return nil
	})
	t.hooks.del = b.OnDelete(func(*engine.Agent) error {
		t.dirty = true
		return nil
	})
	t.hooks.reset = b.OnReset(func(*engine.Board) error {
		t.dirty = true
		return nil
	})
	for _, a := range b.Agents() {
		t.watch(a)
	}
	return t
}

func (t *Tracker) watch(a *engine.Agent) {
	a.OnUpdate(func(*engine.Agent) error {
		t.dirty = true
		return nil
	})
}

// Dirty reports and clears the repaint flag.
func (t *Tracker) Dirty() bool {
	d := t.dirty
	t.dirty = false
	return d
}

// Detach removes the board hooks. Agent update hooks go away with their
// agents.
func (t *Tracker) Detach() {
	t.board.RemoveAddHook(t.hooks.add)
	t.board.RemoveDeleteHook(t.hooks.del)
	t.board.RemoveResetHook(t.hooks.reset)
}
