//go:build ebiten

package render

import (
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/talgya/automata/internal/engine"
)

// Viewer adapts a runner-owned board to the ebiten.Game interface.
//
// Controls: N steps once, R resets, P toggles play, Q or Esc quits.
type Viewer struct {
	runner  *engine.Runner
	tracker *Tracker

	w, h    int
	scale   int
	img     *ebiten.Image
	buf     []byte
	playing bool
	last    time.Time
}

// NewViewer attaches to the board behind r. The viewer starts paused.
func NewViewer(r *engine.Runner, scale int) *Viewer {
	if scale < 1 {
		scale = 1
	}
	v := &Viewer{runner: r, scale: scale}
	r.Do(func(b *engine.Board) error {
		v.w, v.h = b.Width(), b.Height()
		v.tracker = Track(b)
		return nil
	})
	v.buf = make([]byte, 4*v.w*v.h)
	v.img = ebiten.NewImage(v.w, v.h)
	return v
}

// Update handles input and advances the board at its framerate hint.
func (v *Viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		v.playing = !v.playing
		slog.Info("playback toggled", "playing", v.playing)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := v.runner.Do(func(b *engine.Board) error { return b.Reset() }); err != nil {
			return err
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) {
		return v.runner.Step()
	}

	if !v.playing {
		return nil
	}
	var interval time.Duration
	v.runner.Do(func(b *engine.Board) error {
		interval = FrameInterval(b)
		return nil
	})
	if time.Since(v.last) < interval {
		return nil
	}
	v.last = time.Now()
	return v.runner.Step()
}

// Draw repaints the board image when it changed and scales it onto screen.
func (v *Viewer) Draw(screen *ebiten.Image) {
	v.runner.Do(func(b *engine.Board) error {
		if v.tracker.Dirty() {
			fillBoardRGBA(v.buf, b)
			v.img.WritePixels(v.buf)
		}
		return nil
	})
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(v.scale), float64(v.scale))
	screen.DrawImage(v.img, op)
}

// Layout returns the logical screen size.
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.w * v.scale, v.h * v.scale
}

// Close detaches the viewer from the board.
func (v *Viewer) Close() {
	v.runner.Do(func(*engine.Board) error {
		v.tracker.Detach()
		return nil
	})
}
