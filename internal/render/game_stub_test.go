//go:build !ebiten

package render

import (
	"testing"

	"github.com/talgya/automata/internal/engine"
)

func TestHeadlessViewer(t *testing.T) {
	b, _ := engine.NewBoard(2, 2, 1)
	v := NewViewer(engine.NewRunner(b, DefaultFrameInterval), 4)
	if v == nil {
		t.Fatal("NewViewer returned nil")
	}
	if err := v.Update(); err == nil {
		t.Fatal("Update should report the missing ebiten tag")
	}
	if w, h := v.Layout(100, 100); w != 0 || h != 0 {
		t.Fatalf("Layout = %d, %d", w, h)
	}
	v.Draw(nil)
	v.Close()
}
