//go:build !ebiten

package render

import (
	"fmt"

	"github.com/talgya/automata/internal/engine"
)

// Viewer is a placeholder that satisfies the API expected by the GUI build.
type Viewer struct{}

// NewViewer returns a placeholder; its Update reports the missing build tag.
func NewViewer(*engine.Runner, int) *Viewer {
	return &Viewer{}
}

// Update always reports that the GUI build tag is missing.
func (v *Viewer) Update() error {
	return fmt.Errorf("render.Viewer.Update requires building with the 'ebiten' tag")
}

// Draw is a no-op placeholder.
func (v *Viewer) Draw(any) {}

// Layout returns zeros in the headless build.
func (v *Viewer) Layout(int, int) (int, int) { return 0, 0 }

// Close is a no-op placeholder.
func (v *Viewer) Close() {}
