package api

import (
	"fmt"
	"maps"
	"slices"

	"github.com/talgya/automata/internal/engine"
	"github.com/talgya/automata/internal/sims"
)

// AgentView is the wire form of one agent.
type AgentView struct {
	ID    uint64 `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Layer int    `json:"layer"`
	State string `json:"state"`
}

// AgentsView splits agents by whether they carry a behavior.
type AgentsView struct {
	Simulated []AgentView `json:"simulated"`
	Static    []AgentView `json:"static"`
	Total     int         `json:"total"`
}

// BoardView describes the grid and how to paint it.
type BoardView struct {
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	Layers  int               `json:"layers"`
	Step    int               `json:"step"`
	Palette map[string]string `json:"palette"`
}

// Model is what the control endpoints return after changing the board.
type Model struct {
	Board   BoardView      `json:"board"`
	Agents  AgentsView     `json:"agents"`
	Values  map[string]any `json:"values"`
	Summary map[string]int `json:"summary"`
}

func agentView(a *engine.Agent) AgentView {
	p := a.Pos()
	return AgentView{ID: uint64(a.ID()), X: p.X, Y: p.Y, Layer: a.Layer(), State: a.State()}
}

func boardView(b *engine.Board) BoardView {
	palette := make(map[string]string, len(b.Palette()))
	for state, c := range b.Palette() {
		palette[state] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return BoardView{
		Width:   b.Width(),
		Height:  b.Height(),
		Layers:  b.LayerCount(),
		Step:    b.StepCount(),
		Palette: palette,
	}
}

// agentsView lists agents in identity order so repeated calls are stable.
func agentsView(b *engine.Board) AgentsView {
	all := b.Agents()
	slices.SortFunc(all, func(x, y *engine.Agent) int {
		switch {
		case x.ID() < y.ID():
			return -1
		case x.ID() > y.ID():
			return 1
		}
		return 0
	})
	v := AgentsView{Simulated: []AgentView{}, Static: []AgentView{}, Total: len(all)}
	for _, a := range all {
		if a.Movable() {
			v.Simulated = append(v.Simulated, agentView(a))
		} else {
			v.Static = append(v.Static, agentView(a))
		}
	}
	return v
}

func buildModel(b *engine.Board) Model {
	return Model{
		Board:   boardView(b),
		Agents:  agentsView(b),
		Values:  maps.Clone(b.Vars()),
		Summary: b.StateCounts(),
	}
}

// grid renders one layer as rows of state labels, top row first. Empty
// slots are "".
func grid(b *engine.Board, layer int) [][]string {
	rows := make([][]string, b.Height())
	for i := range rows {
		y := b.Height() - 1 - i
		row := make([]string, b.Width())
		for x := range row {
			if a, ok := b.AgentGet(engine.Pos(x, y), layer, false); ok {
				row[x] = a.State()
			}
		}
		rows[i] = row
	}
	return rows
}

func status(b *engine.Board) map[string]any {
	return map[string]any{
		"step":      b.StepCount(),
		"width":     b.Width(),
		"height":    b.Height(),
		"layers":    b.LayerCount(),
		"agents":    b.AgentCount(),
		"simulated": sims.Simulated(b),
	}
}
