//go:build ebiten

// Command automata-view opens a window on one registered sim.
package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/talgya/automata/internal/config"
	"github.com/talgya/automata/internal/engine"
	"github.com/talgya/automata/internal/logging"
	"github.com/talgya/automata/internal/render"
	"github.com/talgya/automata/internal/rules"
	"github.com/talgya/automata/internal/sims"
)

func main() {
	sim := flag.String("sim", "life", "registered sim to show")
	params := flag.String("params", "", "sim parameters as k=v,k=v")
	rulesPath := flag.String("rules", "", "optional collision ruleset file")
	scale := flag.Int("scale", 8, "pixels per cell")
	tps := flag.Int("tps", 60, "window updates per second")
	flag.Parse()

	logging.Setup(logging.Config{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")})

	p, err := config.ParseParams(*params)
	if err != nil {
		slog.Error("invalid params", "error", err)
		os.Exit(2)
	}
	board, err := sims.New(*sim, p)
	if err != nil {
		slog.Error("failed to build sim", "sim", *sim, "available", sims.Names(), "error", err)
		os.Exit(1)
	}
	if *rulesPath != "" {
		src, err := os.ReadFile(*rulesPath)
		if err != nil {
			slog.Error("failed to read rules", "error", err)
			os.Exit(1)
		}
		if err := rules.Apply(board, string(src)); err != nil {
			slog.Error("invalid rules", "error", err)
			os.Exit(1)
		}
	}

	viewer := render.NewViewer(engine.NewRunner(board, render.DefaultFrameInterval), *scale)
	defer viewer.Close()

	slog.Info("viewer ready", "sim", *sim, "keys", "N step, R reset, P play/pause, Q quit")
	ebiten.SetWindowTitle("automata: " + *sim)
	ebiten.SetTPS(*tps)
	ebiten.SetWindowSize(board.Width()*(*scale), board.Height()*(*scale))

	if err := ebiten.RunGame(viewer); err != nil && !errors.Is(err, ebiten.Termination) {
		slog.Error("viewer stopped", "error", err)
		os.Exit(1)
	}
}
