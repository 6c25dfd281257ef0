package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"AUTOMATA_SIM", "AUTOMATA_PARAMS", "AUTOMATA_WIDTH", "AUTOMATA_HEIGHT", "AUTOMATA_SEED",
		"AUTOMATA_PORT", "AUTOMATA_TICK_MS", "AUTOMATA_SPEED", "AUTOMATA_TRACING_ENABLED",
	} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sim != "life" || cfg.Port != 8080 || cfg.Tick != 200*time.Millisecond || cfg.Speed != 1 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if len(cfg.Params) != 0 {
		t.Fatalf("params = %v, want empty", cfg.Params)
	}
	if cfg.Tracing.Enabled || cfg.Tracing.Exporter != "stdout" {
		t.Fatalf("tracing = %+v", cfg.Tracing)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTOMATA_SIM", "walkers")
	t.Setenv("AUTOMATA_PARAMS", "wall=4, wrap=true")
	t.Setenv("AUTOMATA_WIDTH", "12")
	t.Setenv("AUTOMATA_SEED", "7")
	t.Setenv("AUTOMATA_PORT", "9090")
	t.Setenv("AUTOMATA_TICK_MS", "not-a-number")
	t.Setenv("AUTOMATA_SPEED", "0")
	t.Setenv("AUTOMATA_TRACING_ENABLED", "TRUE")
	t.Setenv("AUTOMATA_TRACING_SAMPLE_RATIO", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sim != "walkers" || cfg.Port != 9090 || cfg.Speed != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Tick != 200*time.Millisecond {
		t.Fatalf("malformed tick should fall back, got %v", cfg.Tick)
	}
	want := map[string]string{"wall": "4", "wrap": "true", "w": "12", "seed": "7"}
	for k, v := range want {
		if cfg.Params[k] != v {
			t.Fatalf("params[%s] = %q, want %q (all %v)", k, cfg.Params[k], v, cfg.Params)
		}
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.SampleRatio != 1 {
		t.Fatalf("tracing = %+v", cfg.Tracing)
	}
}

func TestParseParamsRejectsBareWord(t *testing.T) {
	if _, err := ParseParams("w=3,oops"); err == nil {
		t.Fatal("bare word accepted")
	}
	t.Setenv("AUTOMATA_PARAMS", "=3")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted an empty key")
	}
}
