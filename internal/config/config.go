// Package config loads process settings from AUTOMATA_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/automata/internal/logging"
	"github.com/talgya/automata/internal/observability"
)

// Config is everything cmd/automata needs to start.
type Config struct {
	Sim    string            // Registered sim name
	Params map[string]string // Sim parameters, from AUTOMATA_PARAMS as k=v,k=v
	Rules  string            // Optional ruleset file applied after the sim is built

	Port     int
	AdminKey string // Empty disables the POST endpoints

	Tick  time.Duration // Base step interval
	Speed float64       // Step multiplier; 0 starts paused

	ResultsDB string // Snapshot database path; empty disables persistence

	Log     logging.Config
	Tracing observability.TracingConfig
}

// Load reads the environment. Malformed numbers fall back to their defaults;
// a malformed AUTOMATA_PARAMS entry is an error.
func Load() (Config, error) {
	params, err := ParseParams(os.Getenv("AUTOMATA_PARAMS"))
	if err != nil {
		return Config{}, err
	}
	if v := os.Getenv("AUTOMATA_WIDTH"); v != "" {
		params["w"] = v
	}
	if v := os.Getenv("AUTOMATA_HEIGHT"); v != "" {
		params["h"] = v
	}
	if v := os.Getenv("AUTOMATA_SEED"); v != "" {
		params["seed"] = v
	}

	return Config{
		Sim:       envOrDefault("AUTOMATA_SIM", "life"),
		Params:    params,
		Rules:     os.Getenv("AUTOMATA_RULES"),
		Port:      envIntOrDefault("AUTOMATA_PORT", 8080),
		AdminKey:  os.Getenv("AUTOMATA_ADMIN_KEY"),
		Tick:      time.Duration(envIntOrDefault("AUTOMATA_TICK_MS", 200)) * time.Millisecond,
		Speed:     envFloatOrDefault("AUTOMATA_SPEED", 1),
		ResultsDB: os.Getenv("AUTOMATA_RESULTS_DB"),
		Log: logging.Config{
			Level:  envOrDefault("LOG_LEVEL", "info"),
			Format: envOrDefault("LOG_FORMAT", "text"),
		},
		Tracing: TracingFromEnv(),
	}, nil
}

// TracingFromEnv reads the AUTOMATA_TRACING_* variables.
func TracingFromEnv() observability.TracingConfig {
	ratio := envFloatOrDefault("AUTOMATA_TRACING_SAMPLE_RATIO", 1)
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}
	return observability.TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("AUTOMATA_TRACING_ENABLED"), "true"),
		ServiceName: envOrDefault("AUTOMATA_TRACING_SERVICE_NAME", "automata"),
		Exporter:    strings.ToLower(envOrDefault("AUTOMATA_TRACING_EXPORTER", "stdout")),
		Endpoint:    os.Getenv("AUTOMATA_OTLP_ENDPOINT"),
		SampleRatio: ratio,
	}
}

// ParseParams reads "k=v,k=v". Blank input gives an empty map.
func ParseParams(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("param %q is not key=value", part)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
