// Package experiment runs batch sweeps: every combination of parameter
// values, on every board size, repeated, with one result row per run.
package experiment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/talgya/automata/internal/engine"
)

// Size is a board geometry to sweep over.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// ParseSize reads "WxH".
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("%w: size %q is not WxH", engine.ErrConfiguration, s)
	}
	wi, err1 := strconv.Atoi(w)
	hi, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || wi <= 0 || hi <= 0 {
		return Size{}, fmt.Errorf("%w: size %q is not WxH", engine.ErrConfiguration, s)
	}
	return Size{W: wi, H: hi}, nil
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// Plan describes a sweep.
type Plan struct {
	ID          string              // Sweep identity; empty generates one
	Sim         string              // Registered sim name
	Data        map[string][]string // Parameter name to the values to try
	Sizes       []Size
	Repetitions int
	MaxSteps    int // Per-run step cap; 0 means run until the sim settles
	Workers     int
}

func (p Plan) validate() error {
	if p.Sim == "" {
		return fmt.Errorf("%w: plan has no sim", engine.ErrConfiguration)
	}
	if len(p.Sizes) == 0 {
		return fmt.Errorf("%w: plan has no board sizes", engine.ErrConfiguration)
	}
	if p.Repetitions <= 0 {
		return fmt.Errorf("%w: repetitions must be positive, got %d", engine.ErrConfiguration, p.Repetitions)
	}
	for k, vs := range p.Data {
		if len(vs) == 0 {
			return fmt.Errorf("%w: parameter %s has no values", engine.ErrConfiguration, k)
		}
	}
	return nil
}

// Combinations returns the cartesian product of data. Keys are walked in
// sorted order so the result order is stable; the last key varies fastest.
// An empty map yields a single empty combination.
func Combinations(data map[string][]string) []map[string]string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]string{{}}
	for _, k := range keys {
		next := make([]map[string]string, 0, len(out)*len(data[k]))
		for _, prev := range out {
			for _, v := range data[k] {
				c := make(map[string]string, len(prev)+1)
				for pk, pv := range prev {
					c[pk] = pv
				}
				c[k] = v
				next = append(next, c)
			}
		}
		out = next
	}
	return out
}

// Total is the number of runs the plan produces.
func (p Plan) Total() int {
	return len(Combinations(p.Data)) * len(p.Sizes) * p.Repetitions
}
