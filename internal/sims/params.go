package sims

import (
	"fmt"
	"strconv"
	"time"

	"github.com/talgya/automata/internal/engine"
)

// params reads typed values out of a flag-style map. The first malformed
// value is kept in err; later reads return their defaults.
type params struct {
	m   map[string]string
	err error
}

func newParams(m map[string]string) *params {
	return &params{m: m}
}

func (p *params) fail(key, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: param %s=%q: %v", engine.ErrConfiguration, key, v, err)
	}
}

func (p *params) int(key string, def int) int {
	v, ok := p.m[key]
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *params) float(key string, def float64) float64 {
	v, ok := p.m[key]
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *params) bool(key string, def bool) bool {
	v, ok := p.m[key]
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

// seed returns the "seed" param; 0 or absent means time-based.
func (p *params) seed() int64 {
	v, ok := p.m["seed"]
	if !ok || v == "" {
		return time.Now().UnixNano()
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail("seed", v, err)
		return 0
	}
	if n == 0 {
		return time.Now().UnixNano()
	}
	return n
}
