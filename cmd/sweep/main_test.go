package main

import (
	"flag"
	"slices"
	"testing"
)

func TestParamFlags(t *testing.T) {
	p := paramFlags{}
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.Var(p, "p", "")
	if err := fs.Parse([]string{"-p", "rule=30|90", "-p", "density = 0.1", "-p", "rule=110"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !slices.Equal(p["rule"], []string{"30", "90", "110"}) {
		t.Fatalf("rule = %v", p["rule"])
	}
	if !slices.Equal(p["density"], []string{"0.1"}) {
		t.Fatalf("density = %v", p["density"])
	}
	for _, bad := range []string{"rule", "=1", "rule="} {
		if err := p.Set(bad); err == nil {
			t.Fatalf("Set(%q) accepted", bad)
		}
	}
}
