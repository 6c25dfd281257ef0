// Package rules parses the collision ruleset text format:
//
//	// walkers stop at walls and notice each other
//	layer 0 {
//	    1: wall;
//	    0: agent;
//	}
//
// Each block lists, in order, the rules of one layer as "other: kind".
package rules

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/talgya/automata/internal/engine"
)

// File is the parsed form of a ruleset document.
type File struct {
	Blocks []*Block `parser:"@@*"`
}

// Block holds the rules of one layer.
type Block struct {
	Pos lexer.Position

	Layer int      `parser:"'layer' @Int '{'"`
	Rules []*Entry `parser:"@@* '}'"`
}

// Entry is a single "other: kind;" line.
type Entry struct {
	Pos lexer.Position

	Other int    `parser:"@Int ':'"`
	Kind  string `parser:"@Ident ';'"`
}

var parser = participle.MustBuild[File]()

// Parse reads a ruleset document without validating it against a board.
func Parse(name, src string) (*File, error) {
	f, err := parser.ParseString(name, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfiguration, err)
	}
	return f, nil
}

// Build validates the document for a board with layerCount layers and
// returns the ruleset. Blocks for the same layer append in document order.
func (f *File) Build(layerCount int) (*engine.Ruleset, error) {
	rs := engine.NewRuleset(layerCount)
	for _, b := range f.Blocks {
		for _, e := range b.Rules {
			kind, err := engine.ParseCollisionKind(e.Kind)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Pos, err)
			}
			if err := rs.Add(b.Layer, e.Other, kind); err != nil {
				return nil, fmt.Errorf("%s: %w", e.Pos, err)
			}
		}
	}
	return rs, nil
}

// Compile parses src and builds it for layerCount layers.
func Compile(src string, layerCount int) (*engine.Ruleset, error) {
	f, err := Parse("rules", src)
	if err != nil {
		return nil, err
	}
	return f.Build(layerCount)
}

// Apply compiles src and installs it on the board, replacing its ruleset.
func Apply(b *engine.Board, src string) error {
	rs, err := Compile(src, b.LayerCount())
	if err != nil {
		return err
	}
	return b.SetRules(rs)
}

// Format renders a ruleset in the text form Parse accepts. Layers appear in
// ascending order; rules keep their configured order.
func Format(rs *engine.Ruleset) string {
	var sb strings.Builder
	for i, l := range rs.Layers() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "layer %d {\n", l)
		for _, r := range rs.For(l) {
			fmt.Fprintf(&sb, "\t%d: %s;\n", r.Other, r.Kind)
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}
