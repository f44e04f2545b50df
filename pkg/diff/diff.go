// Package diff compares two extraction runs over the same or revised text.
package diff

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"github.com/aryann/difflib"
	"github.com/charmbracelet/lipgloss"

	"taleweaver/pkg/entities"
)

type ChangeType int

const (
	Unchanged ChangeType = iota
	Added
	Removed
	Modified
)

type Op int

const (
	Equal Op = iota
	Insert
	Delete
)

type WordDelta struct {
	Op   Op
	Text string
}

type StringDiff struct {
	Old    string
	New    string
	Deltas []WordDelta
}

type FieldDiff struct {
	Field string
	Str   StringDiff
}

type CharacterDiff struct {
	Name       string
	State      ChangeType
	FieldDiffs []FieldDiff
}

// Characters pairs characters by exact name and reports what changed.
// The result is sorted by name.
func Characters(oldC, newC []entities.Character) []CharacterDiff {
	omap := make(map[string]entities.Character, len(oldC))
	nmap := make(map[string]entities.Character, len(newC))
	for _, c := range oldC {
		omap[c.Name] = c
	}
	for _, c := range newC {
		nmap[c.Name] = c
	}

	out := make([]CharacterDiff, 0, len(omap)+len(nmap))
	for name, o := range omap {
		n, ok := nmap[name]
		if !ok {
			out = append(out, CharacterDiff{Name: name, State: Removed})
			continue
		}
		var fd []FieldDiff
		if o.Description != n.Description {
			fd = append(fd, FieldDiff{Field: "Description", Str: Strings(o.Description, n.Description)})
		}
		if o.Personality != n.Personality {
			fd = append(fd, FieldDiff{Field: "Personality", Str: Strings(o.Personality, n.Personality)})
		}
		state := Unchanged
		if len(fd) > 0 {
			state = Modified
		}
		out = append(out, CharacterDiff{Name: name, State: state, FieldDiffs: fd})
	}
	for name, n := range nmap {
		if _, ok := omap[name]; ok {
			continue
		}
		out = append(out, CharacterDiff{
			Name:  name,
			State: Added,
			FieldDiffs: []FieldDiff{
				{Field: "Description", Str: inserted(n.Description)},
				{Field: "Personality", Str: inserted(n.Personality)},
			},
		})
	}

	slices.SortFunc(out, func(a, b CharacterDiff) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Changed reports whether any character was added, removed or modified.
func Changed(diffs []CharacterDiff) bool {
	return slices.ContainsFunc(diffs, func(d CharacterDiff) bool { return d.State != Unchanged })
}

func inserted(s string) StringDiff {
	return StringDiff{New: s, Deltas: []WordDelta{{Op: Insert, Text: s}}}
}

// Strings produces a word-level diff of a and b.
func Strings(a, b string) StringDiff {
	if a == b {
		return StringDiff{Old: a, New: b, Deltas: []WordDelta{{Op: Equal, Text: a}}}
	}
	recs := difflib.Diff(tokenize(a), tokenize(b))
	deltas := make([]WordDelta, 0, len(recs))
	for _, r := range recs {
		switch r.Delta {
		case difflib.Common:
			deltas = append(deltas, WordDelta{Op: Equal, Text: r.Payload})
		case difflib.LeftOnly:
			deltas = append(deltas, WordDelta{Op: Delete, Text: r.Payload})
		case difflib.RightOnly:
			deltas = append(deltas, WordDelta{Op: Insert, Text: r.Payload})
		}
	}
	return StringDiff{Old: a, New: b, Deltas: coalesce(deltas)}
}

// tokenize splits s into alternating word and whitespace runs so the
// concatenation of tokens equals s.
func tokenize(s string) []string {
	var tokens []string
	start, prevSpace := 0, false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > 0 && space != prevSpace {
			tokens = append(tokens, s[start:i])
			start = i
		}
		prevSpace = space
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// coalesce merges neighbouring deltas of the same op.
func coalesce(in []WordDelta) []WordDelta {
	out := make([]WordDelta, 0, len(in))
	for _, d := range in {
		if n := len(out); n > 0 && out[n-1].Op == d.Op {
			out[n-1].Text += d.Text
			continue
		}
		out = append(out, d)
	}
	return out
}

var (
	insertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Underline(true)
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Strikethrough(true)
	tags        = map[ChangeType]string{
		Added:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render("[+]"),
		Removed:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render("[-]"),
		Modified:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render("[~]"),
		Unchanged: lipgloss.NewStyle().Faint(true).Render("[=]"),
	}
)

func (sd StringDiff) Render() string {
	var b strings.Builder
	for _, d := range sd.Deltas {
		switch d.Op {
		case Equal:
			b.WriteString(d.Text)
		case Insert:
			b.WriteString(insertStyle.Render(d.Text))
		case Delete:
			b.WriteString(deleteStyle.Render(d.Text))
		}
	}
	return b.String()
}

// Print writes a human readable report of diffs to w.
func Print(w io.Writer, diffs []CharacterDiff) {
	for _, c := range diffs {
		fmt.Fprintf(w, "  %s %s\n", tags[c.State], c.Name)
		for _, f := range c.FieldDiffs {
			fmt.Fprintf(w, "    %s: %s\n", f.Field, f.Str.Render())
		}
	}
}
