package diff

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"taleweaver/pkg/entities"
)

func TestCharacters(t *testing.T) {
	oldC := []entities.Character{
		{Name: "Alice", Description: "a knight", Personality: "brave"},
		{Name: "Bob", Description: "a thief", Personality: "sly"},
		{Name: "Carol", Description: "a cook", Personality: "kind"},
	}
	newC := []entities.Character{
		{Name: "Alice", Description: "a knight", Personality: "brave"},
		{Name: "Bob", Description: "a reformed thief", Personality: "sly"},
		{Name: "Dave", Description: "a bard", Personality: "loud"},
	}

	got := Characters(oldC, newC)
	var states []string
	for _, d := range got {
		states = append(states, d.Name+":"+[]string{"=", "+", "-", "~"}[d.State])
	}
	if diff := cmp.Diff([]string{"Alice:=", "Bob:~", "Carol:-", "Dave:+"}, states); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	if !Changed(got) {
		t.Error("Changed() = false")
	}

	bob := got[1]
	if len(bob.FieldDiffs) != 1 || bob.FieldDiffs[0].Field != "Description" {
		t.Fatalf("Bob field diffs = %+v", bob.FieldDiffs)
	}
	var inserted []string
	for _, d := range bob.FieldDiffs[0].Str.Deltas {
		if d.Op == Insert {
			inserted = append(inserted, strings.TrimSpace(d.Text))
		}
	}
	if diff := cmp.Diff([]string{"reformed"}, inserted); diff != "" {
		t.Errorf("inserted words mismatch (-want +got):\n%s", diff)
	}
}

func TestCharactersExactNames(t *testing.T) {
	got := Characters(
		[]entities.Character{{Name: "Bob"}},
		[]entities.Character{{Name: "bob"}},
	)
	if len(got) != 2 {
		t.Errorf("names differing in case should not pair: %+v", got)
	}
	if Changed(Characters(nil, nil)) {
		t.Error("empty runs reported a change")
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	for _, s := range []string{"", "one", "  two  words ", "tabs\tand\nlines", "héllo wörld"} {
		if got := strings.Join(tokenize(s), ""); got != s {
			t.Errorf("tokenize(%q) joined = %q", s, got)
		}
	}
	if diff := cmp.Diff([]string{"a", " ", "bc", "  ", "d"}, tokenize("a bc  d")); diff != "" {
		t.Errorf("tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestStringsReconstruct(t *testing.T) {
	a, b := "the quick brown fox", "the slow brown dog"
	sd := Strings(a, b)
	var oldS, newS strings.Builder
	for _, d := range sd.Deltas {
		if d.Op != Insert {
			oldS.WriteString(d.Text)
		}
		if d.Op != Delete {
			newS.WriteString(d.Text)
		}
	}
	if oldS.String() != a || newS.String() != b {
		t.Errorf("deltas rebuild %q / %q", oldS.String(), newS.String())
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, Characters(nil, []entities.Character{{Name: "Eve", Description: "a spy", Personality: "curious"}}))
	out := buf.String()
	if !strings.Contains(out, "Eve") || !strings.Contains(out, "a spy") {
		t.Errorf("Print() output = %q", out)
	}
}
