package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/psaab/relayd/pkg/cmdtree"
	"github.com/psaab/relayd/pkg/command"
)

func testManager(t *testing.T) *command.Manager {
	t.Helper()
	m := command.NewManager(nil, nil, nil)
	for _, name := range []string{"teleport", "tell", "time", "gift", "series", "server"} {
		if err := m.Register(command.SimpleCommand(func(cmdtree.Source, []string) error {
			return nil
		}), command.NewMetaBuilder(name).Build()); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestPartialToken(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"", ""},
		{"te", "te"},
		{"/te", "te"},
		{"time ", ""},
		{"time se", "se"},
	}
	for _, tt := range tests {
		if got := partialToken(tt.text); got != tt.want {
			t.Errorf("partialToken(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestCompleterSingleCandidate(t *testing.T) {
	comp := &completer{mgr: testManager(t), src: consoleSource{}, out: &bytes.Buffer{}}

	got, length := comp.Do([]rune("gi"), 2)
	if length != 2 {
		t.Errorf("length = %d, want 2", length)
	}
	if len(got) != 1 || string(got[0]) != "ft " {
		t.Errorf("candidates = %q", got)
	}
}

func TestCompleterCommonPrefix(t *testing.T) {
	var buf bytes.Buffer
	comp := &completer{mgr: testManager(t), src: consoleSource{}, out: &buf}

	// series and server share "ser" past the typed "se".
	got, length := comp.Do([]rune("se"), 2)
	if length != 2 {
		t.Errorf("length = %d", length)
	}
	if len(got) != 1 || string(got[0]) != "r" {
		t.Errorf("candidates = %q", got)
	}
	help := buf.String()
	if !strings.Contains(help, "Possible completions:") {
		t.Errorf("help = %q", help)
	}
	for _, want := range []string{"series", "server"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q: %q", want, help)
		}
	}
	if strings.Contains(help, "gift") {
		t.Errorf("help includes non-matching candidate: %q", help)
	}
}

func TestCompleterFuzzyMatchesDisplayOnly(t *testing.T) {
	var buf bytes.Buffer
	comp := &completer{mgr: testManager(t), src: consoleSource{}, out: &buf}

	// "te" also completes to time, which does not start with it, so
	// the line is never extended past what was typed.
	got, length := comp.Do([]rune("te"), 2)
	if length != 2 {
		t.Errorf("length = %d", length)
	}
	if got != nil {
		t.Errorf("candidates = %q, want display only", got)
	}
	help := buf.String()
	for _, want := range []string{"teleport", "tell", "time"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q: %q", want, help)
		}
	}
}

func TestCompleterNoMatch(t *testing.T) {
	comp := &completer{mgr: testManager(t), src: consoleSource{}, out: &bytes.Buffer{}}
	got, _ := comp.Do([]rune("xyz"), 3)
	if got != nil {
		t.Errorf("candidates = %q, want none", got)
	}
}

func TestWriteCompletionHelpAlignment(t *testing.T) {
	var buf bytes.Buffer
	writeCompletionHelp(&buf, []completionCandidate{
		{name: "zeta", desc: "last"},
		{name: "alpha", desc: "first"},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "Possible completions:" {
		t.Errorf("header = %q", lines[0])
	}
	// Sorted and aligned to at least the 20-column minimum.
	if !strings.HasPrefix(lines[1], "  alpha") || !strings.Contains(lines[1], "first") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "  zeta") || !strings.Contains(lines[2], "last") {
		t.Errorf("line 2 = %q", lines[2])
	}
}
