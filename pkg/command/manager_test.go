package command

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/psaab/relayd/pkg/cmdtree"
	"github.com/psaab/relayd/pkg/event"
	"github.com/psaab/relayd/pkg/logging"
)

type testSource struct {
	name    string
	replies []string
}

func (s *testSource) Name() string     { return s.name }
func (s *testSource) Reply(msg string) { s.replies = append(s.replies, msg) }

func await(t *testing.T, ch <-chan ExecResult) ExecResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch never completed")
		return ExecResult{}
	}
}

func TestRegisterAndExecuteSimple(t *testing.T) {
	m := NewManager(nil, nil, nil)
	var gotArgs []string
	cmd := SimpleCommand(func(src cmdtree.Source, args []string) error {
		gotArgs = args
		return nil
	})
	if err := m.Register(cmd, NewMetaBuilder("Server").Alias("s").Build()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	src := &testSource{name: "alice"}
	res := await(t, m.Execute(src, "/SERVER lobby two"))
	if !res.Handled || res.Err != nil {
		t.Fatalf("res = %+v", res)
	}
	if !reflect.DeepEqual(gotArgs, []string{"lobby", "two"}) {
		t.Errorf("args = %v", gotArgs)
	}

	// Secondary alias routes to the same action.
	res = await(t, m.Execute(src, "s lobby"))
	if !res.Handled {
		t.Error("secondary alias not handled")
	}
	if !reflect.DeepEqual(gotArgs, []string{"lobby"}) {
		t.Errorf("args via alias = %v", gotArgs)
	}
}

func TestExecuteRawGetsUnsplitTail(t *testing.T) {
	m := NewManager(nil, nil, nil)
	var got string
	cmd := RawCommand(func(src cmdtree.Source, arguments string) error {
		got = arguments
		return nil
	})
	if err := m.Register(cmd, NewMetaBuilder("say").Build()); err != nil {
		t.Fatal(err)
	}

	await(t, m.Execute(&testSource{name: "console"}, "say hello   there"))
	if got != "hello   there" {
		t.Errorf("arguments = %q", got)
	}
}

func TestExecuteUnknownNotHandled(t *testing.T) {
	m := NewManager(nil, nil, nil)
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error { return nil }),
		NewMetaBuilder("gift").Build())

	src := &testSource{name: "alice"}
	res := await(t, m.Execute(src, "give diamond"))
	if res.Handled {
		t.Error("unknown command must not be handled")
	}
	if len(src.replies) != 0 {
		t.Errorf("unexpected replies: %v", src.replies)
	}
}

func TestExecuteActionlessTerminalForwarded(t *testing.T) {
	m := NewManager(nil, nil, nil)
	tree := cmdtree.Literal("time").
		Then(cmdtree.Literal("set").
			Then(cmdtree.Argument("value", cmdtree.BoundedInt(0, 24000)).
				Executes(func(*cmdtree.Invocation) error { return nil })))
	if err := m.RegisterTree(tree); err != nil {
		t.Fatal(err)
	}

	// A known prefix with no bound action at the stop is not a local
	// command; it is forwarded without a reply.
	src := &testSource{name: "alice"}
	res := await(t, m.Execute(src, "time"))
	if res.Handled {
		t.Error("action-less terminal must not be handled")
	}
	if len(src.replies) != 0 {
		t.Errorf("unexpected replies: %v", src.replies)
	}
	if m.Stats().Unknown == 0 {
		t.Error("forwarded line not counted as unknown")
	}

	res = await(t, m.Execute(src, ""))
	if res.Handled {
		t.Error("empty line must not be handled")
	}
}

func TestExecuteSyntaxErrorHandled(t *testing.T) {
	m := NewManager(nil, nil, nil)
	tree := cmdtree.Literal("time").
		Then(cmdtree.Literal("set").
			Then(cmdtree.Argument("value", cmdtree.BoundedInt(0, 24000)).
				Executes(func(*cmdtree.Invocation) error { return nil })))
	if err := m.RegisterTree(tree); err != nil {
		t.Fatal(err)
	}

	src := &testSource{name: "alice"}
	res := await(t, m.Execute(src, "time set 99999"))
	if !res.Handled {
		t.Error("syntax error must be handled")
	}
	if res.Err != nil {
		t.Errorf("Err = %v", res.Err)
	}
	if len(src.replies) != 1 || src.replies[0] == "" {
		t.Errorf("replies = %v", src.replies)
	}
}

func TestExecuteForwardSentinel(t *testing.T) {
	m := NewManager(nil, nil, nil)
	m.Register(RawCommand(func(cmdtree.Source, string) error {
		return cmdtree.ErrForward
	}), NewMetaBuilder("passthrough").Build())

	res := await(t, m.Execute(&testSource{name: "alice"}, "passthrough x"))
	if res.Handled {
		t.Error("forwarded command must not be handled")
	}
}

func TestExecuteActionError(t *testing.T) {
	m := NewManager(nil, nil, nil)
	boom := errors.New("boom")
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error { return boom }),
		NewMetaBuilder("fail").Build())

	src := &testSource{name: "alice"}
	res := await(t, m.Execute(src, "fail"))
	if !res.Handled {
		t.Error("failed command is still handled")
	}
	var ierr *InvocationError
	if !errors.As(res.Err, &ierr) {
		t.Fatalf("Err = %v, want *InvocationError", res.Err)
	}
	if !errors.Is(res.Err, boom) {
		t.Error("cause not preserved through wrap")
	}
	if ierr.Source != "alice" || ierr.Line != "fail" {
		t.Errorf("context = %+v", ierr)
	}
	if len(src.replies) != 1 || src.replies[0] != internalErrorMessage {
		t.Errorf("replies = %v", src.replies)
	}
}

func TestExecutePanicRecovered(t *testing.T) {
	m := NewManager(nil, nil, nil)
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error {
		panic("kaboom")
	}), NewMetaBuilder("crash").Build())

	res := await(t, m.Execute(&testSource{name: "alice"}, "crash"))
	if !res.Handled || res.Err == nil {
		t.Fatalf("res = %+v", res)
	}
	if !strings.Contains(res.Err.Error(), "kaboom") {
		t.Errorf("Err = %v", res.Err)
	}
}

func TestHintsCompleteAndDispatchToPrimary(t *testing.T) {
	m := NewManager(nil, nil, nil)
	var got string
	cmd := RawCommand(func(src cmdtree.Source, arguments string) error {
		got = arguments
		return nil
	})
	hint := cmdtree.Argument("target", cmdtree.Words{Fn: func(cmdtree.Source) []string {
		return []string{"lobby", "minigames"}
	}})
	meta := NewMetaBuilder("server").Hint(hint).Build()
	if err := m.Register(cmd, meta); err != nil {
		t.Fatal(err)
	}

	src := &testSource{name: "alice"}
	sugs := <-m.OfferSuggestions(src, "server ")
	if !reflect.DeepEqual(sugs, []string{"lobby", "minigames"}) {
		t.Errorf("suggestions = %v", sugs)
	}

	// A line matching the hint path still invokes the raw action.
	res := await(t, m.Execute(src, "server lobby"))
	if !res.Handled || res.Err != nil {
		t.Fatalf("res = %+v", res)
	}
	if got != "lobby" {
		t.Errorf("arguments = %q", got)
	}
}

func TestTreeCommandValidation(t *testing.T) {
	m := NewManager(nil, nil, nil)
	tree := cmdtree.Literal("time").Executes(func(*cmdtree.Invocation) error { return nil })

	err := m.Register(&TreeCommand{Root: tree}, NewMetaBuilder("clock").Build())
	if !errors.Is(err, ErrAliasMismatch) {
		t.Errorf("err = %v, want ErrAliasMismatch", err)
	}

	// Hints on a tree command are ignored, not rejected: the tree
	// already carries its own structure.
	err = m.Register(&TreeCommand{Root: tree},
		NewMetaBuilder("time").Hint(cmdtree.Literal("zone")).Build())
	if err != nil {
		t.Fatalf("tree with hints rejected: %v", err)
	}
	sugs := <-m.OfferSuggestions(&testSource{name: "alice"}, "time ")
	for _, s := range sugs {
		if s == "zone" {
			t.Errorf("ignored hint leaked into suggestions: %v", sugs)
		}
	}

	if err := m.Register(&TreeCommand{Root: tree}, NewMetaBuilder("time").Build()); err != nil {
		t.Errorf("valid tree rejected: %v", err)
	}
}

func TestRegisterReplacesAlias(t *testing.T) {
	m := NewManager(nil, nil, nil)
	var hit string
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error {
		hit = "old"
		return nil
	}), NewMetaBuilder("cmd").Build())
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error {
		hit = "new"
		return nil
	}), NewMetaBuilder("cmd").Build())

	await(t, m.Execute(&testSource{name: "alice"}, "cmd"))
	if hit != "new" {
		t.Errorf("hit = %q, want new registration", hit)
	}
}

func TestUnregisterRemovesOnlyThatAlias(t *testing.T) {
	m := NewManager(nil, nil, nil)
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error { return nil }),
		NewMetaBuilder("teleport").Alias("tp").Build())

	if !m.Unregister("teleport") {
		t.Fatal("Unregister returned false")
	}
	if m.HasCommand("teleport") {
		t.Error("primary still present")
	}
	// The secondary alias survives and still dispatches.
	if !m.HasCommand("tp") {
		t.Error("secondary alias removed by primary unregister")
	}
	res := await(t, m.Execute(&testSource{name: "alice"}, "tp"))
	if !res.Handled {
		t.Error("surviving alias not handled")
	}

	// Introspection follows dispatch: the surviving alias still
	// resolves its meta until it too is unregistered.
	if meta, ok := m.Meta("tp"); !ok || meta.Aliases[0] != "teleport" {
		t.Errorf("Meta(tp) after primary unregister = %+v, %v", meta, ok)
	}
	if !m.Unregister("tp") {
		t.Fatal("Unregister(tp) returned false")
	}
	if _, ok := m.Meta("tp"); ok {
		t.Error("meta survived removal of its last alias")
	}

	if m.Unregister("nonexistent") {
		t.Error("Unregister of unknown alias returned true")
	}
}

func TestAliasesListing(t *testing.T) {
	m := NewManager(nil, nil, nil)
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error { return nil }),
		NewMetaBuilder("teleport").Alias("tp").Build())
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error { return nil }),
		NewMetaBuilder("gift").Build())

	want := []string{"gift", "teleport", "tp"}
	if got := m.Aliases(); !reflect.DeepEqual(got, want) {
		t.Errorf("Aliases = %v, want %v", got, want)
	}

	if p, ok := m.Primary("tp"); !ok || p != "teleport" {
		t.Errorf("Primary(tp) = %q, %v", p, ok)
	}
	if meta, ok := m.Meta("TP"); !ok || meta.Aliases[0] != "teleport" {
		t.Errorf("Meta(TP) = %+v, %v", meta, ok)
	}
}

func TestExecuteInterception(t *testing.T) {
	newManagerWithBus := func() (*Manager, *event.Bus) {
		bus := event.NewBus(nil)
		m := NewManager(nil, bus, nil)
		return m, bus
	}

	t.Run("denied", func(t *testing.T) {
		m, bus := newManagerWithBus()
		ran := false
		m.Register(SimpleCommand(func(cmdtree.Source, []string) error {
			ran = true
			return nil
		}), NewMetaBuilder("op").Build())
		bus.Subscribe("guard", func(ev *event.CommandExecute) {
			ev.SetResult(event.ResultDenied)
		})

		res := await(t, m.Execute(&testSource{name: "alice"}, "op alice"))
		if !res.Handled {
			t.Error("denied command is still handled")
		}
		if ran {
			t.Error("denied command executed")
		}
	})

	t.Run("forwarded", func(t *testing.T) {
		m, bus := newManagerWithBus()
		m.Register(SimpleCommand(func(cmdtree.Source, []string) error { return nil }),
			NewMetaBuilder("op").Build())
		bus.Subscribe("guard", func(ev *event.CommandExecute) {
			ev.SetResult(event.ResultForward)
		})

		res := await(t, m.Execute(&testSource{name: "alice"}, "op alice"))
		if res.Handled {
			t.Error("forwarded command must not be handled")
		}
	})

	t.Run("rewritten", func(t *testing.T) {
		m, bus := newManagerWithBus()
		var got []string
		m.Register(SimpleCommand(func(_ cmdtree.Source, args []string) error {
			got = args
			return nil
		}), NewMetaBuilder("say").Build())
		bus.Subscribe("censor", func(ev *event.CommandExecute) {
			ev.SetResult(event.ResultModified("say something nice"))
		})

		res := await(t, m.Execute(&testSource{name: "alice"}, "say something rude"))
		if !res.Handled {
			t.Fatal("rewritten command not handled")
		}
		if !reflect.DeepEqual(got, []string{"something", "nice"}) {
			t.Errorf("args = %v", got)
		}
	})

	t.Run("immediately skips bus", func(t *testing.T) {
		m, bus := newManagerWithBus()
		ran := false
		m.Register(SimpleCommand(func(cmdtree.Source, []string) error {
			ran = true
			return nil
		}), NewMetaBuilder("op").Build())
		bus.Subscribe("guard", func(ev *event.CommandExecute) {
			ev.SetResult(event.ResultDenied)
		})

		res := await(t, m.ExecuteImmediately(&testSource{name: "alice"}, "op alice"))
		if !res.Handled || !ran {
			t.Errorf("res = %+v, ran = %v", res, ran)
		}
	})
}

func TestExecuteAuditTrail(t *testing.T) {
	audit := logging.NewAuditBuffer(16)
	m := NewManager(nil, nil, audit)
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error { return nil }),
		NewMetaBuilder("version").Build())
	m.Register(SimpleCommand(func(cmdtree.Source, []string) error {
		return fmt.Errorf("nope")
	}), NewMetaBuilder("fail").Build())

	src := &testSource{name: "alice"}
	await(t, m.Execute(src, "version"))
	await(t, m.Execute(src, "fail"))
	await(t, m.Execute(src, "missing"))

	recs := audit.Latest(10)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	// Newest first.
	results := []string{recs[0].Result, recs[1].Result, recs[2].Result}
	want := []string{logging.ResultUnknown, logging.ResultError, logging.ResultOK}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("results = %v, want %v", results, want)
	}

	stats := m.Stats()
	if stats.OK != 1 || stats.Errors != 1 || stats.Unknown != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.RegisteredAliases != 2 {
		t.Errorf("RegisteredAliases = %d", stats.RegisteredAliases)
	}
}
