package command

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/psaab/relayd/pkg/cmdtree"
	"github.com/psaab/relayd/pkg/event"
	"github.com/psaab/relayd/pkg/logging"
	"github.com/psaab/relayd/pkg/task"
)

// internalErrorMessage is what the source sees when an action fails.
const internalErrorMessage = "An internal error occurred while executing this command."

// ExecResult is the outcome of an asynchronous dispatch. Handled
// reports whether relayd consumed the line; an unhandled line should
// be forwarded downstream. Err is set when a handled command failed.
type ExecResult struct {
	Handled bool
	Err     error
}

// Manager owns the command tree, the alias table, and the execution
// pipeline. All dispatch entry points are asynchronous: they schedule
// work on the manager's runner and return a buffered channel that
// yields exactly one result.
type Manager struct {
	runner task.Runner
	bus    *event.Bus
	audit  *logging.AuditBuffer

	mu      sync.RWMutex
	root    *cmdtree.Node
	aliases map[string]string // alias -> primary
	metas   map[string]*Meta  // primary -> meta

	ok        atomic.Uint64
	errored   atomic.Uint64
	denied    atomic.Uint64
	forwarded atomic.Uint64
	syntax    atomic.Uint64
	unknown   atomic.Uint64
}

// NewManager creates a manager running on runner. A nil runner uses
// one goroutine per dispatch. bus enables pre-execution interception
// and audit records command outcomes; both may be nil.
func NewManager(runner task.Runner, bus *event.Bus, audit *logging.AuditBuffer) *Manager {
	if runner == nil {
		runner = task.Goroutines{}
	}
	return &Manager{
		runner:  runner,
		bus:     bus,
		audit:   audit,
		root:    cmdtree.NewRoot(),
		aliases: make(map[string]string),
		metas:   make(map[string]*Meta),
	}
}

// Root exposes the command tree for parsing and completion.
func (m *Manager) Root() *cmdtree.Node { return m.root }

// Register installs a command under every alias in meta. The primary
// alias gets the command node itself; secondaries get redirect nodes,
// replacing whatever held those aliases before.
func (m *Manager) Register(cmd Command, meta *Meta) error {
	if meta == nil || len(meta.Aliases) == 0 {
		return ErrNoAliases
	}
	primary := strings.ToLower(meta.Aliases[0])

	var node *cmdtree.Node
	switch c := cmd.(type) {
	case *TreeCommand:
		if c.Root == nil {
			return fmt.Errorf("tree command: nil root")
		}
		if c.Root.Name() != primary {
			return fmt.Errorf("%w: root %q, alias %q", ErrAliasMismatch, c.Root.Name(), primary)
		}
		node = c.Root
	case SimpleCommand:
		node = buildSimple(primary, c)
	case RawCommand:
		node = buildRaw(primary, c)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownStyle, cmd)
	}

	// Hint subtrees complete like real children but defer execution
	// to the primary's action. A tree command carries its own
	// structure, so hints on it are ignored.
	if _, isTree := cmd.(*TreeCommand); !isTree {
		for _, hint := range meta.Hints {
			node.Then(cmdtree.WrapForHinting(hint, node.Action()))
		}
	} else if len(meta.Hints) > 0 {
		slog.Debug("ignoring hints on tree command", "alias", primary)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.root.ReplaceChild(node)
	m.aliases[primary] = primary
	m.metas[primary] = meta

	for _, alias := range meta.Aliases[1:] {
		alias = strings.ToLower(alias)
		if alias == primary {
			continue
		}
		m.root.RemoveChild(alias)
		if err := m.root.AddChild(cmdtree.Redirect(alias, node)); err != nil {
			return fmt.Errorf("alias %q: %w", alias, err)
		}
		m.aliases[alias] = primary
	}
	return nil
}

// RegisterTree registers a caller-built subtree under its root name,
// plus any extra aliases.
func (m *Manager) RegisterTree(root *cmdtree.Node, aliases ...string) error {
	b := MetaBuilderFromTree(root)
	for _, a := range aliases {
		b.Alias(a)
	}
	return m.Register(&TreeCommand{Root: root}, b.Build())
}

// Unregister removes the given alias. Only that alias is detached: a
// primary's secondary redirects survive it, and vice versa. It
// reports whether anything was removed.
func (m *Manager) Unregister(alias string) bool {
	alias = strings.ToLower(alias)
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.root.RemoveChild(alias)
	if removed == nil {
		return false
	}
	primary, tracked := m.aliases[alias]
	delete(m.aliases, alias)
	if tracked {
		// The meta stays reachable while any co-alias still points at
		// it; redirects keep dispatching after their primary is gone.
		inUse := false
		for _, p := range m.aliases {
			if p == primary {
				inUse = true
				break
			}
		}
		if !inUse {
			delete(m.metas, primary)
		}
	}
	return true
}

// HasCommand reports whether an alias is registered, primary or
// secondary.
func (m *Manager) HasCommand(alias string) bool {
	return m.root.Child(alias) != nil
}

// Aliases returns all registered aliases, sorted.
func (m *Manager) Aliases() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.aliases))
	for a := range m.aliases {
		out = append(out, a)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Meta returns the registration metadata an alias resolves to.
func (m *Manager) Meta(alias string) (*Meta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	primary, ok := m.aliases[strings.ToLower(alias)]
	if !ok {
		return nil, false
	}
	meta, ok := m.metas[primary]
	return meta, ok
}

// Primary resolves an alias to its primary alias.
func (m *Manager) Primary(alias string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.aliases[strings.ToLower(alias)]
	return p, ok
}

// Execute fires the interception event for line, then dispatches it
// unless an observer denied or forwarded it. The returned channel
// yields exactly one result.
func (m *Manager) Execute(src cmdtree.Source, line string) <-chan ExecResult {
	out := make(chan ExecResult, 1)
	m.runner.Go(func() {
		out <- m.executeWithEvent(src, line)
	})
	return out
}

// ExecuteImmediately dispatches line without firing the interception
// event.
func (m *Manager) ExecuteImmediately(src cmdtree.Source, line string) <-chan ExecResult {
	out := make(chan ExecResult, 1)
	m.runner.Go(func() {
		out <- m.executeNow(src, line)
	})
	return out
}

// CallCommandEvent fires the interception event without executing
// anything, yielding the event once all observers have run.
func (m *Manager) CallCommandEvent(src cmdtree.Source, line string) <-chan *event.CommandExecute {
	ev := event.NewCommandExecute(src.Name(), line)
	if m.bus == nil {
		done := make(chan *event.CommandExecute, 1)
		done <- ev
		return done
	}
	return m.bus.Fire(ev)
}

func (m *Manager) executeWithEvent(src cmdtree.Source, line string) ExecResult {
	if m.bus != nil {
		ev := <-m.bus.Fire(event.NewCommandExecute(src.Name(), line))
		res := ev.Result()
		switch {
		case res.IsForward():
			m.forwarded.Add(1)
			m.record(src, line, logging.ResultForwarded, "intercepted", 0)
			return ExecResult{Handled: false}
		case !res.IsAllowed():
			m.denied.Add(1)
			m.record(src, line, logging.ResultDenied, "intercepted", 0)
			return ExecResult{Handled: true}
		}
		if rewritten, ok := res.ModifiedCommand(); ok {
			line = rewritten
		}
	}
	return m.executeNow(src, line)
}

func (m *Manager) executeNow(src cmdtree.Source, line string) ExecResult {
	start := time.Now()
	res := cmdtree.Parse(m.root, line, src, true)
	norm := res.Input()

	var serr *cmdtree.SyntaxError
	switch {
	case errors.Is(res.Err, cmdtree.ErrUnknownCommand) && len(res.Path) == 0:
		// First token matched nothing: not ours.
		m.unknown.Add(1)
		m.record(src, norm, logging.ResultUnknown, "", time.Since(start))
		return ExecResult{Handled: false}
	case errors.As(res.Err, &serr):
		src.Reply(serr.Error())
		m.syntax.Add(1)
		m.record(src, norm, logging.ResultSyntaxError, serr.Message, time.Since(start))
		return ExecResult{Handled: true}
	case res.Err != nil:
		// Known alias, unrecognized continuation.
		msg := fmt.Sprintf("invalid arguments: %q", res.Remaining)
		src.Reply(msg)
		m.syntax.Add(1)
		m.record(src, norm, logging.ResultSyntaxError, msg, time.Since(start))
		return ExecResult{Handled: true}
	}

	action, ok := res.Executable()
	if !ok {
		// Parsed cleanly but no action is bound at the terminal:
		// nothing local to run, let the proxy forward it.
		m.unknown.Add(1)
		m.record(src, norm, logging.ResultUnknown, "", time.Since(start))
		return ExecResult{Handled: false}
	}

	err := m.invoke(action, res.Invocation(src))
	switch {
	case err == nil:
		m.ok.Add(1)
		m.record(src, norm, logging.ResultOK, "", time.Since(start))
		return ExecResult{Handled: true}
	case errors.Is(err, cmdtree.ErrForward):
		m.forwarded.Add(1)
		m.record(src, norm, logging.ResultForwarded, "", time.Since(start))
		return ExecResult{Handled: false}
	default:
		var ierr *InvocationError
		if !errors.As(err, &ierr) {
			err = &InvocationError{Line: norm, Source: src.Name(), Err: err}
		}
		slog.Error("command failed", "line", norm, "source", src.Name(), "error", err)
		src.Reply(internalErrorMessage)
		m.errored.Add(1)
		m.record(src, norm, logging.ResultError, err.Error(), time.Since(start))
		return ExecResult{Handled: true, Err: err}
	}
}

// invoke runs an action, converting panics into errors so one bad
// command cannot take down a worker.
func (m *Manager) invoke(action cmdtree.Action, inv *cmdtree.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 8192)
			n := runtime.Stack(buf, false)
			slog.Error("command panicked",
				"line", inv.Line, "source", inv.Source.Name(),
				"panic", r, "stack", string(buf[:n]))
			err = &InvocationError{
				Line:   inv.Line,
				Source: inv.Source.Name(),
				Err:    fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return action(inv)
}

// OfferSuggestions computes completion candidates for a partial line.
// The returned channel yields exactly one result.
func (m *Manager) OfferSuggestions(src cmdtree.Source, line string) <-chan []string {
	out := make(chan []string, 1)
	m.runner.Go(func() {
		sugs := cmdtree.Suggest(m.root, line, src)
		texts := make([]string, len(sugs))
		for i, s := range sugs {
			texts[i] = s.Text
		}
		out <- texts
	})
	return out
}

func (m *Manager) record(src cmdtree.Source, line, result, detail string, d time.Duration) {
	if m.audit == nil {
		return
	}
	m.audit.Add(logging.CommandRecord{
		Time:     time.Now(),
		ID:       uuid.New(),
		Source:   src.Name(),
		Line:     line,
		Result:   result,
		Detail:   detail,
		Duration: d,
	})
}

// Stats is a snapshot of dispatch counters.
type Stats struct {
	RegisteredAliases int
	OK                uint64
	Errors            uint64
	Denied            uint64
	Forwarded         uint64
	SyntaxErrors      uint64
	Unknown           uint64
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	registered := len(m.aliases)
	m.mu.RUnlock()
	return Stats{
		RegisteredAliases: registered,
		OK:                m.ok.Load(),
		Errors:            m.errored.Load(),
		Denied:            m.denied.Load(),
		Forwarded:         m.forwarded.Load(),
		SyntaxErrors:      m.syntax.Load(),
		Unknown:           m.unknown.Load(),
	}
}
