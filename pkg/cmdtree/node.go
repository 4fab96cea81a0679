// Package cmdtree implements the mutable command tree relayd parses,
// completes, and dispatches against.
//
// The tree is shared state: registrations mutate it while parses and
// suggestion walks traverse it concurrently. Every node's child map is
// copy-on-write — mutations build a replacement map under the node
// lock and publish it wholesale, readers snapshot the current map — so
// a removal racing a traversal yields a consistent-but-stale view,
// never a torn read.
package cmdtree

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Source is the identity a command line is parsed and executed for.
type Source interface {
	// Name identifies the source in logs and error reports.
	Name() string
	// Reply delivers a user-visible message back to the source.
	Reply(msg string)
}

// Requirement gates a node on the invoking source. A nil Requirement
// admits every source.
type Requirement func(src Source) bool

// Invocation carries the matched command context into an Action.
type Invocation struct {
	Source    Source
	Line      string         // full normalized command line
	Alias     string         // first token, as typed
	Arguments string         // unparsed remainder after the alias token
	Values    map[string]any // parsed argument values keyed by node name
}

// Action is the executable bound at a node.
type Action func(inv *Invocation) error

// ErrForward is returned by an Action to signal that the command
// should be treated as not handled locally and forwarded to the next
// handler in the surrounding proxy.
var ErrForward = errors.New("forward command")

// ErrDuplicateChild is returned by AddChild when a sibling with the
// same normalized name already exists.
var ErrDuplicateChild = errors.New("duplicate child name")

// Kind discriminates node types.
type Kind int

const (
	KindRoot Kind = iota
	KindLiteral
	KindArgument
	KindRedirect
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindLiteral:
		return "literal"
	case KindArgument:
		return "argument"
	case KindRedirect:
		return "redirect"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is a vertex in the command tree. Literal and redirect names are
// normalized to lower case at construction. Redirect nodes own no
// children of their own; they resolve to their target's children by
// identity, so mutating the target is visible through every alias.
type Node struct {
	name    string
	kind    Kind
	arg     ArgType
	action  Action
	require Requirement
	target  *Node
	hint    bool

	mu       sync.RWMutex
	children map[string]*Node // copy-on-write; never mutated in place
	argOrder []string         // argument children in registration order
}

// NewRoot creates an empty root node.
func NewRoot() *Node {
	return &Node{kind: KindRoot}
}

// Literal creates a literal node matching the given token,
// case-insensitively.
func Literal(name string) *Node {
	return &Node{name: strings.ToLower(name), kind: KindLiteral}
}

// Argument creates an argument node whose token consumption and
// validation are delegated to arg.
func Argument(name string, arg ArgType) *Node {
	return &Node{name: strings.ToLower(name), kind: KindArgument, arg: arg}
}

// Redirect creates an alias node deferring child resolution and
// execution to target.
func Redirect(alias string, target *Node) *Node {
	return &Node{name: strings.ToLower(alias), kind: KindRedirect, target: target}
}

// Executes binds the action invoked when this node terminates a match.
// It returns the node for chaining.
func (n *Node) Executes(a Action) *Node {
	n.action = a
	return n
}

// Requires gates the node on the invoking source. Sources failing the
// requirement neither match nor see the node in suggestions.
func (n *Node) Requires(r Requirement) *Node {
	n.require = r
	return n
}

// Then attaches a child, replacing any same-named sibling, and returns
// the parent for chaining. Graph-style command authors build subtrees
// with Literal/Argument + Then/Executes/Requires.
func (n *Node) Then(child *Node) *Node {
	n.ReplaceChild(child)
	return n
}

// Name returns the node's normalized name ("" for the root).
func (n *Node) Name() string { return n.name }

// Kind returns the node type.
func (n *Node) Kind() Kind { return n.kind }

// Action returns the bound action, following redirects.
func (n *Node) Action() Action { return n.resolve().action }

// Target returns the redirect target, or nil for non-redirect nodes.
func (n *Node) Target() *Node { return n.target }

// IsHint reports whether the node is suggestion-only, attached via
// WrapForHinting.
func (n *Node) IsHint() bool { return n.hint }

// resolve substitutes the redirect target for continued matching; the
// alias token itself has already been consumed by the caller.
func (n *Node) resolve() *Node {
	if n.kind == KindRedirect && n.target != nil {
		return n.target
	}
	return n
}

func (n *Node) allowed(src Source) bool {
	r := n.resolve().require
	return r == nil || r(src)
}

// snapshot returns the current child map and argument order. The
// returned map must not be mutated.
func (n *Node) snapshot() (map[string]*Node, []string) {
	n.mu.RLock()
	m, ord := n.children, n.argOrder
	n.mu.RUnlock()
	return m, ord
}

// AddChild attaches child under n. It fails with ErrDuplicateChild if
// a sibling with the same normalized name exists.
func (n *Node) AddChild(child *Node) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.children[child.name]; ok {
		return fmt.Errorf("child %q: %w", child.name, ErrDuplicateChild)
	}
	n.publish(child)
	return nil
}

// ReplaceChild attaches child under n, silently replacing any sibling
// with the same normalized name.
func (n *Node) ReplaceChild(child *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publish(child)
}

// publish installs child into a fresh copy of the child map.
// Caller holds n.mu.
func (n *Node) publish(child *Node) {
	next := make(map[string]*Node, len(n.children)+1)
	for k, v := range n.children {
		next[k] = v
	}
	_, existed := next[child.name]
	next[child.name] = child

	order := n.argOrder
	if child.kind == KindArgument && !existed {
		order = append(append([]string(nil), n.argOrder...), child.name)
	}
	n.children = next
	n.argOrder = order
}

// RemoveChild detaches and returns the child with the given normalized
// name, or nil if absent.
func (n *Node) RemoveChild(name string) *Node {
	name = strings.ToLower(name)
	n.mu.Lock()
	defer n.mu.Unlock()
	removed, ok := n.children[name]
	if !ok {
		return nil
	}
	next := make(map[string]*Node, len(n.children)-1)
	for k, v := range n.children {
		if k != name {
			next[k] = v
		}
	}
	order := n.argOrder
	if removed.kind == KindArgument {
		order = make([]string, 0, len(n.argOrder))
		for _, a := range n.argOrder {
			if a != name {
				order = append(order, a)
			}
		}
	}
	n.children = next
	n.argOrder = order
	return removed
}

// Child returns the direct child with the given normalized name, or
// nil. Redirect children are returned as-is, not resolved.
func (n *Node) Child(name string) *Node {
	children, _ := n.snapshot()
	return children[strings.ToLower(name)]
}

// ChildNames returns the normalized names of all direct children, in
// unspecified order.
func (n *Node) ChildNames() []string {
	children, _ := n.snapshot()
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	return names
}

// WrapForHinting returns a copy of the hint subtree whose nodes all
// defer to action. Hint nodes enrich suggestions for flat (simple/raw)
// commands; were one ever selected as the terminal match, it invokes
// the primary node's action instead of carrying one of its own.
func WrapForHinting(hint *Node, action Action) *Node {
	wrapped := &Node{
		name:    hint.name,
		kind:    hint.kind,
		arg:     hint.arg,
		action:  action,
		require: hint.require,
		target:  hint.target,
		hint:    true,
	}
	children, order := hint.snapshot()
	if len(children) > 0 {
		next := make(map[string]*Node, len(children))
		for name, child := range children {
			next[name] = WrapForHinting(child, action)
		}
		wrapped.children = next
		wrapped.argOrder = append([]string(nil), order...)
	}
	return wrapped
}

// CommonPrefix returns the longest shared prefix among the given
// strings.
func CommonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
