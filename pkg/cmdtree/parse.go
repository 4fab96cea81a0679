package cmdtree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCommand is reported when the first token of a line matches
// no registered alias, or when the walk stops before any argument node
// rejected its token. Callers treat it as "not ours" and forward the
// line downstream.
var ErrUnknownCommand = errors.New("unknown command")

// SyntaxError is reported when a known alias was matched but a later
// token failed argument validation. Offset is the byte position of the
// offending token in the normalized input.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Offset, e.Message)
}

// Normalize prepares a raw line for parsing: a single leading slash is
// stripped, leading spaces are removed, and in strict mode trailing
// spaces are removed too. Completion uses non-strict mode, where a
// trailing space is significant (it anchors suggestions at the next
// token).
func Normalize(line string, strict bool) string {
	line = strings.TrimPrefix(line, "/")
	line = strings.TrimLeft(line, " ")
	if strict {
		line = strings.TrimRight(line, " ")
	}
	return line
}

// Result is the outcome of a parse walk.
type Result struct {
	// Path holds the nodes matched, in order, redirects resolved.
	Path []*Node
	// Remaining is the unconsumed tail of the input.
	Remaining string
	// Values holds parsed argument values keyed by argument node name.
	Values map[string]any
	// Err is nil, ErrUnknownCommand, or a *SyntaxError.
	Err error

	input     string
	anchor    *Node
	anchorPos int
}

// Input returns the normalized line the result was parsed from.
func (r *Result) Input() string { return r.input }

// Executable reports whether the walk ended on a node with an action,
// consumed the whole line, and saw no error. The action returned has
// redirects resolved.
func (r *Result) Executable() (Action, bool) {
	if r.Err != nil || r.Remaining != "" || len(r.Path) == 0 {
		return nil, false
	}
	last := r.Path[len(r.Path)-1].resolve()
	if last.action == nil {
		return nil, false
	}
	return last.action, true
}

// Invocation builds the execution context handed to an Action. Alias
// is the first token as typed; Arguments is everything after it.
func (r *Result) Invocation(src Source) *Invocation {
	alias, args, _ := strings.Cut(r.input, " ")
	return &Invocation{
		Source:    src,
		Line:      r.input,
		Alias:     alias,
		Arguments: args,
		Values:    r.Values,
	}
}

// Parse walks the tree from root over line for src. The walk prefers
// literal and redirect children (matched case-insensitively), then
// tries argument children in insertion order; the first argument type
// to accept the token wins. Requirements gate every step.
//
// Strict mode is for execution; non-strict is for completion, where a
// partial trailing token is left in Remaining rather than treated as
// an error.
func Parse(root *Node, line string, src Source, strict bool) *Result {
	input := Normalize(line, strict)
	res := &Result{
		input:  input,
		Values: make(map[string]any),
		anchor: root,
	}

	cur := root
	pos := 0
	for pos < len(input) {
		rem := input[pos:]
		tok := rem
		if i := strings.IndexByte(rem, ' '); i >= 0 {
			tok = rem[:i]
		}

		var (
			next     *Node
			consumed int
			argErr   *SyntaxError
		)

		children, argOrder := cur.snapshot()

		// Literal and redirect children match the lowercased token.
		if c, ok := children[strings.ToLower(tok)]; ok && c.kind != KindArgument && c.allowed(src) {
			next = c
			consumed = len(tok)
		} else {
			for _, name := range argOrder {
				a, ok := children[name]
				if !ok || !a.allowed(src) {
					continue
				}
				v, n, err := a.arg.Parse(rem)
				if err != nil {
					if argErr == nil {
						argErr = &SyntaxError{Offset: pos, Message: err.Error()}
					}
					continue
				}
				next = a
				consumed = n
				res.Values[name] = v
				break
			}
		}

		if next == nil {
			if argErr != nil {
				res.Err = argErr
			} else {
				res.Err = ErrUnknownCommand
			}
			res.Remaining = rem
			res.anchorPos = pos
			return res
		}

		resolved := next.resolve()
		res.Path = append(res.Path, resolved)
		pos += consumed

		if pos < len(input) {
			if input[pos] != ' ' {
				// Token not fully consumed: malformed.
				res.Err = &SyntaxError{Offset: pos, Message: "unexpected trailing characters"}
				res.Remaining = input[pos:]
				res.anchorPos = pos
				return res
			}
			pos++
			for pos < len(input) && input[pos] == ' ' {
				pos++
			}
			cur = resolved
			res.anchor = resolved
			res.anchorPos = pos
		} else {
			cur = resolved
		}
	}

	res.Remaining = input[pos:]
	return res
}
