// Package event implements the command interception bus. Before a
// parsed line executes, a CommandExecute event is fired to observers
// that may allow, deny, rewrite, or forward it.
package event

import (
	"sync"

	"github.com/google/uuid"
)

type resultKind int

const (
	kindAllowed resultKind = iota
	kindDenied
	kindForward
	kindModified
)

// Result is an observer's verdict on a pending command.
type Result struct {
	kind    resultKind
	command string
}

var (
	// ResultAllowed lets the command run as typed.
	ResultAllowed = Result{kind: kindAllowed}
	// ResultDenied suppresses the command entirely.
	ResultDenied = Result{kind: kindDenied}
	// ResultForward skips local dispatch and passes the line through
	// to the downstream handler.
	ResultForward = Result{kind: kindForward}
)

// ResultModified allows the command but substitutes a rewritten line
// for execution.
func ResultModified(command string) Result {
	return Result{kind: kindModified, command: command}
}

// IsAllowed reports whether execution should proceed (as typed or
// rewritten).
func (r Result) IsAllowed() bool {
	return r.kind == kindAllowed || r.kind == kindModified
}

// IsForward reports whether the command should bypass local dispatch.
func (r Result) IsForward() bool { return r.kind == kindForward }

// ModifiedCommand returns the rewritten line, if any.
func (r Result) ModifiedCommand() (string, bool) {
	return r.command, r.kind == kindModified
}

// CommandExecute is fired once per dispatched line, before parsing.
// Observers run sequentially on one task, so SetResult calls do not
// race each other; the mutex guards against the firer reading a
// result while a misbehaving observer retains the event.
type CommandExecute struct {
	ID         uuid.UUID
	SourceName string
	RawCommand string

	mu     sync.Mutex
	result Result
}

// NewCommandExecute creates an event for src executing line, with the
// default allowed result.
func NewCommandExecute(sourceName, rawCommand string) *CommandExecute {
	return &CommandExecute{
		ID:         uuid.New(),
		SourceName: sourceName,
		RawCommand: rawCommand,
	}
}

// Result returns the event's current verdict.
func (e *CommandExecute) Result() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// SetResult records a verdict. The last observer to set one wins.
func (e *CommandExecute) SetResult(r Result) {
	e.mu.Lock()
	e.result = r
	e.mu.Unlock()
}
