package command

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAliases is returned by Register when the meta names no
	// aliases.
	ErrNoAliases = errors.New("registration has no aliases")
	// ErrAliasMismatch is returned when a tree command's root literal
	// does not match the meta's primary alias.
	ErrAliasMismatch = errors.New("tree root does not match primary alias")
	// ErrUnknownStyle is returned for a Command implementation the
	// manager does not recognize.
	ErrUnknownStyle = errors.New("unknown command style")
)

// InvocationError wraps a failure (error return or panic) from a
// command action with the line and source that triggered it.
type InvocationError struct {
	Line   string
	Source string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("command %q from %s: %v", e.Line, e.Source, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
