// Package command implements alias registration and dispatch over the
// command tree, with asynchronous execution and interception.
package command

import (
	"strings"

	"github.com/psaab/relayd/pkg/cmdtree"
)

// Command is one of the three authoring styles: TreeCommand for graph
// commands with typed arguments, SimpleCommand for pre-split words,
// RawCommand for an unsplit tail. The interface is sealed; the
// manager dispatches on the concrete type.
type Command interface {
	authoringStyle() string
}

// TreeCommand registers a caller-built subtree. The root must be a
// literal whose name is the primary alias.
type TreeCommand struct {
	Root *cmdtree.Node
}

func (*TreeCommand) authoringStyle() string { return "tree" }

// SimpleCommand is invoked with the argument tail split on spaces.
// Returning cmdtree.ErrForward passes the line downstream unhandled.
type SimpleCommand func(src cmdtree.Source, args []string) error

func (SimpleCommand) authoringStyle() string { return "simple" }

// RawCommand is invoked with the unsplit argument tail.
type RawCommand func(src cmdtree.Source, arguments string) error

func (RawCommand) authoringStyle() string { return "raw" }

// buildSimple constructs the primary node for a SimpleCommand: the
// bare alias and any argument tail both dispatch to fn.
func buildSimple(primary string, fn SimpleCommand) *cmdtree.Node {
	action := func(inv *cmdtree.Invocation) error {
		return fn(inv.Source, strings.Fields(inv.Arguments))
	}
	return buildFlat(primary, action)
}

// buildRaw constructs the primary node for a RawCommand.
func buildRaw(primary string, fn RawCommand) *cmdtree.Node {
	action := func(inv *cmdtree.Invocation) error {
		return fn(inv.Source, inv.Arguments)
	}
	return buildFlat(primary, action)
}

func buildFlat(primary string, action cmdtree.Action) *cmdtree.Node {
	node := cmdtree.Literal(primary).Executes(action)
	node.Then(cmdtree.Argument("arguments", cmdtree.Greedy{}).Executes(action))
	return node
}
