package command

import (
	"strings"

	"github.com/psaab/relayd/pkg/cmdtree"
	"github.com/psaab/relayd/pkg/plugin"
)

// Meta describes a registration: its aliases, suggestion-only hint
// subtrees, and the plugin that owns it.
type Meta struct {
	// Aliases holds the primary alias first, then secondaries. All are
	// matched case-insensitively.
	Aliases []string
	// Hints are subtrees attached under the primary node to enrich
	// suggestions for simple and raw commands. Tree commands carry
	// their own structure and accept no hints.
	Hints []*cmdtree.Node
	// Plugin optionally identifies the owning module.
	Plugin *plugin.Description
}

// MetaBuilder assembles a Meta fluently.
type MetaBuilder struct {
	meta Meta
}

// NewMetaBuilder starts a builder with the given primary alias.
func NewMetaBuilder(primary string) *MetaBuilder {
	b := &MetaBuilder{}
	b.meta.Aliases = []string{strings.ToLower(primary)}
	return b
}

// MetaBuilderFromTree starts a builder whose primary alias is the
// tree's root literal name.
func MetaBuilderFromTree(root *cmdtree.Node) *MetaBuilder {
	return NewMetaBuilder(root.Name())
}

// Alias adds a secondary alias.
func (b *MetaBuilder) Alias(alias string) *MetaBuilder {
	b.meta.Aliases = append(b.meta.Aliases, strings.ToLower(alias))
	return b
}

// Hint adds a suggestion-only subtree.
func (b *MetaBuilder) Hint(node *cmdtree.Node) *MetaBuilder {
	b.meta.Hints = append(b.meta.Hints, node)
	return b
}

// Plugin records the owning plugin.
func (b *MetaBuilder) Plugin(desc *plugin.Description) *MetaBuilder {
	b.meta.Plugin = desc
	return b
}

// Build returns the assembled Meta.
func (b *MetaBuilder) Build() *Meta {
	m := b.meta
	m.Aliases = append([]string(nil), b.meta.Aliases...)
	m.Hints = append([]*cmdtree.Node(nil), b.meta.Hints...)
	return &m
}
