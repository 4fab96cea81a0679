// Package plugin describes the modules that own registered commands.
// Ownership is metadata only: every registered alias may carry a
// description so operators can see which module claimed it.
package plugin

import (
	"fmt"
	"regexp"
	"sort"
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-_]{0,63}$`)

// Dependency is a named requirement on another plugin.
type Dependency struct {
	ID       string
	Optional bool
}

// Description identifies a plugin and its metadata.
type Description struct {
	id          string
	name        string
	version     string
	description string
	url         string
	authors     []string
	deps        map[string]Dependency
}

// NewDescription validates the plugin ID and builds a description.
// IDs are lowercase alphanumerics, dashes, and underscores, starting
// with a letter, at most 64 characters.
func NewDescription(id, name, version, description, url string, authors []string, deps []Dependency) (*Description, error) {
	if !idPattern.MatchString(id) {
		return nil, fmt.Errorf("invalid plugin ID %q", id)
	}
	d := &Description{
		id:          id,
		name:        name,
		version:     version,
		description: description,
		url:         url,
		authors:     append([]string(nil), authors...),
		deps:        make(map[string]Dependency, len(deps)),
	}
	for _, dep := range deps {
		if !idPattern.MatchString(dep.ID) {
			return nil, fmt.Errorf("invalid dependency ID %q", dep.ID)
		}
		d.deps[dep.ID] = dep
	}
	return d, nil
}

// ID returns the unique plugin identifier.
func (d *Description) ID() string { return d.id }

// DisplayName returns the human-facing name, falling back to the ID.
func (d *Description) DisplayName() string {
	if d.name != "" {
		return d.name
	}
	return d.id
}

func (d *Description) Version() string     { return d.version }
func (d *Description) Description() string { return d.description }
func (d *Description) URL() string         { return d.url }

// Authors returns a copy of the author list.
func (d *Description) Authors() []string {
	return append([]string(nil), d.authors...)
}

// Dependency looks up a dependency by plugin ID.
func (d *Description) Dependency(id string) (Dependency, bool) {
	dep, ok := d.deps[id]
	return dep, ok
}

// Dependencies returns all dependencies sorted by ID.
func (d *Description) Dependencies() []Dependency {
	out := make([]Dependency, 0, len(d.deps))
	for _, dep := range d.deps {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
