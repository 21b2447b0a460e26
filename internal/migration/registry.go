package migration

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/copybara/copybara/internal/core"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\./]+$`)

// DefaultName is the migration name used when a config omits name=
const DefaultName = "default"

// Registry maps migration name to migration within one load. Not
// thread-safe for writes; registration must happen on the load thread.
type Registry struct {
	byName map[string]Migration
	order  []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Migration)}
}

// Register adds a migration, enforcing name syntax and uniqueness
func (r *Registry) Register(m Migration) error {
	name := m.Name()
	if !namePattern.MatchString(name) {
		return core.NewError(core.ConfigInvalid).
			WithOperation("registering migration").
			WithCause(fmt.Errorf("migration name %q is invalid, it must match %s", name, namePattern)).
			Build()
	}
	if _, exists := r.byName[name]; exists {
		hint := ""
		if name == DefaultName {
			hint = ". Multiple migrations without an explicit name; supply distinct name = values"
		}
		return core.NewError(core.ConfigInvalid).
			WithOperation("registering migration").
			WithCause(fmt.Errorf("a migration named %q is already defined%s", name, hint)).
			Build()
	}
	r.byName[name] = m
	r.order = append(r.order, name)
	return nil
}

// Get returns the migration under name
func (r *Registry) Get(name string) (Migration, error) {
	if m, ok := r.byName[name]; ok {
		return m, nil
	}
	available := r.Names()
	sort.Strings(available)
	return nil, core.NewError(core.UnknownMigration).
		WithOperation("looking up migration").
		WithMigration(name).
		WithCause(fmt.Errorf("no migration named %q, available migrations: %s",
			name, strings.Join(available, ", "))).
		Build()
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns migrations in registration order
func (r *Registry) All() []Migration {
	out := make([]Migration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered migrations
func (r *Registry) Len() int {
	return len(r.order)
}
