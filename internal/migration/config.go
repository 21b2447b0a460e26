package migration

import (
	"sort"

	"github.com/copybara/copybara/internal/config"
)

// Config is the immutable result of loading a root config file plus its
// transitive imports.
type Config struct {
	// ProjectName defaults to the root path when the script set none
	ProjectName string
	// Migrations harvested during the load
	Migrations *Registry
	// RootPath is the display path of the root config file
	RootPath string
	// Globals is a snapshot of the root file's final top-level bindings,
	// rendered to strings
	Globals map[string]string
	// Files is the transitive closure of loaded config files
	Files *config.FileMap
}

// Migration looks up a migration by name
func (c *Config) Migration(name string) (Migration, error) {
	return c.Migrations.Get(name)
}

// Equivalent reports whether two loads of the same project produced the
// same config, compared by migration name set, description multimaps and
// file closure.
func (c *Config) Equivalent(other *Config) bool {
	if c.ProjectName != other.ProjectName {
		return false
	}
	a, b := c.Migrations.Names(), other.Migrations.Names()
	sort.Strings(a)
	sort.Strings(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	for _, name := range a {
		ma, _ := c.Migrations.Get(name)
		mb, _ := other.Migrations.Get(name)
		if !multimapEqual(ma.OriginDescription(), mb.OriginDescription()) ||
			!multimapEqual(ma.DestinationDescription(), mb.DestinationDescription()) {
			return false
		}
	}
	if c.Files.Len() != other.Files.Len() {
		return false
	}
	for _, id := range c.Files.Identifiers() {
		ca, _ := c.Files.Get(id)
		cb, ok := other.Files.Get(id)
		if !ok || string(ca) != string(cb) {
			return false
		}
	}
	return true
}

func multimapEqual(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || len(va) != len(vb) {
			return false
		}
		sa := append([]string(nil), va...)
		sb := append([]string(nil), vb...)
		sort.Strings(sa)
		sort.Strings(sb)
		for i := range sa {
			if sa[i] != sb[i] {
				return false
			}
		}
	}
	return true
}
