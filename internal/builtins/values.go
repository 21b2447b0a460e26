// Package builtins implements the Starlark modules installed in the
// config evaluation environment: core, authoring, metadata and folder.
package builtins

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/copybara/copybara/internal/authoring"
	"github.com/copybara/copybara/internal/glob"
	"github.com/copybara/copybara/internal/vcs"
)

// GlobValue wraps a path matcher as a Starlark value
type GlobValue struct {
	Glob *glob.Glob
}

// String implements starlark.Value
func (g *GlobValue) String() string { return g.Glob.String() }

// Type implements starlark.Value
func (g *GlobValue) Type() string { return "glob" }

// Freeze implements starlark.Value; globs are immutable
func (g *GlobValue) Freeze() {}

// Truth implements starlark.Value
func (g *GlobValue) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value
func (g *GlobValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: glob") }

// AuthoringValue wraps an authoring policy as a Starlark value
type AuthoringValue struct {
	Authoring *authoring.Authoring
}

// String implements starlark.Value
func (a *AuthoringValue) String() string {
	return fmt.Sprintf("authoring.%s(%q)", a.Authoring.Mode(), a.Authoring.DefaultAuthor())
}

// Type implements starlark.Value
func (a *AuthoringValue) Type() string { return "authoring" }

// Freeze implements starlark.Value
func (a *AuthoringValue) Freeze() {}

// Truth implements starlark.Value
func (a *AuthoringValue) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value
func (a *AuthoringValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: authoring") }

// OriginValue wraps an origin backend as a Starlark value
type OriginValue struct {
	Origin vcs.Origin
	Label  string
}

// String implements starlark.Value
func (o *OriginValue) String() string { return o.Label }

// Type implements starlark.Value
func (o *OriginValue) Type() string { return "origin" }

// Freeze implements starlark.Value
func (o *OriginValue) Freeze() {}

// Truth implements starlark.Value
func (o *OriginValue) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value
func (o *OriginValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: origin") }

// DestinationValue wraps a destination backend as a Starlark value
type DestinationValue struct {
	Destination vcs.Destination
	Label       string
}

// String implements starlark.Value
func (d *DestinationValue) String() string { return d.Label }

// Type implements starlark.Value
func (d *DestinationValue) Type() string { return "destination" }

// Freeze implements starlark.Value
func (d *DestinationValue) Freeze() {}

// Truth implements starlark.Value
func (d *DestinationValue) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value
func (d *DestinationValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: destination")
}

// unpackGlob converts None / glob / list-of-strings into a matcher.
// None yields the match-everything glob.
func unpackGlob(v starlark.Value) (*glob.Glob, error) {
	switch val := v.(type) {
	case nil, starlark.NoneType:
		return glob.All(), nil
	case *GlobValue:
		return val.Glob, nil
	case *starlark.List:
		patterns, err := stringList(val, "paths")
		if err != nil {
			return nil, err
		}
		return glob.New(patterns, nil)
	default:
		return nil, fmt.Errorf("expected glob or list of strings, got %s", v.Type())
	}
}

// stringList converts a Starlark list to a Go string slice
func stringList(list *starlark.List, what string) ([]string, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]string, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s must be strings, got %s", what, list.Index(i).Type())
		}
		out[i] = s
	}
	return out, nil
}
