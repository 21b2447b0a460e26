// Package config implements the content-addressed virtual filesystem over
// configuration sources: path-backed and map-backed files, label
// resolution, and the capturing wrapper that records transitive loads.
package config

import (
	"fmt"
	"strings"

	"github.com/copybara/copybara/internal/core"
)

// RootFlagHint names the CLI knob surfaced when an absolute label is used
// without a configured root.
const RootFlagHint = "--config-root"

// File is an abstract handle to one unit of configuration content.
// Resolve is pure: resolving the same label twice yields an equivalent
// File (content-equal, identifier-equal).
type File interface {
	// Resolve returns the File the label points at, relative to this one.
	// Labels starting with "//" resolve against the configured root.
	Resolve(label string) (File, error)
	// Path returns the display path, stable within one process
	Path() string
	// Identifier returns the stable identifier used for fingerprinting;
	// root-relative when a root is configured
	Identifier() string
	// ReadContent returns the file bytes
	ReadContent() ([]byte, error)
}

// validateLabel rejects ill-formed labels before any filesystem access.
// Normalization forbids ".." segments outright.
func validateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("empty label")
	}
	rest := strings.TrimPrefix(label, "//")
	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." {
			return fmt.Errorf("label %q contains '..' segments", label)
		}
	}
	return nil
}

func unresolvable(current, label, format string, args ...interface{}) error {
	return core.NewError(core.UnresolvableLabel).
		WithOperation("resolving label").
		WithFile(current).
		WithContext("label", label).
		WithCause(fmt.Errorf(format, args...)).
		Build()
}

// ContentEqual reports whether two files carry the same bytes
func ContentEqual(a, b File) (bool, error) {
	ca, err := a.ReadContent()
	if err != nil {
		return false, err
	}
	cb, err := b.ReadContent()
	if err != nil {
		return false, err
	}
	return string(ca) == string(cb), nil
}
