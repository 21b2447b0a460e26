// Package transform defines the transformation contract and the engine
// composing transformations into a reversible pipeline.
package transform

import (
	"context"
)

// Transformation mutates the checkout and/or metadata of a Work. Only
// the workdir under Work.CheckoutDir and the metadata may be written;
// reads outside the workdir are permitted.
type Transformation interface {
	// Name identifies the transformation in diagnostics
	Name() string
	// Transform applies the transformation to work
	Transform(ctx context.Context, work *Work) error
}

// Reversible is implemented by transformations that can produce their
// inverse.
type Reversible interface {
	Transformation
	// Reverse returns the inverse transformation
	Reverse() (Transformation, error)
}

// Noop is the identity transformation
type Noop struct{}

// Name implements Transformation
func (Noop) Name() string { return "noop" }

// Transform implements Transformation
func (Noop) Transform(ctx context.Context, work *Work) error { return nil }

// Reverse implements Reversible
func (n Noop) Reverse() (Transformation, error) { return n, nil }
