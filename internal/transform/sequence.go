package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/copybara/copybara/internal/core"
)

// Sequence composes transformations into a pipeline. User-level nesting
// is flattened on construction; only the flat list runs.
type Sequence struct {
	elements []Transformation
	log      hclog.Logger
}

// NewSequence builds a pipeline from elements, flattening nested
// sequences.
func NewSequence(log hclog.Logger, elements ...Transformation) *Sequence {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	flat := make([]Transformation, 0, len(elements))
	for _, e := range elements {
		if seq, ok := e.(*Sequence); ok {
			flat = append(flat, seq.elements...)
			continue
		}
		flat = append(flat, e)
	}
	return &Sequence{elements: flat, log: log}
}

// Name implements Transformation
func (s *Sequence) Name() string {
	return fmt.Sprintf("sequence of %d transformations", len(s.elements))
}

// Elements returns the flat pipeline
func (s *Sequence) Elements() []Transformation {
	return append([]Transformation(nil), s.elements...)
}

// Transform implements Transformation. Elements run in order,
// single-threaded; cancellation is honored between elements. Each
// invocation is recorded for diagnostics.
func (s *Sequence) Transform(ctx context.Context, work *Work) error {
	for i, t := range s.elements {
		if err := ctx.Err(); err != nil {
			return core.NewError(core.Internal).
				WithOperation("running transformations").
				WithCause(err).
				Build()
		}
		start := time.Now()
		s.log.Debug("Running transformation", "index", i+1, "total", len(s.elements), "name", t.Name())
		if err := t.Transform(ctx, work); err != nil {
			return fmt.Errorf("transformation %d/%d (%s) failed: %w", i+1, len(s.elements), t.Name(), err)
		}
		s.log.Debug("Finished transformation", "name", t.Name(), "elapsed", time.Since(start))
	}
	return nil
}

// Reverse implements Reversible: the reversed list with each element
// reversed. Any non-reversible element makes the whole sequence
// non-reversible, naming the offender.
func (s *Sequence) Reverse() (Transformation, error) {
	reversed := make([]Transformation, 0, len(s.elements))
	for i := len(s.elements) - 1; i >= 0; i-- {
		r, ok := s.elements[i].(Reversible)
		if !ok {
			return nil, core.NewError(core.NotReversible).
				WithOperation("reversing transformations").
				WithCause(fmt.Errorf("transformation '%s' is not reversible", s.elements[i].Name())).
				Build()
		}
		inverse, err := r.Reverse()
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, inverse)
	}
	return NewSequence(s.log, reversed...), nil
}

// CheckReversible verifies every element of the pipeline can be reversed
func (s *Sequence) CheckReversible() error {
	_, err := s.Reverse()
	return err
}
