package builtins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.starlark.net/starlark"

	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/fileutil"
	"github.com/copybara/copybara/internal/glob"
	"github.com/copybara/copybara/internal/transform"
)

// starlarkTransform supplies the starlark.Value plumbing shared by every
// transformation value.
type starlarkTransform struct{}

func (starlarkTransform) Type() string         { return "transformation" }
func (starlarkTransform) Freeze()              {}
func (starlarkTransform) Truth() starlark.Bool { return starlark.True }
func (starlarkTransform) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: transformation")
}

// Replace is a reversible literal replacement over files matching paths
type Replace struct {
	starlarkTransform
	before string
	after  string
	paths  *glob.Glob
}

// Name implements transform.Transformation
func (t *Replace) Name() string {
	return fmt.Sprintf("core.replace(%q, %q)", t.before, t.after)
}

// String implements starlark.Value
func (t *Replace) String() string { return t.Name() }

// Transform implements transform.Transformation
func (t *Replace) Transform(ctx context.Context, work *transform.Work) error {
	files, err := fileutil.ListFiles(work.CheckoutDir, t.paths)
	if err != nil {
		return err
	}
	replaced := 0
	for _, rel := range files {
		path := filepath.Join(work.CheckoutDir, filepath.FromSlash(rel))
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !strings.Contains(string(content), t.before) {
			continue
		}
		updated := strings.ReplaceAll(string(content), t.before, t.after)
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
			return err
		}
		replaced++
	}
	work.Console.Verbose("%s: changed %d file(s)", t.Name(), replaced)
	return nil
}

// Reverse implements transform.Reversible
func (t *Replace) Reverse() (transform.Transformation, error) {
	return &Replace{before: t.after, after: t.before, paths: t.paths}, nil
}

// Move relocates a file or directory inside the checkout
type Move struct {
	starlarkTransform
	before    string
	after     string
	overwrite bool
}

// Name implements transform.Transformation
func (t *Move) Name() string {
	return fmt.Sprintf("core.move(%q, %q)", t.before, t.after)
}

// String implements starlark.Value
func (t *Move) String() string { return t.Name() }

// Transform implements transform.Transformation
func (t *Move) Transform(ctx context.Context, work *transform.Work) error {
	src := filepath.Join(work.CheckoutDir, filepath.FromSlash(t.before))
	dst := filepath.Join(work.CheckoutDir, filepath.FromSlash(t.after))
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%s: %q does not exist in the checkout", t.Name(), t.before)
	}
	if _, err := os.Stat(dst); err == nil && !t.overwrite {
		return fmt.Errorf("%s: %q already exists and overwrite is disabled", t.Name(), t.after)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// Reverse implements transform.Reversible. Overwriting moves lose the
// overwritten content and cannot be reversed.
func (t *Move) Reverse() (transform.Transformation, error) {
	if t.overwrite {
		return nil, core.NewError(core.NotReversible).
			WithCause(fmt.Errorf("%s: moves with overwrite = True are not reversible", t.Name())).
			Build()
	}
	return &Move{before: t.after, after: t.before}, nil
}

// VerifyMatch checks files against a regex without modifying anything.
// It is its own inverse.
type VerifyMatch struct {
	starlarkTransform
	pattern       *regexp.Regexp
	paths         *glob.Glob
	verifyNoMatch bool
}

// Name implements transform.Transformation
func (t *VerifyMatch) Name() string {
	return fmt.Sprintf("core.verify_match(%q)", t.pattern)
}

// String implements starlark.Value
func (t *VerifyMatch) String() string { return t.Name() }

// Transform implements transform.Transformation
func (t *VerifyMatch) Transform(ctx context.Context, work *transform.Work) error {
	files, err := fileutil.ListFiles(work.CheckoutDir, t.paths)
	if err != nil {
		return err
	}
	var offending []string
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(work.CheckoutDir, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		matches := t.pattern.Match(content)
		if matches == t.verifyNoMatch {
			offending = append(offending, rel)
		}
	}
	if len(offending) > 0 {
		verb := "did not match"
		if t.verifyNoMatch {
			verb = "matched"
		}
		return core.NewError(core.CheckRejected).
			WithOperation("verifying content").
			WithCause(fmt.Errorf("%d file(s) %s %s: %s",
				len(offending), verb, t.pattern, strings.Join(offending, ", "))).
			Build()
	}
	return nil
}

// Reverse implements transform.Reversible
func (t *VerifyMatch) Reverse() (transform.Transformation, error) {
	return t, nil
}

// ExplicitTransform pairs a forward pipeline with its reversal, as built
// by core.transform.
type ExplicitTransform struct {
	starlarkTransform
	forward *transform.Sequence
	reverse *transform.Sequence
}

// Name implements transform.Transformation
func (t *ExplicitTransform) Name() string { return "core.transform" }

// String implements starlark.Value
func (t *ExplicitTransform) String() string { return t.Name() }

// Transform implements transform.Transformation
func (t *ExplicitTransform) Transform(ctx context.Context, work *transform.Work) error {
	return t.forward.Transform(ctx, work)
}

// Reverse implements transform.Reversible
func (t *ExplicitTransform) Reverse() (transform.Transformation, error) {
	if t.reverse != nil {
		return &ExplicitTransform{forward: t.reverse, reverse: t.forward}, nil
	}
	reversed, err := t.forward.Reverse()
	if err != nil {
		return nil, err
	}
	seq, ok := reversed.(*transform.Sequence)
	if !ok {
		return nil, core.Internalf("sequence reversal produced %T", reversed)
	}
	return &ExplicitTransform{forward: seq, reverse: t.forward}, nil
}

var (
	_ transform.Reversible     = (*Replace)(nil)
	_ transform.Reversible     = (*Move)(nil)
	_ transform.Reversible     = (*VerifyMatch)(nil)
	_ transform.Reversible     = (*ExplicitTransform)(nil)
	_ starlark.Value           = (*Replace)(nil)
	_ transform.Transformation = (*ReplaceMessage)(nil)
)

// transformationList unpacks a Starlark list into transformations
func transformationList(list *starlark.List, what string) ([]transform.Transformation, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]transform.Transformation, list.Len())
	for i := 0; i < list.Len(); i++ {
		item := list.Index(i)
		t, ok := item.(transform.Transformation)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a transformation, got %s", what, i, item.Type())
		}
		out[i] = t
	}
	return out, nil
}
