package builtins

import (
	"context"
	"fmt"
	"regexp"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/transform"
)

var labelRefPattern = regexp.MustCompile(`\$\{([a-zA-Z][a-zA-Z0-9_-]*)\}`)

// ExpandLabels substitutes ${LABEL} references in template with values
// from labels. Unknown labels fail unless ignoreMissing is set.
func ExpandLabels(template string, labels *change.Labels, ignoreMissing bool) (string, error) {
	var missing []string
	out := labelRefPattern.ReplaceAllStringFunc(template, func(ref string) string {
		name := labelRefPattern.FindStringSubmatch(ref)[1]
		if labels.Has(name) {
			return labels.Last(name)
		}
		missing = append(missing, name)
		return ref
	})
	if len(missing) > 0 && !ignoreMissing {
		return "", fmt.Errorf("cannot find label(s) %v in the changes being migrated", missing)
	}
	return out, nil
}

// ReplaceMessage rewrites the destination change message from a
// template. Message rewrites discard the original text, so this is not
// reversible.
type ReplaceMessage struct {
	starlarkTransform
	template string
}

// Name implements transform.Transformation
func (t *ReplaceMessage) Name() string {
	return fmt.Sprintf("metadata.replace_message(%q)", t.template)
}

// String implements starlark.Value
func (t *ReplaceMessage) String() string { return t.Name() }

// Transform implements transform.Transformation
func (t *ReplaceMessage) Transform(ctx context.Context, work *transform.Work) error {
	expanded, err := ExpandLabels(t.template, work.AllLabels(), false)
	if err != nil {
		return fmt.Errorf("%s: %w", t.Name(), err)
	}
	work.SetMessage(expanded)
	return nil
}

// AddHeader prepends a templated line to the destination change message
type AddHeader struct {
	starlarkTransform
	template      string
	ignoreMissing bool
}

// Name implements transform.Transformation
func (t *AddHeader) Name() string {
	return fmt.Sprintf("metadata.add_header(%q)", t.template)
}

// String implements starlark.Value
func (t *AddHeader) String() string { return t.Name() }

// Transform implements transform.Transformation
func (t *AddHeader) Transform(ctx context.Context, work *transform.Work) error {
	expanded, err := ExpandLabels(t.template, work.AllLabels(), t.ignoreMissing)
	if err != nil {
		return fmt.Errorf("%s: %w", t.Name(), err)
	}
	work.SetMessage(expanded + "\n\n" + work.Metadata.Message)
	return nil
}

func replaceMessageFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	return &ReplaceMessage{template: text}, nil
}

func addHeaderFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		text          string
		ignoreMissing bool
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"text", &text,
		"ignore_label_not_found?", &ignoreMissing,
	); err != nil {
		return nil, err
	}
	return &AddHeader{template: text, ignoreMissing: ignoreMissing}, nil
}

// MetadataModule exposes the metadata.* namespace
type MetadataModule struct{}

// ModuleName implements loader.Module
func (MetadataModule) ModuleName() string { return "metadata" }

// ModuleValue implements loader.Module
func (MetadataModule) ModuleValue() starlark.Value {
	return &starlarkstruct.Module{
		Name: "metadata",
		Members: starlark.StringDict{
			"replace_message": starlark.NewBuiltin("metadata.replace_message", replaceMessageFn),
			"add_header":      starlark.NewBuiltin("metadata.add_header", addHeaderFn),
		},
	}
}
