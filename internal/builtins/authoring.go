package builtins

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/copybara/copybara/internal/authoring"
	"github.com/copybara/copybara/internal/change"
)

func parseDefaultAuthor(s string) (change.Author, error) {
	author, ok := change.ParseAuthor(s)
	if !ok {
		return change.Author{}, fmt.Errorf("author %q must be in 'Name <email>' form", s)
	}
	return author, nil
}

func passThruFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var defaultAuthor string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "default", &defaultAuthor); err != nil {
		return nil, err
	}
	author, err := parseDefaultAuthor(defaultAuthor)
	if err != nil {
		return nil, err
	}
	a, err := authoring.New(author, authoring.PassThru, nil)
	if err != nil {
		return nil, err
	}
	return &AuthoringValue{Authoring: a}, nil
}

func overwriteFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var defaultAuthor string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "default", &defaultAuthor); err != nil {
		return nil, err
	}
	author, err := parseDefaultAuthor(defaultAuthor)
	if err != nil {
		return nil, err
	}
	a, err := authoring.New(author, authoring.Overwrite, nil)
	if err != nil {
		return nil, err
	}
	return &AuthoringValue{Authoring: a}, nil
}

func allowedFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		defaultAuthor string
		allowlist     *starlark.List
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"default", &defaultAuthor,
		"allowlist", &allowlist,
	); err != nil {
		return nil, err
	}
	author, err := parseDefaultAuthor(defaultAuthor)
	if err != nil {
		return nil, err
	}
	allowed, err := stringList(allowlist, "allowlist")
	if err != nil {
		return nil, err
	}
	a, err := authoring.New(author, authoring.Allowed, allowed)
	if err != nil {
		return nil, err
	}
	return &AuthoringValue{Authoring: a}, nil
}

// AuthoringModule exposes the authoring.* namespace
type AuthoringModule struct{}

// ModuleName implements loader.Module
func (AuthoringModule) ModuleName() string { return "authoring" }

// ModuleValue implements loader.Module
func (AuthoringModule) ModuleValue() starlark.Value {
	return &starlarkstruct.Module{
		Name: "authoring",
		Members: starlark.StringDict{
			"pass_thru": starlark.NewBuiltin("authoring.pass_thru", passThruFn),
			"overwrite": starlark.NewBuiltin("authoring.overwrite", overwriteFn),
			"allowed":   starlark.NewBuiltin("authoring.allowed", allowedFn),
		},
	}
}
