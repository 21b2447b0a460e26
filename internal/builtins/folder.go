package builtins

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/copybara/copybara/internal/folder"
	"github.com/copybara/copybara/internal/options"
)

// FolderModule exposes the folder.* namespace over the folder backend.
// It is options-aware: CLI flags supply the default directories.
type FolderModule struct {
	opts options.Bundle
}

// NewFolderModule creates a folder module for one load
func NewFolderModule() *FolderModule {
	return &FolderModule{}
}

// ModuleName implements loader.Module
func (m *FolderModule) ModuleName() string { return "folder" }

// BindOptions implements loader.OptionsAware
func (m *FolderModule) BindOptions(opts options.Bundle) {
	m.opts = opts
}

// ModuleValue implements loader.Module
func (m *FolderModule) ModuleValue() starlark.Value {
	return &starlarkstruct.Module{
		Name: "folder",
		Members: starlark.StringDict{
			"origin":      starlark.NewBuiltin("folder.origin", m.originFn),
			"destination": starlark.NewBuiltin("folder.destination", m.destinationFn),
		},
	}
}

func (m *FolderModule) originFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dir string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path?", &dir); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = m.opts.Folder.OriginDir
	}
	if dir == "" {
		return nil, fmt.Errorf("folder.origin requires path= or the --folder-origin flag")
	}
	origin, err := folder.NewOrigin(dir)
	if err != nil {
		return nil, err
	}
	return &OriginValue{Origin: origin, Label: fmt.Sprintf("folder.origin(%q)", dir)}, nil
}

func (m *FolderModule) destinationFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dir string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path?", &dir); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = m.opts.Folder.DestinationDir
	}
	if dir == "" {
		return nil, fmt.Errorf("folder.destination requires path= or the --folder-destination flag")
	}
	dest, err := folder.NewDestination(dir)
	if err != nil {
		return nil, err
	}
	return &DestinationValue{Destination: dest, Label: fmt.Sprintf("folder.destination(%q)", dir)}, nil
}
