package testhelpers

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/copybara/copybara/internal/builtins"
)

// TestingModule exposes a fixed origin/destination pair to config files
// under the "testing" namespace, so loader-level tests can register
// migrations against in-memory backends.
type TestingModule struct {
	Origin      *DummyOrigin
	Destination *RecordingDestination
}

// NewTestingModule wires the given backends
func NewTestingModule(origin *DummyOrigin, destination *RecordingDestination) *TestingModule {
	return &TestingModule{Origin: origin, Destination: destination}
}

// ModuleName implements loader.Module
func (m *TestingModule) ModuleName() string { return "testing" }

// ModuleValue implements loader.Module
func (m *TestingModule) ModuleValue() starlark.Value {
	return &starlarkstruct.Module{
		Name: "testing",
		Members: starlark.StringDict{
			"origin":      starlark.NewBuiltin("testing.origin", m.originFn),
			"destination": starlark.NewBuiltin("testing.destination", m.destinationFn),
		},
	}
}

func (m *TestingModule) originFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return &builtins.OriginValue{Origin: m.Origin, Label: "testing.origin()"}, nil
}

func (m *TestingModule) destinationFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return &builtins.DestinationValue{Destination: m.Destination, Label: "testing.destination()"}, nil
}
