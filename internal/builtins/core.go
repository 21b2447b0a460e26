package builtins

import (
	"fmt"
	"regexp"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/hashicorp/go-hclog"

	"github.com/copybara/copybara/internal/glob"
	"github.com/copybara/copybara/internal/loader"
	"github.com/copybara/copybara/internal/transform"
	"github.com/copybara/copybara/internal/workflow"
)

// CoreModule exposes the core.* namespace: workflow definition plus the
// transformation constructors.
type CoreModule struct{}

// ModuleName implements loader.Module
func (CoreModule) ModuleName() string { return "core" }

// ModuleValue implements loader.Module
func (CoreModule) ModuleValue() starlark.Value {
	return &starlarkstruct.Module{
		Name: "core",
		Members: starlark.StringDict{
			"workflow":     starlark.NewBuiltin("core.workflow", workflowFn),
			"transform":    starlark.NewBuiltin("core.transform", transformFn),
			"reverse":      starlark.NewBuiltin("core.reverse", reverseFn),
			"replace":      starlark.NewBuiltin("core.replace", replaceFn),
			"move":         starlark.NewBuiltin("core.move", moveFn),
			"verify_match": starlark.NewBuiltin("core.verify_match", verifyMatchFn),
			"project":      starlark.NewBuiltin("core.project", projectFn),
			"glob":         starlark.NewBuiltin("core.glob", globFn),
		},
	}
}

// Globals returns the top-level functions available without a namespace
func Globals() starlark.StringDict {
	return starlark.StringDict{
		"glob": starlark.NewBuiltin("glob", globFn),
	}
}

func runLogger(thread *starlark.Thread) hclog.Logger {
	if run := loader.RunFromThread(thread); run != nil && run.Options.General.Logger != nil {
		return run.Options.General.Logger
	}
	return hclog.NewNullLogger()
}

func globFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		include *starlark.List
		exclude *starlark.List
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"include", &include,
		"exclude?", &exclude,
	); err != nil {
		return nil, err
	}
	includes, err := stringList(include, "include")
	if err != nil {
		return nil, err
	}
	excludes, err := stringList(exclude, "exclude")
	if err != nil {
		return nil, err
	}
	g, err := glob.New(includes, excludes)
	if err != nil {
		return nil, err
	}
	return &GlobValue{Glob: g}, nil
}

func projectFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	run := loader.RunFromThread(thread)
	if run == nil {
		return nil, fmt.Errorf("core.project called outside a config load")
	}
	run.ProjectName = name
	return starlark.None, nil
}

func replaceFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		before string
		after  string
		paths  starlark.Value
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"before", &before,
		"after", &after,
		"paths?", &paths,
	); err != nil {
		return nil, err
	}
	if before == after {
		return nil, fmt.Errorf("core.replace with identical 'before' and 'after' is a noop")
	}
	matcher, err := unpackGlob(paths)
	if err != nil {
		return nil, fmt.Errorf("paths: %w", err)
	}
	return &Replace{before: before, after: after, paths: matcher}, nil
}

func moveFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		before    string
		after     string
		overwrite bool
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"before", &before,
		"after", &after,
		"overwrite?", &overwrite,
	); err != nil {
		return nil, err
	}
	if before == after {
		return nil, fmt.Errorf("moving from %q to the same path is a noop", before)
	}
	return &Move{before: before, after: after, overwrite: overwrite}, nil
}

func verifyMatchFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		pattern       string
		paths         starlark.Value
		verifyNoMatch bool
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"regex", &pattern,
		"paths?", &paths,
		"verify_no_match?", &verifyNoMatch,
	); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex: %v", err)
	}
	matcher, err := unpackGlob(paths)
	if err != nil {
		return nil, fmt.Errorf("paths: %w", err)
	}
	return &VerifyMatch{pattern: re, paths: matcher, verifyNoMatch: verifyNoMatch}, nil
}

func transformFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		transformations *starlark.List
		reversal        *starlark.List
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"transformations", &transformations,
		"reversal?", &reversal,
	); err != nil {
		return nil, err
	}
	forward, err := transformationList(transformations, "transformations")
	if err != nil {
		return nil, err
	}
	log := runLogger(thread)
	t := &ExplicitTransform{forward: transform.NewSequence(log, forward...)}
	if reversal != nil {
		reverse, err := transformationList(reversal, "reversal")
		if err != nil {
			return nil, err
		}
		t.reverse = transform.NewSequence(log, reverse...)
	}
	return t, nil
}

func reverseFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var transformations *starlark.List
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"transformations", &transformations,
	); err != nil {
		return nil, err
	}
	forward, err := transformationList(transformations, "transformations")
	if err != nil {
		return nil, err
	}
	seq := transform.NewSequence(runLogger(thread), forward...)
	reversed, err := seq.Reverse()
	if err != nil {
		return nil, err
	}
	revSeq, ok := reversed.(*transform.Sequence)
	if !ok {
		return nil, fmt.Errorf("sequence reversal produced %T", reversed)
	}
	elements := revSeq.Elements()
	out := make([]starlark.Value, 0, len(elements))
	for _, e := range elements {
		val, ok := e.(starlark.Value)
		if !ok {
			return nil, fmt.Errorf("reversed transformation %s is not usable from config files", e.Name())
		}
		out = append(out, val)
	}
	return starlark.NewList(out), nil
}

func workflowFn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name             string
		description      string
		origin           starlark.Value
		destination      starlark.Value
		auth             starlark.Value
		transformations  *starlark.List
		originFiles      starlark.Value
		destinationFiles starlark.Value
		mode             = "SQUASH"
		reversibleCheck  starlark.Value
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"name?", &name,
		"origin", &origin,
		"destination", &destination,
		"authoring", &auth,
		"transformations?", &transformations,
		"origin_files?", &originFiles,
		"destination_files?", &destinationFiles,
		"mode?", &mode,
		"reversible_check?", &reversibleCheck,
		"description?", &description,
	); err != nil {
		return nil, err
	}

	run := loader.RunFromThread(thread)
	if run == nil {
		return nil, fmt.Errorf("core.workflow called outside a config load")
	}

	if name == "" {
		name = "default"
	}

	originValue, ok := origin.(*OriginValue)
	if !ok {
		return nil, fmt.Errorf("origin must be an origin, got %s", origin.Type())
	}
	destinationValue, ok := destination.(*DestinationValue)
	if !ok {
		return nil, fmt.Errorf("destination must be a destination, got %s", destination.Type())
	}
	authoringValue, ok := auth.(*AuthoringValue)
	if !ok {
		return nil, fmt.Errorf("authoring must be an authoring policy, got %s", auth.Type())
	}

	workflowMode, err := workflow.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	originGlob, err := unpackGlob(originFiles)
	if err != nil {
		return nil, fmt.Errorf("origin_files: %w", err)
	}
	destinationGlob, err := unpackGlob(destinationFiles)
	if err != nil {
		return nil, fmt.Errorf("destination_files: %w", err)
	}

	elements, err := transformationList(transformations, "transformations")
	if err != nil {
		return nil, err
	}

	// reversible_check defaults to True exactly for CHANGE_REQUEST mode
	check := workflowMode == workflow.ChangeRequest
	switch v := reversibleCheck.(type) {
	case nil, starlark.NoneType:
	case starlark.Bool:
		check = bool(v)
	default:
		return nil, fmt.Errorf("reversible_check must be a bool, got %s", reversibleCheck.Type())
	}

	wf, err := workflow.New(workflow.Params{
		Name:             name,
		Description:      description,
		Mode:             workflowMode,
		Origin:           originValue.Origin,
		Destination:      destinationValue.Destination,
		Authoring:        authoringValue.Authoring,
		Transformation:   transform.NewSequence(runLogger(thread), elements...),
		OriginFiles:      originGlob,
		DestinationFiles: destinationGlob,
		ReversibleCheck:  check,
		ConfigFile:       loader.CurrentFile(thread),
		Options:          run.Options,
	})
	if err != nil {
		return nil, err
	}
	if err := run.Registry.Register(wf); err != nil {
		return nil, err
	}
	return starlark.None, nil
}
