package loader

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/copybara/copybara/internal/config"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/migration"
	"github.com/copybara/copybara/internal/options"
)

// ConfigExtension is the conventional extension of loadable config files
const ConfigExtension = ".bara.sky"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
}

// Loader evaluates config files. One Loader may serve multiple
// independent loads; each load owns its own pending/loaded maps and
// module bindings.
type Loader struct {
	modules     []Module
	predeclared starlark.StringDict
	opts        options.Bundle
	con         console.Console
	log         hclog.Logger
}

// New creates a Loader with the given modules installed. OptionsAware
// modules are bound here, once.
func New(opts options.Bundle, globals starlark.StringDict, modules ...Module) *Loader {
	predeclared := make(starlark.StringDict, len(modules)+len(globals))
	for name, val := range globals {
		predeclared[name] = val
	}
	for _, m := range modules {
		if oa, ok := m.(OptionsAware); ok {
			oa.BindOptions(opts)
		}
		predeclared[m.ModuleName()] = m.ModuleValue()
	}
	log := opts.General.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	con := opts.General.Console
	if con == nil {
		con = console.NewCapturing()
	}
	return &Loader{
		modules:     modules,
		predeclared: predeclared,
		opts:        opts,
		con:         con,
		log:         log,
	}
}

// loadState tracks one load's progress for caching and cycle detection
type loadState struct {
	pending map[string]int // path -> position in stack
	stack   []string
	loaded  map[string]starlark.StringDict
	run     *Run
}

// Load evaluates root and its transitive loads, producing the immutable
// config. Loading is single-threaded within one call; independent calls
// may run in parallel.
func (l *Loader) Load(root config.File) (*migration.Config, error) {
	capturing := config.NewCapturingFile(root)

	var finalFiles *config.FileMap
	run := &Run{
		Registry: migration.NewRegistry(),
		MainFile: capturing,
		Options:  l.opts,
		Console:  l.con,
		Supplier: func() (*config.FileMap, error) {
			if finalFiles == nil {
				return nil, core.Internalf("transitive file map is not available until the load completes")
			}
			return finalFiles, nil
		},
	}
	for _, m := range l.modules {
		if la, ok := m.(LabelsAware); ok {
			la.BindFiles(capturing, run.Supplier)
		}
	}

	state := &loadState{
		pending: make(map[string]int),
		loaded:  make(map[string]starlark.StringDict),
		run:     run,
	}

	globals, err := l.execFile(state, capturing)
	if err != nil {
		return nil, err
	}

	finalFiles, err = capturing.AllLoadedFiles()
	if err != nil {
		return nil, err
	}

	projectName := run.ProjectName
	if projectName == "" {
		projectName = root.Path()
	}

	snapshot := make(map[string]string, len(globals))
	for name, val := range globals {
		snapshot[name] = val.String()
	}

	l.log.Debug("Loaded config", "root", root.Path(), "files", finalFiles.Len(),
		"migrations", run.Registry.Len())

	return &migration.Config{
		ProjectName: projectName,
		Migrations:  run.Registry,
		RootPath:    root.Path(),
		Globals:     snapshot,
		Files:       finalFiles,
	}, nil
}

// execFile evaluates one config file, recursing through its load
// statements. Results are cached by path; re-entry while pending is a
// cycle.
func (l *Loader) execFile(state *loadState, file config.File) (starlark.StringDict, error) {
	path := file.Path()

	if _, pending := state.pending[path]; pending {
		return nil, l.cycleError(state, path)
	}
	if globals, done := state.loaded[path]; done {
		return globals, nil
	}

	state.pending[path] = len(state.stack)
	state.stack = append(state.stack, path)
	defer func() {
		delete(state.pending, path)
		state.stack = state.stack[:len(state.stack)-1]
	}()

	content, err := file.ReadContent()
	if err != nil {
		return nil, err
	}

	thread := &starlark.Thread{
		Name: path,
		Print: func(_ *starlark.Thread, msg string) {
			l.con.Info("%s", msg)
		},
		Load: func(_ *starlark.Thread, label string) (starlark.StringDict, error) {
			if !strings.HasSuffix(label, ConfigExtension) {
				label += ConfigExtension
			}
			child, err := file.Resolve(label)
			if err != nil {
				return nil, err
			}
			return l.execFile(state, child)
		},
	}
	thread.SetLocal(runLocalKey, state.run)
	thread.SetLocal(fileLocalKey, file)

	globals, err := starlark.ExecFileOptions(fileOptions, thread, path, content, l.predeclared)
	if err != nil {
		return nil, configError(path, err)
	}
	globals.Freeze()

	state.loaded[path] = globals
	return globals, nil
}

// cycleError renders the pending stack with the re-entry marked
func (l *Loader) cycleError(state *loadState, path string) error {
	var sb strings.Builder
	sb.WriteString("cycle in config file loads:\n")
	for _, entry := range state.stack {
		if entry == path {
			fmt.Fprintf(&sb, "* %s\n", entry)
		} else {
			fmt.Fprintf(&sb, "  %s\n", entry)
		}
	}
	fmt.Fprintf(&sb, "* %s (cycle re-entry)", path)
	return core.NewError(core.CycleDetected).
		WithOperation("loading config").
		WithFile(path).
		WithCause(fmt.Errorf("%s", sb.String())).
		Build()
}

// configError converts interpreter failures into ConfigInvalid, keeping
// source locations. Errors already classified pass through untouched.
func configError(path string, err error) error {
	if core.IsKind(err, core.CycleDetected) || core.IsKind(err, core.UnresolvableLabel) ||
		core.IsKind(err, core.ConfigInvalid) {
		return err
	}

	if evalErr, ok := err.(*starlark.EvalError); ok {
		line := 0
		if len(evalErr.CallStack) > 0 {
			pos := evalErr.CallStack.At(len(evalErr.CallStack) - 1).Pos
			line = int(pos.Line)
		}
		return core.NewError(core.ConfigInvalid).
			WithOperation("evaluating config").
			WithFile(path).
			WithLine(line).
			WithCause(fmt.Errorf("%s", evalErr.Backtrace())).
			Build()
	}
	return core.ConfigInvalidf(path, 0, "%v", err)
}
