// Package loader embeds the Starlark interpreter: it evaluates the root
// config file plus its transitive loads and assembles the migration
// registry.
package loader

import (
	"go.starlark.net/starlark"

	"github.com/copybara/copybara/internal/config"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/migration"
	"github.com/copybara/copybara/internal/options"
)

// Module is one Starlark namespace installed in the predeclared
// environment. Modules are created per load and must not be shared
// across loads.
type Module interface {
	// ModuleName is the namespace the module is bound under
	ModuleName() string
	// ModuleValue is the value installed in the environment
	ModuleValue() starlark.Value
}

// OptionsAware modules receive the option bundle once, at loader
// construction.
type OptionsAware interface {
	BindOptions(opts options.Bundle)
}

// LabelsAware modules observe the main config file and may retain the
// transitive-files supplier for migration-run time. The supplier must
// not be dereferenced during the load; it is populated only after the
// load completes.
type LabelsAware interface {
	BindFiles(main config.File, supplier config.FileMapSupplier)
}

// Run is the per-load mutable state builtins reach through thread
// locals: the registry every registration mutates, plus the evaluation
// context.
type Run struct {
	// Registry collects migrations as config calls register them
	Registry *migration.Registry
	// ProjectName is set by the config script; "" means default
	ProjectName string
	// MainFile is the root config file of this load
	MainFile config.File
	// Supplier resolves the transitive file map after load completion
	Supplier config.FileMapSupplier
	// Options is the read-only option bundle
	Options options.Bundle
	// Console is the user-facing sink available to builtins
	Console console.Console
}

const (
	runLocalKey  = "copybara.run"
	fileLocalKey = "copybara.currentFile"
)

// RunFromThread returns the per-load state bound to a Starlark thread
func RunFromThread(thread *starlark.Thread) *Run {
	run, _ := thread.Local(runLocalKey).(*Run)
	return run
}

// CurrentFile returns the config file the thread is evaluating. Each
// file gets its own thread, so the binding never needs refreshing
// mid-evaluation.
func CurrentFile(thread *starlark.Thread) config.File {
	file, _ := thread.Local(fileLocalKey).(config.File)
	return file
}
