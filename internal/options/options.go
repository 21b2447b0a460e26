// Package options holds the typed option groups handed to the loader and
// the workflow runner. The bundle is read-only after the loader starts.
package options

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/copybara/copybara/internal/console"
)

// General are the options every component may consult
type General struct {
	// ConfigRoot anchors absolute ("//") config labels
	ConfigRoot string
	// WorkDirRoot is the scratch directory root; "" means a temp dir
	WorkDirRoot string
	// ReuseWorkdir recycles one workdir across iterations
	ReuseWorkdir bool
	DryRun       bool
	// Force bypasses baseline ancestry safety checks
	Force bool
	// MaxRetries caps retries of transient repository errors
	MaxRetries int
	Console    console.Console
	Logger     hclog.Logger
}

// Workflow are the options scoped to workflow migrations
type Workflow struct {
	// ModeOverride replaces the config-declared mode for this run
	// (e.g. "SQUASH", "ITERATIVE"); "" keeps the declared mode
	ModeOverride string
	// LastRevision overrides the baseline recorded in the destination
	LastRevision string
	// ChangeRequestParent is the caller-supplied baseline for
	// CHANGE_REQUEST runs
	ChangeRequestParent string
	// IgnoreNoop downgrades no-op iterations to warnings
	IgnoreNoop bool
	// InitHistory is carried in the bundle but not read by the workflow
	// runner; a first run against an empty destination always proceeds
	InitHistory bool
	// MigratedHistory bounds changes.migrated seen by transformations
	MigratedHistory int
	// Parallelism bounds concurrent ITERATIVE iterations; 1 means serial
	Parallelism int
	// CheckLastRevState is carried in the bundle but not read by the
	// workflow runner; destination state is not compared to the baseline
	CheckLastRevState bool
}

// Folder are the options of the folder origin/destination backend
type Folder struct {
	// OriginDir overrides the folder origin source directory
	OriginDir string
	// DestinationDir overrides the folder destination directory
	DestinationDir string
}

// Bundle is the heterogeneous bag of option groups. Passed by value; no
// group is mutated after the loader starts.
type Bundle struct {
	General  General
	Workflow Workflow
	Folder   Folder
}

// NewBundle creates a bundle with defaults applied
func NewBundle(log hclog.Logger, con console.Console) Bundle {
	return Bundle{
		General: General{
			MaxRetries: 3,
			Console:    con,
			Logger:     log,
		},
		Workflow: Workflow{
			MigratedHistory: 20,
			Parallelism:     1,
		},
	}
}

// Validate checks cross-field consistency
func (b *Bundle) Validate() error {
	if b.Workflow.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", b.Workflow.Parallelism)
	}
	if b.Workflow.MigratedHistory < 0 {
		return fmt.Errorf("migrated history must not be negative, got %d", b.Workflow.MigratedHistory)
	}
	return nil
}
