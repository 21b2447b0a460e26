package workflow

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/copybara/copybara/internal/authoring"
	"github.com/copybara/copybara/internal/config"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/glob"
	"github.com/copybara/copybara/internal/migration"
	"github.com/copybara/copybara/internal/options"
	"github.com/copybara/copybara/internal/transform"
	"github.com/copybara/copybara/internal/vcs"
	"github.com/copybara/copybara/internal/workdir"
)

// Params bundles everything needed to construct a Workflow
type Params struct {
	Name             string
	Description      string
	Mode             Mode
	Origin           vcs.Origin
	Destination      vcs.Destination
	Authoring        *authoring.Authoring
	Transformation   *transform.Sequence
	OriginFiles      *glob.Glob
	DestinationFiles *glob.Glob
	ReversibleCheck  bool
	ConfigFile       config.File
	Options          options.Bundle
}

// Workflow is the workflow flavor of migration. Immutable after load.
type Workflow struct {
	name             string
	description      string
	mode             Mode
	origin           vcs.Origin
	destination      vcs.Destination
	auth             *authoring.Authoring
	transformation   *transform.Sequence
	originFiles      *glob.Glob
	destinationFiles *glob.Glob
	reversibleCheck  bool
	configFile       config.File
	opts             options.Bundle
	log              hclog.Logger
	con              console.Console
}

// New validates params and creates a Workflow
func New(p Params) (*Workflow, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("workflow requires a name")
	}
	if p.Origin == nil {
		return nil, fmt.Errorf("workflow '%s' requires an origin", p.Name)
	}
	if p.Destination == nil {
		return nil, fmt.Errorf("workflow '%s' requires a destination", p.Name)
	}
	if p.Authoring == nil {
		return nil, fmt.Errorf("workflow '%s' requires an authoring policy", p.Name)
	}
	if p.OriginFiles == nil {
		p.OriginFiles = glob.All()
	}
	if p.DestinationFiles == nil {
		p.DestinationFiles = glob.All()
	}
	if p.Transformation == nil {
		p.Transformation = transform.NewSequence(p.Options.General.Logger)
	}
	con := p.Options.General.Console
	if con == nil {
		con = console.NewCapturing()
	}
	log := p.Options.General.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Workflow{
		name:             p.Name,
		description:      p.Description,
		mode:             p.Mode,
		origin:           p.Origin,
		destination:      p.Destination,
		auth:             p.Authoring,
		transformation:   p.Transformation,
		originFiles:      p.OriginFiles,
		destinationFiles: p.DestinationFiles,
		reversibleCheck:  p.ReversibleCheck,
		configFile:       p.ConfigFile,
		opts:             p.Options,
		log:              log,
		con:              con,
	}, nil
}

var _ migration.Migration = (*Workflow)(nil)

// Name implements migration.Migration
func (w *Workflow) Name() string { return w.name }

// Description implements migration.Migration
func (w *Workflow) Description() string { return w.description }

// ModeName implements migration.Migration
func (w *Workflow) ModeName() string { return w.mode.String() }

// ConfigFile implements migration.Migration
func (w *Workflow) ConfigFile() config.File { return w.configFile }

// OriginDescription implements migration.Migration
func (w *Workflow) OriginDescription() map[string][]string {
	return w.origin.Describe(w.originFiles)
}

// DestinationDescription implements migration.Migration
func (w *Workflow) DestinationDescription() map[string][]string {
	return w.destination.Describe(w.destinationFiles)
}

// CheckReversible implements migration.Migration
func (w *Workflow) CheckReversible() error {
	if !w.reversibleCheck {
		return nil
	}
	return w.transformation.CheckReversible()
}

// Run implements migration.Migration. Each call is one migration run;
// every iteration inside it is an independent transaction over a fresh
// workdir.
func (w *Workflow) Run(ctx context.Context, workdirRoot string, sourceRefs []string) error {
	if len(sourceRefs) > 1 {
		return core.NewError(core.ConfigInvalid).
			WithMigration(w.name).
			WithCause(fmt.Errorf("workflow migrations accept at most one source ref, got %d", len(sourceRefs))).
			Build()
	}
	ref := ""
	if len(sourceRefs) == 1 {
		ref = sourceRefs[0]
	}

	mode := w.mode
	if override := w.opts.Workflow.ModeOverride; override != "" {
		parsed, err := ParseMode(override)
		if err != nil {
			return core.NewError(core.ConfigInvalid).
				WithMigration(w.name).
				WithOperation("overriding workflow mode").
				WithCause(err).
				Build()
		}
		if parsed != w.mode {
			w.con.Info("Migration '%s': mode overridden from %s to %s", w.name, w.mode, parsed)
		}
		mode = parsed
	}

	wm, err := workdir.NewManager(workdirRoot, w.opts.General.ReuseWorkdir, w.log)
	if err != nil {
		return core.NewError(core.RepositoryError).
			WithMigration(w.name).
			WithOperation("allocating scratch space").
			WithCause(err).
			Build()
	}

	resolved, err := w.origin.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	w.con.Progress("Migration '%s': resolved origin ref %q to %s", w.name, ref, resolved.AsString())

	reader, err := w.origin.NewReader(w.originFiles, w.auth)
	if err != nil {
		return err
	}

	writer, err := w.destination.NewWriter(vcs.WriterContext{
		OriginalRevision: resolved,
		DryRun:           w.effectiveDryRun(mode),
		ContextReference: resolved.ContextReference(),
	})
	if err != nil {
		return err
	}

	run := &runContext{
		workflow: w,
		workdirs: wm,
		reader:   reader,
		writer:   writer,
		resolved: resolved,
	}

	switch mode {
	case Squash:
		return run.squash(ctx)
	case Iterative:
		return run.iterative(ctx)
	case ChangeRequest:
		return run.changeRequest(ctx)
	default:
		return core.Internalf("unhandled workflow mode %v", mode)
	}
}

// effectiveDryRun computes the dry-run flag handed to writers.
// CHANGE_REQUEST previews are dry runs unless the caller forces a real
// write.
func (w *Workflow) effectiveDryRun(mode Mode) bool {
	if w.opts.General.DryRun {
		return true
	}
	if mode == ChangeRequest && !w.opts.General.Force {
		return true
	}
	return false
}
