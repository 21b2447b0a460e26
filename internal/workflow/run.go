package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/transform"
	"github.com/copybara/copybara/internal/vcs"
	"github.com/copybara/copybara/internal/workdir"
)

// runContext is the per-run state of one Workflow.Run invocation
type runContext struct {
	workflow *Workflow
	workdirs *workdir.Manager
	reader   vcs.Reader
	writer   vcs.Writer
	resolved change.Revision
}

// plan is the computed set of origin changes for this run
type plan struct {
	current  []change.Change
	migrated []change.Change
	baseline string
	reason   change.EmptyReason
}

// baseline returns the origin revision id the destination recorded, with
// the --last-rev override applied. "" means no baseline.
func (r *runContext) baseline(ctx context.Context) (string, error) {
	w := r.workflow
	if w.opts.Workflow.LastRevision != "" {
		return w.opts.Workflow.LastRevision, nil
	}
	status, err := r.writer.DestinationStatus(ctx, w.destinationFiles, w.origin.LabelName())
	if err != nil {
		return "", err
	}
	if status == nil {
		return "", nil
	}
	if len(status.Pending) > 0 {
		w.con.Warn("Migration '%s': %d pending change(s) recorded in the destination: %s",
			w.name, len(status.Pending), strings.Join(status.Pending, ", "))
	}
	return status.Baseline, nil
}

// computePlan resolves the baseline and queries the origin for the new
// change range. No workdir is allocated here. wholeHistory controls the
// no-baseline case: ITERATIVE imports every reachable change, SQUASH
// only the resolved revision.
func (r *runContext) computePlan(ctx context.Context, wholeHistory bool) (*plan, error) {
	w := r.workflow

	baseline, err := r.baseline(ctx)
	if err != nil {
		return nil, err
	}

	if baseline == "" {
		if wholeHistory {
			resp, err := r.reader.Changes(ctx, nil, r.resolved)
			if err != nil {
				return nil, err
			}
			if resp.IsEmpty() {
				return &plan{reason: resp.Reason}, nil
			}
			return &plan{current: resp.Changes}, nil
		}
		// First run: migrate the single resolved revision
		c, err := r.reader.Change(ctx, r.resolved)
		if err != nil {
			return nil, err
		}
		return &plan{current: []change.Change{*c}}, nil
	}

	baselineRev, err := w.origin.Resolve(ctx, baseline)
	if err != nil {
		return nil, err
	}
	resp, err := r.reader.Changes(ctx, baselineRev, r.resolved)
	if err != nil {
		return nil, err
	}
	if resp.IsEmpty() {
		if resp.Reason == change.UnrelatedRevisions && w.opts.General.Force {
			// --force: migrate the resolved revision despite the unrelated baseline
			c, err := r.reader.Change(ctx, r.resolved)
			if err != nil {
				return nil, err
			}
			return &plan{current: []change.Change{*c}, baseline: baseline}, nil
		}
		return &plan{baseline: baseline, reason: resp.Reason}, nil
	}

	p := &plan{current: resp.Changes, baseline: baseline}
	p.migrated = r.migratedWindow(ctx, baselineRev)
	return p, nil
}

// migratedWindow returns the bounded suffix of previously migrated
// changes, for transformation context only. Failures here never fail the
// run.
func (r *runContext) migratedWindow(ctx context.Context, baselineRev change.Revision) []change.Change {
	w := r.workflow
	limit := w.opts.Workflow.MigratedHistory
	if limit <= 0 {
		return nil
	}
	var migrated []change.Change
	err := r.reader.VisitChanges(ctx, baselineRev, func(c change.Change) (change.VisitResult, error) {
		migrated = append(migrated, c)
		if len(migrated) >= limit {
			return change.VisitTerminate, nil
		}
		return change.VisitContinue, nil
	})
	if err != nil {
		w.log.Warn("Could not compute migrated history", "migration", w.name, "error", err)
		return nil
	}
	// Oldest first, matching changes.current
	for i, j := 0, len(migrated)-1; i < j; i, j = i+1, j-1 {
		migrated[i], migrated[j] = migrated[j], migrated[i]
	}
	return migrated
}

// squash implements SQUASH: one destination change for the whole range
func (r *runContext) squash(ctx context.Context) error {
	w := r.workflow

	p, err := r.computePlan(ctx, false)
	if err != nil {
		return err
	}
	if len(p.current) == 0 {
		return r.reportNoop(p.reason)
	}

	wd, err := r.workdirs.NewWorkdir("squash")
	if err != nil {
		return core.NewError(core.RepositoryError).WithMigration(w.name).WithCause(err).Build()
	}
	defer r.workdirs.Release(wd)

	if err := r.reader.Checkout(ctx, r.resolved, wd); err != nil {
		return err
	}

	head := p.current[len(p.current)-1]
	work := transform.NewWork(wd, w.name, squashMessage(p.current), w.auth.Resolve(head.Author),
		r.resolved, change.Changes{Current: p.current, Migrated: p.migrated}, w.con)
	r.attachDestinationReader(ctx, work, p.baseline, wd)

	if err := r.transformChecked(ctx, work); err != nil {
		return err
	}

	_, err = r.write(ctx, work, r.resolved, p.current, "")
	return err
}

// iterative implements ITERATIVE: one destination change per origin
// change, oldest first. Destination writes always happen in origin
// order; with parallelism enabled only checkout+transform overlap.
func (r *runContext) iterative(ctx context.Context) error {
	w := r.workflow

	p, err := r.computePlan(ctx, true)
	if err != nil {
		return err
	}
	if len(p.current) == 0 {
		return r.reportNoop(p.reason)
	}

	works := make([]*transform.Work, len(p.current))
	dirs := make([]string, len(p.current))
	defer func() {
		for _, d := range dirs {
			r.workdirs.Release(d)
		}
	}()

	prepare := func(ctx context.Context, i int) error {
		c := p.current[i]
		wd, err := r.workdirs.NewWorkdir(fmt.Sprintf("iterative-%d", i))
		if err != nil {
			return core.NewError(core.RepositoryError).WithMigration(w.name).WithCause(err).Build()
		}
		dirs[i] = wd
		if err := r.reader.Checkout(ctx, c.Revision, wd); err != nil {
			return err
		}
		migrated := append(append([]change.Change(nil), p.migrated...), p.current[:i]...)
		work := transform.NewWork(wd, w.name, c.Message, w.auth.Resolve(c.Author),
			c.Revision, change.Changes{Current: []change.Change{c}, Migrated: migrated}, w.con)
		r.attachDestinationReader(ctx, work, p.baseline, wd)
		if err := r.transformChecked(ctx, work); err != nil {
			return err
		}
		works[i] = work
		return nil
	}

	if par := w.opts.Workflow.Parallelism; par > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(par)
		for i := range p.current {
			i := i
			g.Go(func() error { return prepare(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	succeeded := 0
	for i, c := range p.current {
		if err := ctx.Err(); err != nil {
			return core.NewError(core.RepositoryError).
				WithMigration(w.name).
				WithOperation("iterating changes").
				WithCause(err).
				Build()
		}
		if works[i] == nil {
			if err := prepare(ctx, i); err != nil {
				return r.iterationFailed(err, succeeded, len(p.current))
			}
		}
		w.con.Progress("Migration '%s': change %d/%d %s", w.name, i+1, len(p.current), c.Revision.AsString())
		wrote, err := r.write(ctx, works[i], c.Revision, []change.Change{c}, "")
		if err != nil {
			return r.iterationFailed(err, succeeded, len(p.current))
		}
		if wrote {
			succeeded++
		}
		r.workdirs.Release(dirs[i])
		dirs[i] = ""
	}

	w.con.Info("Migration '%s': migrated %d change(s)", w.name, succeeded)
	return nil
}

// iterationFailed annotates a mid-run failure with what already succeeded
func (r *runContext) iterationFailed(err error, succeeded, total int) error {
	if succeeded > 0 {
		r.workflow.con.Error("Migration '%s' stopped: %d/%d changes migrated before the failure",
			r.workflow.name, succeeded, total)
	}
	var migErr *core.MigrationError
	if ok := asMigrationError(err, &migErr); ok {
		return migErr.WithContext("migrated_changes", succeeded)
	}
	return err
}

// changeRequest implements CHANGE_REQUEST: a single-change preview
// against a caller-supplied baseline.
func (r *runContext) changeRequest(ctx context.Context) error {
	w := r.workflow

	baseline := w.opts.Workflow.ChangeRequestParent
	if baseline == "" {
		baseline = r.resolved.AssociatedLabels().First("Change-Request-Parent")
	}
	if baseline == "" {
		return core.NewError(core.UnresolvableRevision).
			WithMigration(w.name).
			WithCause(fmt.Errorf("CHANGE_REQUEST requires a baseline; pass --change-request-parent")).
			Build()
	}

	c, err := r.reader.Change(ctx, r.resolved)
	if err != nil {
		return err
	}

	wd, err := r.workdirs.NewWorkdir("change-request")
	if err != nil {
		return core.NewError(core.RepositoryError).WithMigration(w.name).WithCause(err).Build()
	}
	defer r.workdirs.Release(wd)

	if err := r.reader.Checkout(ctx, r.resolved, wd); err != nil {
		return err
	}

	work := transform.NewWork(wd, w.name, c.Message, w.auth.Resolve(c.Author),
		r.resolved, change.Changes{Current: []change.Change{*c}}, w.con)
	r.attachDestinationReader(ctx, work, baseline, wd)

	if err := r.transformChecked(ctx, work); err != nil {
		return err
	}

	_, err = r.write(ctx, work, r.resolved, []change.Change{*c}, baseline)
	return err
}

// attachDestinationReader wires the lazy destination reader supplier
func (r *runContext) attachDestinationReader(ctx context.Context, work *transform.Work, baseline, wd string) {
	work.DestinationReader = func() (transform.DestinationReader, error) {
		return r.writer.DestinationReader(ctx, baseline, wd)
	}
}

// squashMessage builds the SQUASH summary: the head change's message
// with the ordered list of folded source changes appended.
func squashMessage(changes []change.Change) string {
	head := changes[len(changes)-1]
	if len(changes) == 1 {
		return head.Message
	}
	var sb strings.Builder
	sb.WriteString(head.Message)
	if !strings.HasSuffix(head.Message, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\nSquashed changes:\n")
	for _, c := range changes {
		fmt.Fprintf(&sb, "  - %s %s\n", c.Revision.AsString(), c.FirstLine())
	}
	return sb.String()
}
