package workflow

import (
	"context"
	"errors"

	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/transform"
	"github.com/copybara/copybara/internal/vcs"
)

// write builds the destination-ready result from a transformed Work and
// commits it, honoring the empty-change policy and retrying transient
// destination failures. Returns whether a change was written.
func (r *runContext) write(ctx context.Context, work *transform.Work,
	rev change.Revision, origin []change.Change, baseline string) (bool, error) {
	w := r.workflow

	timestamp := work.Changes.Current[len(work.Changes.Current)-1].Timestamp
	result := &vcs.TransformResult{
		Workdir:         work.CheckoutDir,
		CurrentRevision: rev,
		Author:          work.Metadata.Author,
		Summary:         work.FullMessage(),
		Timestamp:       timestamp,
		Baseline:        baseline,
		Changes:         origin,
		RevIDLabel:      w.origin.LabelName(),
		SetRevID:        true,
	}

	var effects []vcs.DestinationEffect
	err := core.Retry(ctx, &core.RetryConfig{
		MaxRetries: w.opts.General.MaxRetries,
		Delay:      core.DefaultRetryConfig().Delay,
		Backoff:    core.DefaultRetryConfig().Backoff,
		MaxDelay:   core.DefaultRetryConfig().MaxDelay,
	}, "writing to destination", func() error {
		var writeErr error
		effects, writeErr = r.writer.Write(ctx, result, w.destinationFiles, w.con)
		return writeErr
	})

	if err != nil {
		if core.IsKind(err, core.EmptyChange) {
			if w.opts.Workflow.IgnoreNoop {
				w.con.Warn("Migration '%s': no difference at %s, skipping", w.name, rev.AsString())
				r.reportEffects([]vcs.DestinationEffect{vcs.NewNoopEffect(err.Error(), origin)})
				return false, nil
			}
			return false, err
		}
		return false, err
	}

	r.reportEffects(effects)
	return writtenEffect(effects), effectErrors(effects)
}

// reportNoop emits the NO_OP effect for an empty plan. No workdir was
// allocated and the destination writer is never invoked.
func (r *runContext) reportNoop(reason change.EmptyReason) error {
	w := r.workflow
	summary := "no new changes to migrate (" + reason.String() + ")"
	if reason == change.UnrelatedRevisions && !w.opts.General.Force {
		return core.NewError(core.UnresolvableRevision).
			WithMigration(w.name).
			WithCause(errors.New("origin revision is unrelated to the recorded baseline; use --force to migrate anyway")).
			Build()
	}
	w.con.Info("Migration '%s': %s", w.name, summary)
	r.reportEffects([]vcs.DestinationEffect{vcs.NewNoopEffect(summary, nil)})
	return nil
}

// reportEffects renders effects on the console in generation order
func (r *runContext) reportEffects(effects []vcs.DestinationEffect) {
	w := r.workflow
	for _, e := range effects {
		switch e.Type {
		case vcs.Error, vcs.TemporaryError:
			w.con.Error("%s: %s", e.Type, e.Summary)
		case vcs.Noop:
			w.con.Info("%s: %s", e.Type, e.Summary)
		default:
			if e.Destination != nil && e.Destination.ID != "" {
				w.con.Info("%s: %s (%s %s)", e.Type, e.Summary, e.Destination.Type, e.Destination.ID)
			} else {
				w.con.Info("%s: %s", e.Type, e.Summary)
			}
		}
	}
}

// writtenEffect reports whether any effect created or updated a change
func writtenEffect(effects []vcs.DestinationEffect) bool {
	for _, e := range effects {
		if e.Type == vcs.Created || e.Type == vcs.Updated {
			return true
		}
	}
	return false
}

// effectErrors folds effect-level errors into a single error value
func effectErrors(effects []vcs.DestinationEffect) error {
	list := core.NewErrorList(0)
	for _, e := range effects {
		if e.Type != vcs.Error {
			continue
		}
		for _, msg := range e.Errors {
			list.Add(core.NewError(core.RepositoryError).
				WithOperation("writing to destination").
				WithCause(errors.New(msg)).
				Build())
		}
	}
	if list.HasErrors() {
		return list.First()
	}
	return nil
}

func asMigrationError(err error, target **core.MigrationError) bool {
	return errors.As(err, target)
}
