package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/fileutil"
	"github.com/copybara/copybara/internal/transform"
)

// transformChecked runs the pipeline, and with reversible_check enabled
// verifies that applying the reverse pipeline to the transformed tree
// reproduces the original checkout bytewise.
func (r *runContext) transformChecked(ctx context.Context, work *transform.Work) error {
	w := r.workflow
	if !w.reversibleCheck {
		return w.transformation.Transform(ctx, work)
	}

	snapshot := work.CheckoutDir + ".orig"
	if err := fileutil.CopyTree(work.CheckoutDir, snapshot, nil); err != nil {
		return core.NewError(core.RepositoryError).
			WithMigration(w.name).
			WithOperation("snapshotting checkout for reversible check").
			WithCause(err).
			Build()
	}
	defer os.RemoveAll(snapshot)

	if err := w.transformation.Transform(ctx, work); err != nil {
		return err
	}

	reverse, err := w.transformation.Reverse()
	if err != nil {
		return err
	}

	replay := work.CheckoutDir + ".reverse"
	if err := fileutil.CopyTree(work.CheckoutDir, replay, nil); err != nil {
		return core.NewError(core.RepositoryError).
			WithMigration(w.name).
			WithOperation("preparing reversible check replay").
			WithCause(err).
			Build()
	}
	defer os.RemoveAll(replay)

	replayWork := transform.NewWork(replay, w.name, work.Metadata.Message, work.Metadata.Author,
		work.CurrentRevision, work.Changes, w.con)
	if err := reverse.Transform(ctx, replayWork); err != nil {
		return err
	}

	equal, diffs, err := fileutil.TreesEqual(snapshot, replay, nil)
	if err != nil {
		return core.NewError(core.RepositoryError).
			WithMigration(w.name).
			WithOperation("comparing reversible check trees").
			WithCause(err).
			Build()
	}
	if equal {
		return nil
	}

	w.con.Error("Migration '%s': reversible check failed for %d file(s)", w.name, len(diffs))
	report := renderDiffReport(snapshot, replay, diffs)
	return core.NewError(core.NotReversible).
		WithMigration(w.name).
		WithOperation("reversible check").
		WithCause(fmt.Errorf("transformations do not reverse cleanly:\n%s", report)).
		Build()
}

// renderDiffReport shows the first differing files as inline character
// diffs (diffmatchpatch pretty text)
func renderDiffReport(original, reversed string, diffs []string) string {
	const maxFiles = 5
	dmp := diffmatchpatch.New()
	var sb strings.Builder
	for i, rel := range diffs {
		if i >= maxFiles {
			fmt.Fprintf(&sb, "... and %d more files\n", len(diffs)-maxFiles)
			break
		}
		before, _ := os.ReadFile(filepath.Join(original, filepath.FromSlash(rel)))
		after, _ := os.ReadFile(filepath.Join(reversed, filepath.FromSlash(rel)))
		fmt.Fprintf(&sb, "--- %s\n", rel)
		patch := dmp.DiffMain(string(before), string(after), false)
		sb.WriteString(dmp.DiffPrettyText(dmp.DiffCleanupSemantic(patch)))
		sb.WriteString("\n")
	}
	return sb.String()
}
