package workflow_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybara/copybara/internal/builtins"
	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/config"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/loader"
	"github.com/copybara/copybara/internal/migration"
	"github.com/copybara/copybara/internal/options"
	"github.com/copybara/copybara/internal/testhelpers"
	"github.com/copybara/copybara/internal/vcs"
)

type fixture struct {
	origin      *testhelpers.DummyOrigin
	destination *testhelpers.RecordingDestination
	console     *console.Capturing
	opts        options.Bundle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		origin:      testhelpers.NewDummyOrigin(),
		destination: testhelpers.NewRecordingDestination(),
		console:     console.NewCapturing(),
	}
	f.opts = options.NewBundle(nil, f.console)
	return f
}

// loadMigration evaluates configText and returns the named migration
func (f *fixture) loadMigration(t *testing.T, configText, name string) migration.Migration {
	t.Helper()
	root, err := config.NewMapFile(map[string]string{"copy.bara.sky": configText}, "copy.bara.sky")
	require.NoError(t, err)
	modules := append(builtins.Modules(), testhelpers.NewTestingModule(f.origin, f.destination))
	l := loader.New(f.opts, builtins.Globals(), modules...)
	cfg, err := l.Load(root)
	require.NoError(t, err)
	m, err := cfg.Migration(name)
	require.NoError(t, err)
	return m
}

func workflowConfig(mode string, extra string) string {
	return `
core.workflow(
    name = "test",
    origin = testing.origin(),
    destination = testing.destination(),
    authoring = authoring.pass_thru(default = "Copy Bara <copybara@example.com>"),
    mode = "` + mode + `",
` + extra + `)
`
}

func addThreeChanges(origin *testhelpers.DummyOrigin) {
	origin.AddChange("first change\n", map[string]string{"file.txt": "one"})
	origin.AddChange("second change\n", map[string]string{"file.txt": "two"})
	origin.AddChange("test summary\n", map[string]string{"file.txt": "three", "extra.txt": "x"})
}

func TestTrivialSquash(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	m := f.loadMigration(t, workflowConfig("SQUASH", ""), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	last := f.destination.LastWrite()
	require.NotNil(t, last)
	assert.Equal(t, "test summary", strings.SplitN(last.Summary, "\n", 2)[0])
	assert.Equal(t, f.origin.Head().ID, last.RevID)
	assert.Equal(t, "three", last.Files["file.txt"])

	// The recorded baseline now equals the head revision id
	writer, err := f.destination.NewWriter(vcs.WriterContext{})
	require.NoError(t, err)
	status, err := writer.DestinationStatus(context.Background(), nil, testhelpers.DummyRevIDLabel)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, f.origin.Head().ID, status.Baseline)
}

func TestSquashSummaryListsFoldedChanges(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	f.destination.SetBaseline(testhelpers.DummyRevIDLabel, "0")
	m := f.loadMigration(t, workflowConfig("SQUASH", ""), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	last := f.destination.LastWrite()
	require.NotNil(t, last)
	assert.Contains(t, last.Summary, "Squashed changes:")
	assert.Contains(t, last.Summary, "second change")
}

func TestIterativeAdvancement(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	m := f.loadMigration(t, workflowConfig("ITERATIVE", ""), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	require.Len(t, f.destination.Processed, 3)
	var revIDs []string
	for _, rec := range f.destination.Processed {
		revIDs = append(revIDs, rec.RevID)
	}
	assert.Equal(t, []string{"0", "1", "2"}, revIDs, "writes follow origin order, oldest first")

	// Re-running against an unchanged origin yields zero new effects
	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))
	assert.Len(t, f.destination.Processed, 3)
}

func TestModeOverrideRunsIterative(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	f.opts.Workflow.ModeOverride = "ITERATIVE"
	m := f.loadMigration(t, workflowConfig("SQUASH", ""), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	require.Len(t, f.destination.Processed, 3, "the override replaces the declared SQUASH mode")
	assert.Equal(t, "SQUASH", m.ModeName(), "the declared mode is untouched")
}

func TestInvalidModeOverrideFails(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	f.opts.Workflow.ModeOverride = "squash"
	m := f.loadMigration(t, workflowConfig("SQUASH", ""), "test")

	err := m.Run(context.Background(), t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ConfigInvalid))
}

func TestIterativeParallelKeepsWriteOrder(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	f.opts.Workflow.Parallelism = 3
	m := f.loadMigration(t, workflowConfig("ITERATIVE", ""), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	require.Len(t, f.destination.Processed, 3)
	var revIDs []string
	for _, rec := range f.destination.Processed {
		revIDs = append(revIDs, rec.RevID)
	}
	assert.Equal(t, []string{"0", "1", "2"}, revIDs)
}

func TestBaselineSkipping(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	f.destination.SetBaseline(testhelpers.DummyRevIDLabel, f.origin.Head().ID)
	m := f.loadMigration(t, workflowConfig("SQUASH", ""), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	assert.Empty(t, f.destination.Processed, "the destination writer must not be invoked")
	found := false
	for _, msg := range f.console.ByLevel("info") {
		if strings.Contains(msg, "NO_CHANGES") {
			found = true
		}
	}
	assert.True(t, found, "console reports the NO_CHANGES reason")
}

func TestAncestorBaselineSkips(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	f.destination.SetBaseline(testhelpers.DummyRevIDLabel, "1")
	m := f.loadMigration(t, workflowConfig("SQUASH", ""), "test")

	// Migrate an older revision than the baseline
	require.NoError(t, m.Run(context.Background(), t.TempDir(), []string{"0"}))
	assert.Empty(t, f.destination.Processed)
	found := false
	for _, msg := range f.console.ByLevel("info") {
		if strings.Contains(msg, "TO_IS_ANCESTOR") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTransformationsRunOverCheckout(t *testing.T) {
	f := newFixture(t)
	f.origin.AddChange("change\n", map[string]string{"file.txt": "hello world"})
	m := f.loadMigration(t, workflowConfig("SQUASH", `    transformations = [core.replace(before = "world", after = "copybara")],
`), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	last := f.destination.LastWrite()
	require.NotNil(t, last)
	assert.Equal(t, "hello copybara", last.Files["file.txt"])
}

func TestOriginFilesGlobRestrictsCheckout(t *testing.T) {
	f := newFixture(t)
	f.origin.AddChange("change\n", map[string]string{
		"src/keep.go":  "package keep",
		"docs/drop.md": "dropped",
	})
	m := f.loadMigration(t, workflowConfig("SQUASH", `    origin_files = glob(include = ["src/**"]),
`), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	last := f.destination.LastWrite()
	require.NotNil(t, last)
	assert.Contains(t, last.Files, "src/keep.go")
	assert.NotContains(t, last.Files, "docs/drop.md")
}

func TestAuthoringPolicyApplied(t *testing.T) {
	f := newFixture(t)
	f.origin.SetAuthor(change.Author{Name: "Outsider", Email: "outsider@example.com"})
	f.origin.AddChange("change\n", map[string]string{"file.txt": "x"})

	m := f.loadMigration(t, `
core.workflow(
    name = "test",
    origin = testing.origin(),
    destination = testing.destination(),
    authoring = authoring.allowed(
        default = "Copy Bara <copybara@example.com>",
        allowlist = ["insider@example.com"],
    ),
)
`, "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))
	last := f.destination.LastWrite()
	require.NotNil(t, last)
	assert.Equal(t, "copybara@example.com", last.Author.Email,
		"non-allowlisted origin author is replaced by the default")
}

func TestEmptyChangeFailsByDefault(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	// Destination already holds the head; force a re-plan from an older
	// baseline so the runner attempts the duplicate write.
	f.destination.SetBaseline(testhelpers.DummyRevIDLabel, "2")
	f.opts.Workflow.LastRevision = "1"
	m := f.loadMigration(t, workflowConfig("ITERATIVE", ""), "test")

	err := m.Run(context.Background(), t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.EmptyChange))
}

func TestEmptyChangeIgnoredWithIgnoreNoop(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	f.destination.SetBaseline(testhelpers.DummyRevIDLabel, "2")
	f.opts.Workflow.LastRevision = "1"
	f.opts.Workflow.IgnoreNoop = true
	m := f.loadMigration(t, workflowConfig("ITERATIVE", ""), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))
	assert.Empty(t, f.destination.Processed)
}

func TestChangeRequestIsDryRunByDefault(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	f.opts.Workflow.ChangeRequestParent = "0"
	m := f.loadMigration(t, workflowConfig("CHANGE_REQUEST", `    reversible_check = False,
`), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))

	require.Len(t, f.destination.Processed, 1)
	rec := f.destination.Processed[0]
	assert.True(t, rec.DryRun)
	assert.Equal(t, "0", rec.Baseline)
	assert.Equal(t, "2", rec.RevID)
}

func TestChangeRequestRequiresBaseline(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	m := f.loadMigration(t, workflowConfig("CHANGE_REQUEST", `    reversible_check = False,
`), "test")

	err := m.Run(context.Background(), t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.UnresolvableRevision))
	assert.Contains(t, err.Error(), "--change-request-parent")
}

func TestReversibleCheckDetectsLossyReplace(t *testing.T) {
	f := newFixture(t)
	// "ab" -> replace a->b -> "bb"; reversing b->a gives "aa", not "ab"
	f.origin.AddChange("change\n", map[string]string{"file.txt": "ab"})
	m := f.loadMigration(t, workflowConfig("SQUASH", `    transformations = [core.replace(before = "a", after = "b")],
    reversible_check = True,
`), "test")

	err := m.Run(context.Background(), t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.NotReversible))
	assert.Empty(t, f.destination.Processed, "nothing is written when the check fails")
}

func TestReversibleCheckPassesForCleanReplace(t *testing.T) {
	f := newFixture(t)
	f.origin.AddChange("change\n", map[string]string{"file.txt": "hello world"})
	m := f.loadMigration(t, workflowConfig("SQUASH", `    transformations = [core.replace(before = "world", after = "copybara")],
    reversible_check = True,
`), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))
	require.NotNil(t, f.destination.LastWrite())
}

func TestUnresolvableSourceRef(t *testing.T) {
	f := newFixture(t)
	addThreeChanges(f.origin)
	m := f.loadMigration(t, workflowConfig("SQUASH", ""), "test")

	err := m.Run(context.Background(), t.TempDir(), []string{"no-such-ref"})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.UnresolvableRevision))
}

func TestMessageTemplatingFromLabels(t *testing.T) {
	f := newFixture(t)
	f.origin.AddChange("original\n", map[string]string{"file.txt": "x"})
	m := f.loadMigration(t, workflowConfig("SQUASH", `    transformations = [metadata.replace_message("Import of ${DummyOrigin-RevId}\n")],
`), "test")

	require.NoError(t, m.Run(context.Background(), t.TempDir(), nil))
	last := f.destination.LastWrite()
	require.NotNil(t, last)
	assert.Equal(t, "Import of 0", strings.SplitN(last.Summary, "\n", 2)[0])
}
