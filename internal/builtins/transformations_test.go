package builtins_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.starlark.net/starlark"

	"github.com/copybara/copybara/internal/builtins"
	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/transform"
)

// eval runs a single expression against the builtin modules and returns
// its value.
func eval(t *testing.T, expr string) starlark.Value {
	t.Helper()
	predeclared := starlark.StringDict{}
	for name, val := range builtins.Globals() {
		predeclared[name] = val
	}
	for _, m := range builtins.Modules() {
		predeclared[m.ModuleName()] = m.ModuleValue()
	}
	thread := &starlark.Thread{Name: "test"}
	val, err := starlark.Eval(thread, "test.bara.sky", expr, predeclared)
	require.NoError(t, err)
	return val
}

func newWork(t *testing.T, files map[string]string) *transform.Work {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return transform.NewWork(dir, "test", "message\n",
		change.Author{Name: "A", Email: "a@example.com"}, nil,
		change.EmptyChanges(), console.NewCapturing())
}

func readWorkFile(t *testing.T, work *transform.Work, rel string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(work.CheckoutDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(content)
}

func TestReplaceTransformsMatchingFiles(t *testing.T) {
	val := eval(t, `core.replace(before = "foo", after = "bar", paths = glob(include = ["**/*.txt"]))`)
	replace := val.(transform.Transformation)

	work := newWork(t, map[string]string{
		"a.txt": "foo here",
		"b.go":  "foo ignored",
	})
	require.NoError(t, replace.Transform(context.Background(), work))
	assert.Equal(t, "bar here", readWorkFile(t, work, "a.txt"))
	assert.Equal(t, "foo ignored", readWorkFile(t, work, "b.go"))
}

func TestReplaceRoundTrips(t *testing.T) {
	val := eval(t, `core.replace(before = "foo", after = "bar")`)
	replace := val.(transform.Reversible)

	work := newWork(t, map[string]string{"a.txt": "foo and foo"})
	require.NoError(t, replace.Transform(context.Background(), work))
	assert.Equal(t, "bar and bar", readWorkFile(t, work, "a.txt"))

	reverse, err := replace.Reverse()
	require.NoError(t, err)
	require.NoError(t, reverse.Transform(context.Background(), work))
	assert.Equal(t, "foo and foo", readWorkFile(t, work, "a.txt"))
}

func TestReplaceIdenticalArgumentsRejected(t *testing.T) {
	predeclared := starlark.StringDict{"core": builtins.CoreModule{}.ModuleValue()}
	thread := &starlark.Thread{Name: "test"}
	_, err := starlark.Eval(thread, "test.bara.sky", `core.replace(before = "x", after = "x")`, predeclared)
	require.Error(t, err)
}

func TestMoveRelocatesAndReverses(t *testing.T) {
	val := eval(t, `core.move(before = "src/old.txt", after = "dst/new.txt")`)
	move := val.(transform.Reversible)

	work := newWork(t, map[string]string{"src/old.txt": "content"})
	require.NoError(t, move.Transform(context.Background(), work))
	assert.Equal(t, "content", readWorkFile(t, work, "dst/new.txt"))

	reverse, err := move.Reverse()
	require.NoError(t, err)
	require.NoError(t, reverse.Transform(context.Background(), work))
	assert.Equal(t, "content", readWorkFile(t, work, "src/old.txt"))
}

func TestMoveWithOverwriteIsNotReversible(t *testing.T) {
	val := eval(t, `core.move(before = "a", after = "b", overwrite = True)`)
	move := val.(transform.Reversible)
	_, err := move.Reverse()
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.NotReversible))
}

func TestMoveMissingSourceFails(t *testing.T) {
	val := eval(t, `core.move(before = "missing.txt", after = "x.txt")`)
	move := val.(transform.Transformation)
	work := newWork(t, map[string]string{"other.txt": "x"})
	require.Error(t, move.Transform(context.Background(), work))
}

func TestVerifyMatch(t *testing.T) {
	val := eval(t, `core.verify_match(regex = "Copyright", paths = glob(include = ["**/*.go"]))`)
	verify := val.(transform.Transformation)

	good := newWork(t, map[string]string{"a.go": "// Copyright 2024"})
	require.NoError(t, verify.Transform(context.Background(), good))

	bad := newWork(t, map[string]string{"a.go": "no header"})
	err := verify.Transform(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.CheckRejected))
	assert.Contains(t, err.Error(), "a.go")
}

func TestVerifyNoMatch(t *testing.T) {
	val := eval(t, `core.verify_match(regex = "FIXME", verify_no_match = True)`)
	verify := val.(transform.Transformation)

	bad := newWork(t, map[string]string{"a.go": "FIXME remove this"})
	err := verify.Transform(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.CheckRejected))
}

func TestCoreTransformWithExplicitReversal(t *testing.T) {
	val := eval(t, `core.transform(
    transformations = [core.replace(before = "a", after = "b")],
    reversal = [core.replace(before = "b", after = "c")],
)`)
	explicit := val.(transform.Reversible)

	work := newWork(t, map[string]string{"f.txt": "a"})
	require.NoError(t, explicit.Transform(context.Background(), work))
	assert.Equal(t, "b", readWorkFile(t, work, "f.txt"))

	reverse, err := explicit.Reverse()
	require.NoError(t, err)
	require.NoError(t, reverse.Transform(context.Background(), work))
	assert.Equal(t, "c", readWorkFile(t, work, "f.txt"))
}

func TestCoreReverseReturnsReversedList(t *testing.T) {
	val := eval(t, `core.reverse(transformations = [
    core.replace(before = "a", after = "b"),
    core.move(before = "x", after = "y"),
])`)
	list := val.(*starlark.List)
	require.Equal(t, 2, list.Len())
	// Reversed order: the move inverse comes first
	assert.Contains(t, list.Index(0).String(), `core.move("y", "x")`)
	assert.Contains(t, list.Index(1).String(), `core.replace("b", "a")`)
}

func TestExpandLabels(t *testing.T) {
	labels := change.NewLabels()
	labels.Add("GitOrigin-RevId", "abc123")

	out, err := builtins.ExpandLabels("Import of ${GitOrigin-RevId}", labels, false)
	require.NoError(t, err)
	assert.Equal(t, "Import of abc123", out)

	_, err = builtins.ExpandLabels("${Missing}", labels, false)
	require.Error(t, err)

	kept, err := builtins.ExpandLabels("${Missing}", labels, true)
	require.NoError(t, err)
	assert.Equal(t, "${Missing}", kept)
}

func TestMetadataReplaceMessage(t *testing.T) {
	val := eval(t, `metadata.replace_message("rewritten\n")`)
	rm := val.(transform.Transformation)

	work := newWork(t, nil)
	require.NoError(t, rm.Transform(context.Background(), work))
	assert.Equal(t, "rewritten\n", work.Metadata.Message)

	_, isReversible := val.(transform.Reversible)
	assert.False(t, isReversible)
}

func TestMetadataAddHeader(t *testing.T) {
	val := eval(t, `metadata.add_header("HEADER")`)
	ah := val.(transform.Transformation)

	work := newWork(t, nil)
	require.NoError(t, ah.Transform(context.Background(), work))
	assert.Equal(t, "HEADER\n\nmessage\n", work.Metadata.Message)
}
