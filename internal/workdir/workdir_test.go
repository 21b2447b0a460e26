package workdir_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybara/copybara/internal/workdir"
)

func TestNewWorkdirIsCleanAndAbsolute(t *testing.T) {
	m, err := workdir.NewManager(t.TempDir(), false, hclog.NewNullLogger())
	require.NoError(t, err)

	dir, err := m.NewWorkdir("squash")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDistinctWorkdirsPerIteration(t *testing.T) {
	m, err := workdir.NewManager(t.TempDir(), false, hclog.NewNullLogger())
	require.NoError(t, err)

	first, err := m.NewWorkdir("iterative")
	require.NoError(t, err)
	second, err := m.NewWorkdir("iterative")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestReuseCleansBetweenIterations(t *testing.T) {
	m, err := workdir.NewManager(t.TempDir(), true, hclog.NewNullLogger())
	require.NoError(t, err)

	first, err := m.NewWorkdir("iterative")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first, "stale.txt"), []byte("x"), 0o644))

	second, err := m.NewWorkdir("iterative")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	_, err = os.Stat(filepath.Join(second, "stale.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseRemovesDir(t *testing.T) {
	m, err := workdir.NewManager(t.TempDir(), false, hclog.NewNullLogger())
	require.NoError(t, err)

	dir, err := m.NewWorkdir("squash")
	require.NoError(t, err)
	m.Release(dir)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestTempRootWhenUnset(t *testing.T) {
	m, err := workdir.NewManager("", false, hclog.NewNullLogger())
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Close()) }()
	assert.True(t, filepath.IsAbs(m.Root()))
}
