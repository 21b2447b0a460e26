package glob_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybara/copybara/internal/glob"
)

func TestMatchesIncludeExclude(t *testing.T) {
	g, err := glob.New([]string{"src/**/*.go"}, []string{"src/**/*_test.go"})
	require.NoError(t, err)

	assert.True(t, g.Matches("src/main.go"))
	assert.True(t, g.Matches("src/deep/nested/file.go"))
	assert.False(t, g.Matches("src/main_test.go"))
	assert.False(t, g.Matches("docs/readme.md"))
}

func TestEmptyIncludeMatchesNothing(t *testing.T) {
	g, err := glob.New(nil, nil)
	require.NoError(t, err)
	assert.False(t, g.Matches("anything"))
}

func TestAllMatchesEverything(t *testing.T) {
	g := glob.All()
	assert.True(t, g.Matches("a"))
	assert.True(t, g.Matches("deep/nested/path.txt"))
}

func TestExcludeWins(t *testing.T) {
	g, err := glob.New([]string{"**"}, []string{"secret/**"})
	require.NoError(t, err)
	assert.True(t, g.Matches("public/file"))
	assert.False(t, g.Matches("secret/key"))
}

func TestInvalidPatterns(t *testing.T) {
	_, err := glob.New([]string{""}, nil)
	assert.Error(t, err)

	_, err = glob.New([]string{"/absolute"}, nil)
	assert.Error(t, err)

	_, err = glob.New([]string{"bad[pattern"}, nil)
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	g, err := glob.New([]string{"**/*.go"}, []string{"vendor/**"})
	require.NoError(t, err)
	assert.Equal(t, `glob(include = ["**/*.go"], exclude = ["vendor/**"])`, g.String())
}
