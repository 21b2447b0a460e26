package change_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybara/copybara/internal/change"
)

func TestLabelsInsertionOrder(t *testing.T) {
	labels := change.NewLabels()
	labels.Add("Reviewed-By", "a@example.com")
	labels.Add("Bug", "123")
	labels.Add("Reviewed-By", "b@example.com")

	assert.Equal(t, []string{"Reviewed-By", "Bug"}, labels.Names())
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, labels.Get("Reviewed-By"))
	assert.Equal(t, "a@example.com", labels.First("Reviewed-By"))
	assert.Equal(t, "b@example.com", labels.Last("Reviewed-By"))
}

func TestLabelsSetAndRemove(t *testing.T) {
	labels := change.NewLabels()
	labels.Add("Bug", "123")
	labels.Add("Bug", "456")
	labels.Set("Bug", "789")
	assert.Equal(t, []string{"789"}, labels.Get("Bug"))

	labels.Remove("Bug")
	assert.False(t, labels.Has("Bug"))
	assert.Empty(t, labels.Names())
}

func TestLabelsCopyIsIndependent(t *testing.T) {
	labels := change.NewLabels()
	labels.Add("Bug", "123")
	copied := labels.Copy()
	copied.Add("Bug", "456")
	assert.Equal(t, []string{"123"}, labels.Get("Bug"))
	assert.Equal(t, []string{"123", "456"}, copied.Get("Bug"))
}

func TestParseMessageLabels(t *testing.T) {
	message := "Fix the frobnicator\n\nLonger description here.\n\nBug: 123\nReviewed-By: a@example.com\n"
	labels := change.ParseMessageLabels(message)
	assert.Equal(t, "123", labels.First("Bug"))
	assert.Equal(t, "a@example.com", labels.First("Reviewed-By"))
}

func TestParseMessageLabelsIgnoresBody(t *testing.T) {
	message := "Summary: not a label\n\nActual-Label: yes\n"
	labels := change.ParseMessageLabels(message)
	assert.False(t, labels.Has("Summary"))
	assert.Equal(t, "yes", labels.First("Actual-Label"))
}

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		input string
		want  change.Author
		ok    bool
	}{
		{"Jane Doe <jane@example.com>", change.Author{Name: "Jane Doe", Email: "jane@example.com"}, true},
		{"NoEmail", change.Author{}, false},
		{"<only@example.com>", change.Author{}, false},
		{"Name <>", change.Author{}, false},
	}
	for _, tt := range tests {
		got, ok := change.ParseAuthor(tt.input)
		require.Equal(t, tt.ok, ok, "input %q", tt.input)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestChangeFirstLine(t *testing.T) {
	c := change.Change{Message: "summary line\n\nbody"}
	assert.Equal(t, "summary line", c.FirstLine())

	single := change.Change{Message: "just one line"}
	assert.Equal(t, "just one line", single.FirstLine())
}

func TestValidLabelName(t *testing.T) {
	assert.True(t, change.ValidLabelName("Reviewed-By"))
	assert.True(t, change.ValidLabelName("BUG_ID"))
	assert.False(t, change.ValidLabelName("1bad"))
	assert.False(t, change.ValidLabelName("has space"))
}
