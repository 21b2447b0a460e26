package transform_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/transform"
)

// appendTransform records its tag on the work message; reversible
type appendTransform struct {
	tag string
}

func (t *appendTransform) Name() string { return "append(" + t.tag + ")" }

func (t *appendTransform) Transform(ctx context.Context, work *transform.Work) error {
	work.SetMessage(work.Metadata.Message + t.tag)
	return nil
}

func (t *appendTransform) Reverse() (transform.Transformation, error) {
	return &appendTransform{tag: "~" + t.tag}, nil
}

// opaqueTransform is not reversible
type opaqueTransform struct{}

func (opaqueTransform) Name() string { return "opaque" }

func (opaqueTransform) Transform(ctx context.Context, work *transform.Work) error { return nil }

func newWork() *transform.Work {
	return transform.NewWork("/tmp/unused", "test", "", change.Author{Name: "A", Email: "a@b"},
		nil, change.EmptyChanges(), console.NewCapturing())
}

func TestSequenceRunsInOrder(t *testing.T) {
	seq := transform.NewSequence(hclog.NewNullLogger(),
		&appendTransform{tag: "a"},
		&appendTransform{tag: "b"},
		&appendTransform{tag: "c"},
	)
	work := newWork()
	require.NoError(t, seq.Transform(context.Background(), work))
	assert.Equal(t, "abc", work.Metadata.Message)
}

func TestSequenceFlattensNesting(t *testing.T) {
	log := hclog.NewNullLogger()
	inner := transform.NewSequence(log, &appendTransform{tag: "b"}, &appendTransform{tag: "c"})
	outer := transform.NewSequence(log, &appendTransform{tag: "a"}, inner, &appendTransform{tag: "d"})

	assert.Len(t, outer.Elements(), 4)

	work := newWork()
	require.NoError(t, outer.Transform(context.Background(), work))
	assert.Equal(t, "abcd", work.Metadata.Message)
}

func TestSequenceReverseIsReversedList(t *testing.T) {
	seq := transform.NewSequence(hclog.NewNullLogger(),
		&appendTransform{tag: "a"},
		&appendTransform{tag: "b"},
	)
	reversed, err := seq.Reverse()
	require.NoError(t, err)

	work := newWork()
	require.NoError(t, reversed.Transform(context.Background(), work))
	assert.Equal(t, "~b~a", work.Metadata.Message)
}

func TestSequenceReverseNamesOffender(t *testing.T) {
	seq := transform.NewSequence(hclog.NewNullLogger(),
		&appendTransform{tag: "a"},
		opaqueTransform{},
	)
	_, err := seq.Reverse()
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.NotReversible))
	assert.Contains(t, err.Error(), "opaque")

	assert.Error(t, seq.CheckReversible())
}

func TestSequenceStopsOnError(t *testing.T) {
	boom := &failingTransform{}
	seq := transform.NewSequence(hclog.NewNullLogger(),
		&appendTransform{tag: "a"},
		boom,
		&appendTransform{tag: "never"},
	)
	work := newWork()
	err := seq.Transform(context.Background(), work)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2/3")
	assert.Equal(t, "a", work.Metadata.Message)
}

func TestSequenceHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seq := transform.NewSequence(hclog.NewNullLogger(), &appendTransform{tag: "a"})
	err := seq.Transform(ctx, newWork())
	require.Error(t, err)
}

type failingTransform struct{}

func (failingTransform) Name() string { return "failing" }

func (failingTransform) Transform(ctx context.Context, work *transform.Work) error {
	return fmt.Errorf("boom")
}

func TestWorkLabels(t *testing.T) {
	work := newWork()
	work.AddLabel("Origin-RevId", "abc123")
	assert.Equal(t, "abc123", work.AllLabels().First("Origin-RevId"))

	work.SetMessage("summary")
	full := work.FullMessage()
	assert.Contains(t, full, "summary")
	assert.Contains(t, full, "Origin-RevId: abc123")
}
