package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybara/copybara/internal/core"
)

func TestErrorRendering(t *testing.T) {
	err := core.NewError(core.ConfigInvalid).
		WithOperation("loading config").
		WithFile("copy.bara.sky").
		WithLine(12).
		WithCause(fmt.Errorf("undefined symbol")).
		Build()

	msg := err.Error()
	assert.Contains(t, msg, "[ConfigInvalid Error]")
	assert.Contains(t, msg, "copy.bara.sky:12")
	assert.Contains(t, msg, "undefined symbol")
}

func TestIsKindUnwraps(t *testing.T) {
	inner := core.NewError(core.EmptyChange).Build()
	wrapped := fmt.Errorf("while writing: %w", inner)

	assert.True(t, core.IsKind(wrapped, core.EmptyChange))
	assert.False(t, core.IsKind(wrapped, core.RepositoryError))
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	a := core.NewError(core.RepositoryError).WithCause(fmt.Errorf("a")).Build()
	b := core.NewError(core.RepositoryError).WithCause(fmt.Errorf("b")).Build()
	assert.True(t, errors.Is(a, b))
}

func TestTransientFlag(t *testing.T) {
	transient := core.NewError(core.RepositoryError).Transient().Build()
	fatal := core.NewError(core.RepositoryError).Build()
	assert.True(t, core.IsTransient(transient))
	assert.False(t, core.IsTransient(fatal))
}

func TestErrorList(t *testing.T) {
	list := core.NewErrorList(0)
	assert.False(t, list.HasErrors())
	assert.Nil(t, list.First())

	list.Add(fmt.Errorf("one"))
	list.Add(nil)
	list.Add(fmt.Errorf("two"))

	assert.True(t, list.HasErrors())
	assert.Len(t, list.Errors, 2)
	assert.Contains(t, list.Error(), "2 errors occurred")
}

func fastRetryConfig(maxRetries int) *core.RetryConfig {
	return &core.RetryConfig{
		MaxRetries: maxRetries,
		Delay:      time.Millisecond,
		Backoff:    2.0,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := core.Retry(context.Background(), fastRetryConfig(3), "test", func() error {
		calls++
		if calls < 3 {
			return core.NewError(core.RepositoryError).Transient().Build()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnFatal(t *testing.T) {
	calls := 0
	err := core.Retry(context.Background(), fastRetryConfig(3), "test", func() error {
		calls++
		return core.NewError(core.EmptyChange).Build()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-transient errors are not retried")
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	err := core.Retry(context.Background(), fastRetryConfig(2), "test", func() error {
		calls++
		return core.NewError(core.RepositoryError).Transient().Build()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := core.Retry(ctx, fastRetryConfig(3), "test", func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}
