// =================================
// File: internal/retry/retry_test.go
// =================================
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := Do(context.Background(), zap.NewNop(), "test op",
		Policy{MaxAttempts: 5, BaseDelay: time.Millisecond},
		func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), zap.NewNop(), "test op",
		Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		func() (struct{}, error) {
			attempts++
			return struct{}{}, errors.New("still broken")
		})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnPermanent(t *testing.T) {
	fatal := errors.New("bad input")
	attempts := 0
	_, err := Do(context.Background(), zap.NewNop(), "test op",
		Policy{MaxAttempts: 5, BaseDelay: time.Millisecond},
		func() (struct{}, error) {
			attempts++
			return struct{}{}, Permanent(fatal)
		})

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts, "permanent errors must not be retried")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, zap.NewNop(), "test op",
		Policy{MaxAttempts: 10, BaseDelay: time.Second},
		func() (struct{}, error) {
			return struct{}{}, errors.New("transient")
		})

	require.Error(t, err)
}
