package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func fast(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

var errTransient = NewTransientError(errors.New("temporary"))

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), func(_ context.Context) error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), func(_ context.Context) error {
		calls++
		return errors.New("permanent")
	})
	require.EqualError(t, err, "permanent")
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fast(5)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	calls := 0
	cfg.OnRetry = func(int, error) { cancel() }
	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomShouldRetry(t *testing.T) {
	calls := 0
	cfg := fast(3)
	cfg.ShouldRetry = func(error) bool { return true }

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return errors.New("anything")
	})
	assert.Equal(t, 3, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fast(3)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(_ context.Context) error { return errTransient })
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoVal(t *testing.T) {
	calls := 0
	n, err := DoVal(context.Background(), fast(3), func(_ context.Context) (int64, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = DoVal(context.Background(), fast(2), func(_ context.Context) (int64, error) {
		return 7, errTransient
	})
	require.Error(t, err)
	assert.Zero(t, n)
}

func TestWithAttempts(t *testing.T) {
	assert.Equal(t, 5, WithAttempts(5).MaxAttempts)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, WithAttempts(0).MaxAttempts)
}

func TestComputeBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 350*time.Millisecond, computeBackoff(2, cfg))

	cfg.JitterFraction = 0.5
	for i := 0; i < 50; i++ {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetryLogger(t *testing.T) {
	fn := RetryLogger("write_batch", zap.Int("batch", 2))
	assert.NotPanics(t, func() { fn(1, errTransient) })
}
