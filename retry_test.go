package stepflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryBuilderExponential(t *testing.T) {
	t.Parallel()

	p := Retry(3).WithExponentialBackoff(100*time.Millisecond, 2.0, 2*time.Second).Policy()
	require.Equal(t, 3, p.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	require.Equal(t, 2.0, p.BackoffMultiplier)
	require.Equal(t, 2*time.Second, p.MaxBackoff)

	// Non-positive multiplier falls back to 2.0.
	p = Retry(2).WithExponentialBackoff(time.Second, 0, 0).Policy()
	require.Equal(t, 2.0, p.BackoffMultiplier)
}

func TestRetryBuilderConstant(t *testing.T) {
	t.Parallel()

	p := Retry(5).WithConstantBackoff(250 * time.Millisecond).Policy()
	require.Equal(t, 5, p.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, p.InitialBackoff)
	require.Equal(t, 1.0, p.BackoffMultiplier)
	require.Equal(t, 250*time.Millisecond, p.NextBackoff(250*time.Millisecond),
		"constant backoff never grows")
}

func TestRetryBuilderImmediateAndClamping(t *testing.T) {
	t.Parallel()

	p := Retry(0).Policy()
	require.Equal(t, 1, p.MaxAttempts, "non-positive attempts clamp to 1")

	p = Retry(4).Immediate().Policy()
	require.Equal(t, 4, p.MaxAttempts)
	require.Equal(t, time.Duration(0), p.InitialBackoff)
}
