package api

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlowErrorWrapping(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	fe := &FlowError{Kind: KindSideEffect, Op: "onStepComplete", StepID: "a", Err: inner, At: time.Now()}

	require.ErrorIs(t, fe, inner)
	require.Contains(t, fe.Error(), "side-effect")
	require.Contains(t, fe.Error(), "boom")

	wrapped := fmt.Errorf("while advancing: %w", fe)
	got, ok := AsFlowError(wrapped)
	require.True(t, ok)
	require.Equal(t, fe, got)

	require.True(t, IsKind(wrapped, KindSideEffect))
	require.False(t, IsKind(wrapped, KindFatal))
	require.False(t, IsKind(errors.New("plain"), KindSideEffect))
}

func TestRedactSnapshot(t *testing.T) {
	t.Parallel()

	snap := RedactSnapshot(map[string]any{
		"name":         "Ada",
		"password":     "hunter2",
		"API_KEY":      "k",
		"authToken":    "t",
		"oauth_secret": "s",
		"nested": map[string]any{
			"credential": "c",
			"plain":      "ok",
		},
	})

	require.Equal(t, "Ada", snap["name"])
	require.Equal(t, "[redacted]", snap["password"])
	require.Equal(t, "[redacted]", snap["API_KEY"], "matching is case-insensitive")
	require.Equal(t, "[redacted]", snap["authToken"])
	require.Equal(t, "[redacted]", snap["oauth_secret"])

	nested := snap["nested"].(map[string]any)
	require.Equal(t, "[redacted]", nested["credential"])
	require.Equal(t, "ok", nested["plain"])
}

func TestRedactSnapshotDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := map[string]any{"password": "hunter2"}
	_ = RedactSnapshot(in)
	require.Equal(t, "hunter2", in["password"])
}

func TestRetryPolicyNextBackoff(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, BackoffMultiplier: 2, MaxBackoff: 300 * time.Millisecond}
	require.Equal(t, 200*time.Millisecond, p.NextBackoff(100*time.Millisecond))
	require.Equal(t, 300*time.Millisecond, p.NextBackoff(200*time.Millisecond), "capped at MaxBackoff")

	// Multiplier defaults to 2 when unset.
	d := RetryPolicy{}.NextBackoff(50 * time.Millisecond)
	require.Equal(t, 100*time.Millisecond, d)
}
