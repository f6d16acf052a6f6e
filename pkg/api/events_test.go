package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNavigationControlCancel(t *testing.T) {
	t.Parallel()

	from := &Step{ID: "a"}
	to := &Step{ID: "b"}

	ev, ctrl := NewBeforeStepChange(from, to, DirectionForward)
	ev.Cancel()
	ctrl.Close()

	require.True(t, ctrl.Canceled())
	require.Nil(t, ctrl.RedirectTarget())
}

func TestNavigationControlRedirect(t *testing.T) {
	t.Parallel()

	ev, ctrl := NewBeforeStepChange(&Step{ID: "a"}, &Step{ID: "b"}, DirectionForward)
	ev.Redirect("z")
	ctrl.Close()

	require.False(t, ctrl.Canceled())
	require.NotNil(t, ctrl.RedirectTarget())
	require.Equal(t, StepID("z"), *ctrl.RedirectTarget())
}

func TestNavigationControlFirstDecisionWins(t *testing.T) {
	t.Parallel()

	ev, ctrl := NewBeforeStepChange(&Step{ID: "a"}, &Step{ID: "b"}, DirectionForward)
	ev.Cancel()
	ev.Redirect("z")
	ctrl.Close()

	require.True(t, ctrl.Canceled())
	require.Nil(t, ctrl.RedirectTarget(), "a decision after Cancel is ignored")

	ev, ctrl = NewBeforeStepChange(&Step{ID: "a"}, &Step{ID: "b"}, DirectionForward)
	ev.Redirect("z")
	ev.Redirect("q")
	ev.Cancel()
	ctrl.Close()

	require.False(t, ctrl.Canceled())
	require.Equal(t, StepID("z"), *ctrl.RedirectTarget())
}

func TestNavigationControlClosedIsInert(t *testing.T) {
	t.Parallel()

	ev, ctrl := NewBeforeStepChange(&Step{ID: "a"}, &Step{ID: "b"}, DirectionForward)
	ctrl.Close()

	// Decisions after the dispatch window are ignored entirely.
	ev.Cancel()
	ev.Redirect("z")

	require.False(t, ctrl.Canceled())
	require.Nil(t, ctrl.RedirectTarget())
}

func TestCancelOnNonCancelableEvent(t *testing.T) {
	t.Parallel()

	ev := &Event{Type: EventStepActive, To: &Step{ID: "a"}}
	require.NotPanics(t, func() {
		ev.Cancel()
		ev.Redirect("z")
	})
}
