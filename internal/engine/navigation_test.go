package engine

import (
	"errors"
	"testing"

	"github.com/petrijr/stepflow/pkg/api"
)

func navSteps() []api.Step {
	return []api.Step{
		{ID: "a", Type: api.StepTypeInformation},
		{ID: "b", Type: api.StepTypeForm},
		{ID: "c", Type: api.StepTypeConfirm},
	}
}

func mustStep(t *testing.T, r *resolver, id api.StepID) *api.Step {
	t.Helper()
	s, ok := r.step(id)
	if !ok {
		t.Fatalf("step %q not found", id)
	}
	return s
}

func TestResolverSequenceFallback(t *testing.T) {
	t.Parallel()

	r := newResolver(navSteps())
	fc := api.NewContext(nil)

	next, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, fc)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if next == nil || *next != "b" {
		t.Fatalf("expected next %q, got %v", "b", next)
	}

	prev, err := r.resolveTarget(mustStep(t, r, "b"), api.DirectionBackward, fc)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if prev == nil || *prev != "a" {
		t.Fatalf("expected previous %q, got %v", "a", prev)
	}

	// Off either end of the sequence the flow resolves to an end.
	end, err := r.resolveTarget(mustStep(t, r, "c"), api.DirectionForward, fc)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if end != nil {
		t.Fatalf("expected flow end, got %v", *end)
	}

	begin, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionBackward, fc)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if begin != nil {
		t.Fatalf("expected no previous step, got %v", *begin)
	}
}

func TestResolverSkipsIneligibleSteps(t *testing.T) {
	t.Parallel()

	steps := navSteps()
	steps[1].Condition = func(fc *api.Context) bool {
		show, _ := fc.FlowData["showB"].(bool)
		return show
	}
	r := newResolver(steps)

	hidden := api.NewContext(nil)
	next, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, hidden)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if next == nil || *next != "c" {
		t.Fatalf("expected ineligible b to be skipped, got %v", next)
	}

	visible := api.NewContext(map[string]any{"showB": true})
	next, err = r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, visible)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if next == nil || *next != "b" {
		t.Fatalf("expected eligible b, got %v", next)
	}

	// Backward past the hidden step too.
	prev, err := r.resolveTarget(mustStep(t, r, "c"), api.DirectionBackward, hidden)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if prev == nil || *prev != "a" {
		t.Fatalf("expected backward scan to land on a, got %v", prev)
	}
}

func TestResolverExplicitTargets(t *testing.T) {
	t.Parallel()

	steps := navSteps()
	steps[0].Next = api.To("c")
	steps[2].Next = api.Terminal()
	r := newResolver(steps)
	fc := api.NewContext(nil)

	next, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, fc)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if next == nil || *next != "c" {
		t.Fatalf("expected literal target c, got %v", next)
	}

	end, err := r.resolveTarget(mustStep(t, r, "c"), api.DirectionForward, fc)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if end != nil {
		t.Fatalf("expected terminal target to end the flow, got %v", *end)
	}
}

func TestResolverUnknownLiteralTarget(t *testing.T) {
	t.Parallel()

	steps := navSteps()
	steps[0].Next = api.To("nope")
	r := newResolver(steps)

	_, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, api.NewContext(nil))
	if !errors.Is(err, api.ErrStepNotFound) {
		t.Fatalf("expected ErrStepNotFound, got %v", err)
	}
}

func TestResolverIneligibleLiteralTargetScansOnward(t *testing.T) {
	t.Parallel()

	steps := navSteps()
	steps[0].Next = api.To("b")
	steps[1].Condition = func(*api.Context) bool { return false }
	r := newResolver(steps)

	next, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, api.NewContext(nil))
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if next == nil || *next != "c" {
		t.Fatalf("expected scan past ineligible literal target, got %v", next)
	}
}

func TestResolverPredicate(t *testing.T) {
	t.Parallel()

	steps := navSteps()
	steps[0].Next = api.ResolveWith(func(fc *api.Context) *api.StepID {
		if admin, _ := fc.FlowData["admin"].(bool); admin {
			id := api.StepID("c")
			return &id
		}
		return nil
	})
	r := newResolver(steps)

	next, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, api.NewContext(map[string]any{"admin": true}))
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if next == nil || *next != "c" {
		t.Fatalf("expected predicate target c, got %v", next)
	}

	// nil from the predicate means flow end.
	end, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, api.NewContext(nil))
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if end != nil {
		t.Fatalf("expected flow end from nil predicate result, got %v", *end)
	}
}

func TestResolverPredicatePanicBecomesError(t *testing.T) {
	t.Parallel()

	steps := navSteps()
	steps[0].Next = api.ResolveWith(func(*api.Context) *api.StepID {
		panic("bad predicate")
	})
	r := newResolver(steps)

	_, err := r.resolveTarget(mustStep(t, r, "a"), api.DirectionForward, api.NewContext(nil))
	if err == nil {
		t.Fatal("expected an error from the panicking predicate")
	}
}

func TestResolverInitialIndex(t *testing.T) {
	t.Parallel()

	steps := navSteps()
	steps[0].Condition = func(*api.Context) bool { return false }
	r := newResolver(steps)

	if idx := r.initialIndex(api.NewContext(nil)); idx != 1 {
		t.Fatalf("expected initial index 1, got %d", idx)
	}

	for i := range steps {
		steps[i].Condition = func(*api.Context) bool { return false }
	}
	r = newResolver(steps)
	if idx := r.initialIndex(api.NewContext(nil)); idx != -1 {
		t.Fatalf("expected -1 when no step is eligible, got %d", idx)
	}
}
