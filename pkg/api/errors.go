package api

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEngineClosed is returned by operations submitted after Close.
	ErrEngineClosed = errors.New("engine closed")

	// ErrEngineErrored is returned when navigation is attempted while
	// the engine is in StatusErrored. Reset is the only recovery path.
	ErrEngineErrored = errors.New("engine requires reset")

	// ErrStepNotFound is returned when a step id does not exist in the
	// configured step set.
	ErrStepNotFound = errors.New("step not found")

	// ErrSuperseded is returned by an operation that was discarded
	// because Reset replaced the flow configuration before it could
	// commit.
	ErrSuperseded = errors.New("operation superseded by reset")
)

// ErrorKind classifies a failure per the engine's taxonomy.
type ErrorKind string

const (
	// KindPrecondition marks an invalid call given current state. The
	// engine recovers locally; state is unaffected.
	KindPrecondition ErrorKind = "precondition"

	// KindResolution marks a navigation predicate failure. Only the
	// in-flight transition is aborted.
	KindResolution ErrorKind = "navigation-resolution"

	// KindSideEffect marks a lifecycle hook failure, caught at the
	// operation queue boundary.
	KindSideEffect ErrorKind = "side-effect"

	// KindPersistence marks a persistence hook failure. Never rolls
	// back navigation.
	KindPersistence ErrorKind = "persistence"

	// KindFatal marks an internal invariant violation. The engine
	// transitions to StatusErrored and blocks navigation until Reset.
	KindFatal ErrorKind = "fatal"
)

// FlowError is the typed result every fallible engine operation reports
// instead of propagating raw errors.
type FlowError struct {
	Kind   ErrorKind
	Op     string
	StepID StepID
	Err    error
	At     time.Time

	// ContextSnapshot is a redacted copy of flowData taken when the
	// error was recorded, kept for diagnostics.
	ContextSnapshot map[string]any
}

func (e *FlowError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.StepID != "" {
		fmt.Fprintf(&b, " (step %s)", e.StepID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FlowError) Unwrap() error { return e.Err }

// AsFlowError extracts a *FlowError from err's chain.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsKind reports whether err carries a FlowError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	fe, ok := AsFlowError(err)
	return ok && fe.Kind == kind
}

var redactedKeyFragments = []string{
	"password", "secret", "token", "apikey", "api_key", "authorization", "credential",
}

// RedactSnapshot deep-copies flowData with values of sensitive-looking
// keys masked. Key matching is case-insensitive and applies one level
// into nested maps.
func RedactSnapshot(flowData map[string]any) map[string]any {
	return redactMap(flowData, 2)
}

func redactMap(m map[string]any, depth int) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveKey(k) {
			out[k] = "[redacted]"
			continue
		}
		if nested, ok := v.(map[string]any); ok && depth > 0 {
			out[k] = redactMap(nested, depth-1)
			continue
		}
		out[k] = v
	}
	return out
}

func sensitiveKey(k string) bool {
	lk := strings.ToLower(k)
	for _, frag := range redactedKeyFragments {
		if strings.Contains(lk, frag) {
			return true
		}
	}
	return false
}
