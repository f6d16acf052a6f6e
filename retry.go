package stepflow

import "time"

// RetryBuilder assembles the RetryPolicy applied around persistence
// writes. MaxAttempts counts the first try, so Retry(1) means a single
// attempt with no retries. Persistence is best-effort: when the policy
// is exhausted the engine emits EventPersistenceFailure and the flow
// keeps going, so the policy only controls how hard the engine tries
// before giving up on a write.
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry starts a builder allowing maxAttempts persistence attempts.
// Values below 1 are clamped to 1.
//
//	cfg.PersistRetry = stepflow.Retry(3).
//		WithExponentialBackoff(50*time.Millisecond, 2.0, time.Second).
//		Policy()
func Retry(maxAttempts int) RetryBuilder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return RetryBuilder{policy: RetryPolicy{MaxAttempts: maxAttempts}}
}

// WithExponentialBackoff sleeps initial before the first retry and
// multiplies the delay by multiplier for each retry after that, capped
// at max. A multiplier of 0 or below falls back to doubling; max <= 0
// leaves the growth uncapped. Suits adapters backed by a database or a
// network store, where backing off gives a transient outage room to
// clear.
func (r RetryBuilder) WithExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) RetryBuilder {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	r.policy.InitialBackoff = initial
	r.policy.BackoffMultiplier = multiplier
	r.policy.MaxBackoff = max
	return r
}

// WithConstantBackoff sleeps the same delay before every retry. Useful
// when the adapter write is cheap and the likely failure is a brief
// lock conflict rather than an outage.
func (r RetryBuilder) WithConstantBackoff(delay time.Duration) RetryBuilder {
	r.policy.InitialBackoff = delay
	r.policy.BackoffMultiplier = 1.0
	r.policy.MaxBackoff = 0
	return r
}

// Immediate retries without sleeping. MaxAttempts still bounds the
// number of tries; only sensible for in-memory adapters.
func (r RetryBuilder) Immediate() RetryBuilder {
	r.policy.InitialBackoff = 0
	r.policy.BackoffMultiplier = 0
	r.policy.MaxBackoff = 0
	return r
}

// Policy returns the accumulated RetryPolicy for Config.PersistRetry.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}
