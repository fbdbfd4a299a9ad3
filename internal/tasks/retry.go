package tasks

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy shapes the backoff for one error category.
type RetryPolicy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Exponential   bool
	Jitter        bool
}

// Per-category policies. Scope failures recover fast with a flat linear
// backoff; network failures back off hard with jitter so a throttling
// provider is not hammered in lockstep.
var retryPolicies = map[Category]RetryPolicy{
	CategoryExecScopeClosed:   {MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 1},
	CategoryExecScopeMismatch: {MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 1},
	CategoryExecScopeMissing:  {MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 1},
	CategoryNetwork:           {MaxRetries: 5, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, BackoffFactor: 2, Exponential: true, Jitter: true},
	CategoryData:              {MaxRetries: 3, BaseDelay: 3 * time.Second, MaxDelay: 15 * time.Second, BackoffFactor: 1.5, Jitter: true},
	CategoryCache:             {MaxRetries: 3, BaseDelay: 3 * time.Second, MaxDelay: 15 * time.Second, BackoffFactor: 1.5, Jitter: true},
}

var defaultPolicy = RetryPolicy{MaxRetries: 3, BaseDelay: 5 * time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 1.5, Exponential: true, Jitter: true}

// PolicyFor returns the retry policy of a category.
func PolicyFor(category Category) RetryPolicy {
	if p, ok := retryPolicies[category]; ok {
		return p
	}
	return defaultPolicy
}

// Delay computes the backoff before retry number attempt (zero-based).
// Jitter spreads the result ±25%; the final value is clamped to
// [BaseDelay, MaxDelay].
func Delay(p RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	var d time.Duration
	if p.Exponential {
		d = time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	} else {
		d = p.BaseDelay + time.Duration(p.BackoffFactor*float64(attempt)*float64(time.Second))
	}

	if p.Jitter {
		d = time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
	}

	if d < p.BaseDelay {
		d = p.BaseDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// RetryError signals the worker runtime to re-enqueue a job. It wraps the
// causing error so the final attempt can surface it unchanged.
type RetryError struct {
	After    time.Duration
	Attempt  int
	Category Category
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry %s after %s (attempt %d): %v", e.Category, e.After, e.Attempt, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Decide turns a failure into either the original (terminal) error or a
// [RetryError] carrying the computed backoff. attempt counts retries already
// burned; maxOverride raises the per-category retry budget when positive.
func Decide(err error, attempt, maxOverride int) error {
	category := Classify(err)
	if category.Terminal() {
		return err
	}

	policy := PolicyFor(category)
	limit := policy.MaxRetries
	if maxOverride > limit {
		limit = maxOverride
	}

	if attempt >= limit {
		return err
	}

	return &RetryError{
		After:    Delay(policy, attempt),
		Attempt:  attempt + 1,
		Category: category,
		Err:      err,
	}
}
