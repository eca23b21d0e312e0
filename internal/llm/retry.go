package llm

import (
	"context"
	"log"
	"time"
)

// Policy bounds retries of transient provider failures with exponential
// backoff. Sleep is a seam for tests; nil means time.Sleep.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      func(time.Duration)
}

// DefaultPolicy retries three times starting at a two second delay.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: 2 * time.Second}
}

// Do runs fn, retrying transient errors up to MaxRetries additional times.
// The delay doubles after each failed attempt. Auth and unclassified errors
// are returned immediately.
func (p Policy) Do(ctx context.Context, label string, fn func() (string, error)) (string, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == p.MaxRetries {
			return "", err
		}
		delay := p.BaseDelay * (1 << attempt)
		log.Printf("llm retry label=%s attempt=%d/%d delay=%s err=%v",
			label, attempt+1, p.MaxRetries+1, delay, err)
		sleep(delay)
	}
	return "", lastErr
}
