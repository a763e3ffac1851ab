package sources

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a failing read is attempted.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetry is used when no policy is configured.
var DefaultRetry = RetryPolicy{Attempts: 5, Delay: 100 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetry.Attempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// Observer receives read instrumentation events. Implementations must be
// safe for concurrent use.
type Observer interface {
	// ObserveRead is called once per physical read attempt.
	ObserveRead(source string)
	// ObserveRetry is called for every failed attempt that will be retried.
	ObserveRetry(source string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveRead(string)         {}
func (nopObserver) ObserveRetry(string, error) {}

// Run calls op until it succeeds, the attempt bound is reached or ctx is
// done. It returns the last error.
func (p RetryPolicy) Run(ctx context.Context, source string, obs Observer, op func() error) error {
	p = p.normalized()
	if obs == nil {
		obs = nopObserver{}
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.Attempts-1)),
		ctx,
	)
	return backoff.RetryNotify(func() error {
		obs.ObserveRead(source)
		return op()
	}, b, func(err error, _ time.Duration) {
		obs.ObserveRetry(source, err)
	})
}
