package sources

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Option configures a file-backed source.
type Option func(*options)

type options struct {
	retry  RetryPolicy
	logger *slog.Logger
	now    func() time.Time
	obs    Observer
	open   func(path string) (io.ReadCloser, error)
}

func buildOptions(opts []Option) options {
	o := options{
		retry:  DefaultRetry,
		logger: slog.Default(),
		now:    time.Now,
		obs:    nopObserver{},
		open:   func(path string) (io.ReadCloser, error) { return os.Open(path) },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRetry sets the bounded retry policy for reads.
func WithRetry(p RetryPolicy) Option {
	return func(o *options) { o.retry = p.normalized() }
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used to anchor energy-model timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver installs read instrumentation.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// WithOpener replaces os.Open for delimited sources.
func WithOpener(open func(path string) (io.ReadCloser, error)) Option {
	return func(o *options) {
		if open != nil {
			o.open = open
		}
	}
}

// energyModelStart is Jan 1 00:00 UTC of the current year.
func energyModelStart(now time.Time) time.Time {
	return time.Date(now.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}
