package query

import (
	"context"
	"time"
)

// Store mirrors successful query results outside the process so a cold
// cache can serve the last known snapshot while the backend is failing.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Observer receives cache events. pkg/metrics implements it.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
	FetchCompleted(name string, d time.Duration, err error)
	Subscribed(name string)
	Unsubscribed(name string)
	MutationCompleted(name string, d time.Duration, err error)
}

type Config struct {
	// StaleTime is how long a successful result is served without a network
	// call. Individual queries override it with WithStaleTime.
	StaleTime time.Duration
	// Retry is the number of extra attempts after a failed read.
	Retry int
	// RetryDelay returns the wait before retry attempt n (0 based).
	RetryDelay func(attempt int) time.Duration
	// ShouldRetry filters retryable errors. nil retries everything.
	ShouldRetry func(err error) bool
	// CacheTime is how long an entry without subscribers stays cached.
	CacheTime time.Duration
	// FetchTimeout bounds one shared fetch including retries.
	FetchTimeout time.Duration

	Store    Store
	Observer Observer
}

func DefaultConfig() Config {
	return Config{
		StaleTime:    5 * time.Second,
		Retry:        1,
		RetryDelay:   Backoff,
		CacheTime:    5 * time.Minute,
		FetchTimeout: 15 * time.Second,
	}
}

// Backoff doubles from one second and caps at thirty.
func Backoff(attempt int) time.Duration {
	d := time.Second
	for i := 0; i < attempt && d < 30*time.Second; i++ {
		d *= 2
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

type options struct {
	enabled         bool
	staleTime       time.Duration
	retry           int
	refetchInterval time.Duration
}

type Option func(*options)

// WithEnabled(false) turns a query into a no-op that reports StatusIdle.
func WithEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

func WithStaleTime(d time.Duration) Option {
	return func(o *options) { o.staleTime = d }
}

func WithRetry(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retry = n
		}
	}
}

// WithRefetchInterval polls the key while a subscriber holding this option
// is attached. Zero disables polling for that subscriber.
func WithRefetchInterval(d time.Duration) Option {
	return func(o *options) { o.refetchInterval = d }
}
