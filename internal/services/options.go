package services

import "time"

// DefaultClaimTimeout bounds the wall-clock time of one TryClaim call
const DefaultClaimTimeout = 5 * time.Second

// Option tunes the concurrency behaviour of a service
type Option func(*tuning)

type tuning struct {
	maxRetries   int
	claimTimeout time.Duration
}

// WithMaxRetries sets how many times a write is attempted after version conflicts
func WithMaxRetries(n int) Option {
	return func(t *tuning) {
		if n > 0 {
			t.maxRetries = n
		}
	}
}

// WithClaimTimeout sets the wall-clock budget of a claim
func WithClaimTimeout(d time.Duration) Option {
	return func(t *tuning) {
		if d > 0 {
			t.claimTimeout = d
		}
	}
}

func newTuning(opts []Option) tuning {
	t := tuning{maxRetries: DefaultMaxRetries, claimTimeout: DefaultClaimTimeout}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}
