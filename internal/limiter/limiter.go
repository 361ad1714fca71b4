// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}

// Unlimited is a no-op limiter used in anonymous relay mode, where there are
// no credentials to brute-force.
type Unlimited struct{}

// Allow always permits the attempt.
func (Unlimited) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return true, 0, nil
}

// Success is a no-op.
func (Unlimited) Success(context.Context, string, []byte) error { return nil }

// Failure records nothing and never blocks.
func (Unlimited) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
