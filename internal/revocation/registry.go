package revocation

import (
	"context"
	"errors"
	"time"
)

// DefaultHorizon is how long an entry added without an expiry stays revoked.
const DefaultHorizon = time.Hour

var ErrEmptyTokenID = errors.New("empty_token_id")

// Registry records revoked token ids until their tokens would have expired anyway.
//
// Implementations must be safe for concurrent use. IsRevoked reports true iff an
// entry exists and now <= its expiry; it removes entries whose expiry has passed.
// ListActive returns the ids with expiry > now and never mutates the registry.
type Registry interface {
	Add(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	ListActive(ctx context.Context) ([]string, error)
}

// Sweeper is implemented by registries that need periodic removal of expired entries.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

func effectiveExpiry(expiresAt, now time.Time) time.Time {
	if expiresAt.IsZero() {
		return now.Add(DefaultHorizon)
	}
	return expiresAt
}
