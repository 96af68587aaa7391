package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// minRevocationTTL keeps a revocation around briefly even for a token that
// is already past its expiry, so clock skew cannot resurrect it.
const minRevocationTTL = time.Minute

// RevocationList remembers signed-out sessions until their token expires.
// Key format: revoked:<session_id>
type RevocationList struct {
	client *redis.Client
	now    func() time.Time
}

// NewRevocationList creates a RevocationList wrapping the given Redis client.
func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client, now: time.Now}
}

// Revoke marks the session as revoked until the given time.
func (l *RevocationList) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(l.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	if err := l.client.Set(ctx, l.key(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the session was revoked.
func (l *RevocationList) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

func (l *RevocationList) key(sessionID string) string {
	return "revoked:" + sessionID
}
