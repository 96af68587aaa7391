package ports

import (
	"context"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// SessionListener receives every state transition of every session.
type SessionListener func(sessionID string, state domain.SessionState)

// SessionReader is the read side of the session store used by the HTTP layer.
type SessionReader interface {
	Current(sessionID string) (domain.SessionState, bool)
	Wait(ctx context.Context, sessionID string) (domain.SessionState, error)
}

// AuditRepository stores access denials.
type AuditRepository interface {
	InsertRevocation(ctx context.Context, rev domain.Revocation) error
}
