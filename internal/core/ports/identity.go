package ports

import (
	"context"
	"time"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// AuthEvent is one entry of the authentication-state stream. A nil
// Credential with a nil Err means the session has no credential any more.
type AuthEvent struct {
	SessionID  string
	Credential *domain.Credential
	Err        error
}

// AuthStateListener receives authentication-state events.
type AuthStateListener func(AuthEvent)

// AuthStateSource is anything that can be subscribed to for auth events.
type AuthStateSource interface {
	Subscribe(listener AuthStateListener) (unsubscribe func())
}

// AuthEventPublisher feeds the authentication-state stream.
type AuthEventPublisher interface {
	Publish(event AuthEvent)
}

// AccountRevoker is the part of the identity provider the authorization
// gate needs: check an account and delete it.
type AccountRevoker interface {
	AccountExists(ctx context.Context, uid string) (bool, error)
	DeleteAccount(ctx context.Context, cred *domain.Credential) error
}

// IdentityProvider issues and revokes credentials.
type IdentityProvider interface {
	AuthStateSource
	AccountRevoker
	SignUp(ctx context.Context, email, password, displayName string) (*domain.Credential, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Credential, error)
	SignOut(ctx context.Context, cred *domain.Credential) error
	Resume(ctx context.Context, token string) (*domain.Credential, error)
	Verify(ctx context.Context, token string) (*domain.Credential, error)
}

// AccountRepository persists identity-provider accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Delete(ctx context.Context, id string) error
}

// RevocationList remembers revoked session ids until their token expires.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}
