package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/acim-association/members-dashboard/internal/api/metrics"
	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

const minPasswordLength = 6

// AuthStream is the authentication-state stream the identity service writes
// to and lets others subscribe to.
type AuthStream interface {
	ports.AuthEventPublisher
	ports.AuthStateSource
}

// IdentityService is the identity provider: accounts, password sign-in and
// signed session credentials. Every session change is published on the
// authentication-state stream.
type IdentityService struct {
	accounts  ports.AccountRepository
	revoked   ports.RevocationList
	stream    AuthStream
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewIdentityService(
	accounts ports.AccountRepository,
	revoked ports.RevocationList,
	stream AuthStream,
	jwtSecret string,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *IdentityService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &IdentityService{
		accounts:  accounts,
		revoked:   revoked,
		stream:    stream,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log.With().Str("component", "identity").Logger(),
		now:       time.Now,
	}
}

// Subscribe registers a listener on the authentication-state stream.
func (s *IdentityService) Subscribe(listener ports.AuthStateListener) func() {
	return s.stream.Subscribe(listener)
}

// SignUp creates an account and signs it in.
func (s *IdentityService) SignUp(ctx context.Context, email, password, displayName string) (*domain.Credential, error) {
	email = strings.TrimSpace(email)
	if email == "" || len(password) < minPasswordLength {
		metrics.SignInsTotal.WithLabelValues("signup", "error").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, &domain.Account{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("signup", "error").Inc()
		return nil, err
	}

	metrics.SignInsTotal.WithLabelValues("signup", "ok").Inc()
	return s.openSession(account)
}

// SignInWithPassword checks the password and opens a new session. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*domain.Credential, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		metrics.SignInsTotal.WithLabelValues("password", "error").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("password", "error").Inc()
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		metrics.SignInsTotal.WithLabelValues("password", "error").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	metrics.SignInsTotal.WithLabelValues("password", "ok").Inc()
	return s.openSession(account)
}

// SignOut revokes the session token and announces that the session has no
// credential any more.
func (s *IdentityService) SignOut(ctx context.Context, cred *domain.Credential) error {
	if err := s.revoked.Revoke(ctx, cred.SessionID, cred.ExpiresAt); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.stream.Publish(ports.AuthEvent{SessionID: cred.SessionID})
	return nil
}

// DeleteAccount removes the account behind cred and revokes its session.
// Nothing is published: whoever deletes the account settles the session.
func (s *IdentityService) DeleteAccount(ctx context.Context, cred *domain.Credential) error {
	if err := s.accounts.Delete(ctx, cred.UID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := s.revoked.Revoke(ctx, cred.SessionID, cred.ExpiresAt); err != nil {
		s.log.Warn().Err(err).Str("session_id", cred.SessionID).Msg("failed to revoke token of deleted account")
	}
	s.log.Info().Str("uid", cred.UID).Str("email", cred.Email).Msg("account deleted")
	return nil
}

// AccountExists reports whether the account uid is still registered.
func (s *IdentityService) AccountExists(ctx context.Context, uid string) (bool, error) {
	_, err := s.accounts.FindByID(ctx, uid)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Verify checks the token signature, expiry and revocation.
func (s *IdentityService) Verify(ctx context.Context, token string) (*domain.Credential, error) {
	cred, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrTokenRevoked) {
			return nil, err
		}
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return cred, nil
}

func (s *IdentityService) checkRevoked(ctx context.Context, cred *domain.Credential) error {
	revoked, err := s.revoked.IsRevoked(ctx, cred.SessionID)
	if err != nil {
		return err
	}
	if revoked {
		return domain.ErrTokenRevoked
	}
	return nil
}

// Resume re-publishes the credential of a still valid token, for sessions
// this process has not seen yet or that settled with an error. When the
// revocation list or the account store cannot be reached, the failure is
// published for the session as well.
func (s *IdentityService) Resume(ctx context.Context, token string) (*domain.Credential, error) {
	cred, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrTokenRevoked) {
			return nil, err
		}
		return nil, s.publishFailure(cred.SessionID, fmt.Errorf("resume session: %w", err))
	}
	exists, err := s.AccountExists(ctx, cred.UID)
	if err != nil {
		return nil, s.publishFailure(cred.SessionID, fmt.Errorf("resume session: %w", err))
	}
	if !exists {
		return nil, domain.ErrInvalidCredentials
	}
	s.stream.Publish(ports.AuthEvent{SessionID: cred.SessionID, Credential: cred})
	return cred, nil
}

func (s *IdentityService) publishFailure(sessionID string, err error) error {
	s.log.Warn().Err(err).Str("session_id", sessionID).Msg("session could not be resumed")
	s.stream.Publish(ports.AuthEvent{SessionID: sessionID, Err: err})
	return err
}

func (s *IdentityService) openSession(account *domain.Account) (*domain.Credential, error) {
	cred := &domain.Credential{
		UID:         account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		PhotoURL:    account.PhotoURL,
		SessionID:   uuid.NewString(),
		ExpiresAt:   s.now().Add(s.tokenTTL).UTC().Truncate(time.Second),
	}
	token, err := s.generateToken(cred)
	if err != nil {
		return nil, err
	}
	cred.Token = token

	s.stream.Publish(ports.AuthEvent{SessionID: cred.SessionID, Credential: cred})
	return cred, nil
}

func (s *IdentityService) generateToken(cred *domain.Credential) (string, error) {
	claims := jwt.MapClaims{
		"sub":     cred.UID,
		"email":   cred.Email,
		"name":    cred.DisplayName,
		"picture": cred.PhotoURL,
		"jti":     cred.SessionID,
		"iat":     s.now().Unix(),
		"exp":     cred.ExpiresAt.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

func (s *IdentityService) parseToken(token string) (*domain.Credential, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return nil, domain.ErrInvalidCredentials
	}

	uid, _ := claims.GetSubject()
	sessionID, _ := claims["jti"].(string)
	if uid == "" || sessionID == "" {
		return nil, domain.ErrInvalidCredentials
	}
	cred := &domain.Credential{
		UID:       uid,
		SessionID: sessionID,
		Token:     token,
	}
	cred.Email, _ = claims["email"].(string)
	cred.DisplayName, _ = claims["name"].(string)
	cred.PhotoURL, _ = claims["picture"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		cred.ExpiresAt = exp.Time.UTC()
	}
	return cred, nil
}
