package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

// Context keys set by SessionGuard for authorized requests.
const (
	CtxCredential = "credential"
	CtxMember     = "member"
	CtxRole       = "role"
	CtxSessionID  = "session_id"
)

// landingPath is where an unauthenticated client is sent.
const landingPath = "/"

// TokenVerifier is the part of the identity provider the guard needs.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.Credential, error)
	Resume(ctx context.Context, token string) (*domain.Credential, error)
}

type guardResponse struct {
	Error    string `json:"error,omitempty"`
	Notice   string `json:"notice,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Status   string `json:"status,omitempty"`
}

// SessionGuard admits a request only when its session is settled and
// authorized. A session still being resolved is answered with 503 and
// Retry-After instead of a redirect.
func SessionGuard(identity TokenVerifier, sessions ports.SessionReader, wait time.Duration, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c)
			if !ok {
				return redirect(c, "missing authorization header", "")
			}

			ctx := c.Request().Context()
			cred, err := identity.Verify(ctx, token)
			if err != nil {
				if !errors.Is(err, domain.ErrInvalidCredentials) && !errors.Is(err, domain.ErrTokenRevoked) {
					return err
				}
				return redirect(c, "invalid token", "")
			}

			if st, known := sessions.Current(cred.SessionID); !known || st.Err != nil {
				if _, err := identity.Resume(ctx, token); err != nil {
					log.Debug().Err(err).Str("session_id", cred.SessionID).Msg("session could not be resumed")
					return redirect(c, "session expired", "")
				}
			}

			waitCtx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()
			st, err := sessions.Wait(waitCtx, cred.SessionID)
			if err != nil && st.Loading {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, guardResponse{Status: "loading"})
			}

			if !st.Authorized() {
				if st.Err != nil {
					log.Warn().Err(st.Err).Str("session_id", cred.SessionID).Msg("session settled with an error")
				}
				return redirect(c, "not authenticated", st.Notice)
			}

			c.Set(CtxCredential, st.Credential)
			c.Set(CtxMember, st.Member)
			c.Set(CtxRole, string(st.Member.Role))
			c.Set(CtxSessionID, cred.SessionID)
			return next(c)
		}
	}
}

// bearerToken reads the Authorization header. EventSource clients cannot set
// headers, so the access_token query parameter is accepted as well.
func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		token := c.QueryParam("access_token")
		return token, token != ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func redirect(c echo.Context, msg, notice string) error {
	return c.JSON(http.StatusUnauthorized, guardResponse{Error: msg, Notice: notice, Redirect: landingPath})
}
