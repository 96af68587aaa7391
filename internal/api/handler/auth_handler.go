package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acim-association/members-dashboard/internal/audit"
	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

// loginFailedMessage is shown for unknown emails and wrong passwords alike.
const loginFailedMessage = "Email ou mot de passe incorrect"

type AuthHandler struct {
	identity ports.IdentityProvider
	sessions ports.SessionReader
	audit    *audit.Logger
	wait     time.Duration
}

// NewAuthHandler builds the handler. wait bounds how long sign-in waits for
// the authorization gate before answering that the session is still loading.
func NewAuthHandler(identity ports.IdentityProvider, sessions ports.SessionReader, auditLog *audit.Logger, wait time.Duration) *AuthHandler {
	return &AuthHandler{identity: identity, sessions: sessions, audit: auditLog, wait: wait}
}

// SignUp creates an account and signs it in.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      200   {object}  authResponse
// @Success      202   {object}  authResponse   "Authorization still running"
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  deniedResponse
// @Failure      409   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	cred, err := h.identity.SignUp(c.Request().Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountExists):
			return c.JSON(http.StatusConflict, errorResponse{Error: "account already exists"})
		case errors.Is(err, domain.ErrInvalidCredentials):
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		return err
	}

	return h.settle(c, cred)
}

// Login authenticates with email and password.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Success      202   {object}  authResponse   "Authorization still running"
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  deniedResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	cred, err := h.identity.SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: loginFailedMessage})
		}
		return err
	}

	return h.settle(c, cred)
}

// Logout closes the current session.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /v1/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	cred, _, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := h.identity.SignOut(c.Request().Context(), cred); err != nil {
		return err
	}
	if h.audit != nil {
		h.audit.SignedOut(cred.UID, cred.SessionID)
	}
	return c.NoContent(http.StatusNoContent)
}

// Session returns the signed-in user shown in the dashboard sidebar.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  errorResponse
// @Failure      503  {object}  map[string]string
// @Router       /v1/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	cred, member, err := ctxSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(cred, member))
}

// settle waits for the authorization gate to decide about the new session.
func (h *AuthHandler) settle(c echo.Context, cred *domain.Credential) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.wait)
	defer cancel()

	st, err := h.sessions.Wait(ctx, cred.SessionID)
	switch {
	case err != nil && st.Loading:
		return c.JSON(http.StatusAccepted, authResponse{
			Token:     cred.Token,
			ExpiresAt: cred.ExpiresAt,
			Status:    "loading",
		})
	case st.Authorized():
		resp := toSessionResponse(st.Credential, st.Member)
		return c.JSON(http.StatusOK, authResponse{
			Token:     cred.Token,
			ExpiresAt: cred.ExpiresAt,
			Status:    "authorized",
			Session:   &resp,
		})
	case st.Notice != "":
		return c.JSON(http.StatusForbidden, deniedResponse{Error: "access denied", Notice: st.Notice})
	case st.Err != nil:
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "authorization unavailable"})
	default:
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "session closed"})
	}
}
