package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/acim-association/members-dashboard/internal/api/middleware"
	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// ctxSession extracts the session injected by the SessionGuard middleware and
// fails fast when the guard did not run.
func ctxSession(c echo.Context) (*domain.Credential, *domain.MemberRecord, error) {
	cred, _ := c.Get(middleware.CtxCredential).(*domain.Credential)
	member, _ := c.Get(middleware.CtxMember).(*domain.MemberRecord)
	if cred == nil || member == nil {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return cred, member, nil
}

// actor names the signed-in user in audit entries.
func actor(c echo.Context) string {
	if cred, ok := c.Get(middleware.CtxCredential).(*domain.Credential); ok && cred != nil {
		return cred.Email
	}
	return "unknown"
}
