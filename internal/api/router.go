package api

import (
	"fmt"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/acim-association/members-dashboard/internal/api/handler"
	"github.com/acim-association/members-dashboard/internal/api/middleware"
	"github.com/acim-association/members-dashboard/internal/audit"
	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

// Deps carries everything the HTTP layer needs. Nil Limiter disables login
// rate limiting.
type Deps struct {
	Identity ports.IdentityProvider
	Sessions ports.SessionReader
	Members  ports.MemberService
	Audit    *audit.Logger
	Limiter  middleware.TokenBucket
	Checkers []handler.DependencyChecker
	Log      zerolog.Logger

	// SessionWait bounds how long a request waits for a loading session.
	SessionWait    time.Duration
	EnforceRoles   bool
	MaxImportBytes int64
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddleware("associations"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Identity, d.Sessions, d.Audit, d.SessionWait)
	memberHandler := handler.NewMemberHandler(d.Members, d.Audit, d.MaxImportBytes, d.Log)

	// --- Auth routes ---
	limit := middleware.Noop()
	if d.Limiter != nil {
		limit = middleware.RateLimit(d.Limiter, d.Log)
	}
	e.POST("/auth/signup", authHandler.SignUp, limit)
	e.POST("/auth/login", authHandler.Login, limit)

	// --- Dashboard routes (session guard) ---
	v1 := e.Group("/v1", middleware.SessionGuard(d.Identity, d.Sessions, d.SessionWait, d.Log))

	writers := middleware.Noop()
	if d.EnforceRoles {
		writers = middleware.RBAC(domain.RoleAdmin)
	}

	v1.POST("/auth/logout", authHandler.Logout)
	v1.GET("/session", authHandler.Session)

	v1.GET("/members", memberHandler.List)
	v1.GET("/members/export", memberHandler.Export)
	v1.GET("/members/stream", memberHandler.Stream)
	v1.POST("/members", memberHandler.Create, writers)
	v1.POST("/members/import", memberHandler.Import, writers, importBodyLimit(d.MaxImportBytes))
	v1.DELETE("/members/:id", memberHandler.Delete, writers)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Checkers...)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// multipartOverhead leaves room for the multipart envelope around the file.
const multipartOverhead = 64 << 10

// importBodyLimit rejects oversized uploads before the form is parsed. The
// handler still checks the exact file size.
func importBodyLimit(maxBytes int64) echo.MiddlewareFunc {
	if maxBytes <= 0 {
		return middleware.Noop()
	}
	return echomiddleware.BodyLimit(fmt.Sprintf("%dB", maxBytes+multipartOverhead))
}

// requestLogger logs one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
