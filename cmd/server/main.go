// @title                       ACIM members dashboard API
// @version                     1.0
// @description                 Member directory restricted to association members.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/acim-association/members-dashboard/docs"
	"github.com/acim-association/members-dashboard/internal/api"
	"github.com/acim-association/members-dashboard/internal/api/handler"
	"github.com/acim-association/members-dashboard/internal/audit"
	"github.com/acim-association/members-dashboard/internal/core/service"
	mongodb "github.com/acim-association/members-dashboard/internal/infrastructure/db/mongo"
	redisdb "github.com/acim-association/members-dashboard/internal/infrastructure/db/redis"
	"github.com/acim-association/members-dashboard/internal/infrastructure/queue"
	"github.com/acim-association/members-dashboard/internal/infrastructure/spreadsheet"
	"github.com/acim-association/members-dashboard/internal/pkg/config"
	"github.com/acim-association/members-dashboard/pkg/logger"
)

const (
	serviceName     = "members-dashboard"
	shutdownTimeout = 15 * time.Second
	pruneInterval   = time.Minute
	pruneGrace      = 10 * time.Minute
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	memberRepo := mongodb.NewMemberRepository(db)
	accountRepo := mongodb.NewAccountRepository(db)
	auditRepo := mongodb.NewAuditRepository(db)
	if err := memberRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create member indexes")
	}
	if err := accountRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create account indexes")
	}
	if err := mongodb.EnsureAuditIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to create audit indexes")
	}

	redisClient, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	// --- Identity and sessions ---
	stream := queue.NewDispatcher(cfg.Session.StreamWorkers, log)
	stream.Start(ctx)

	identity := service.NewIdentityService(
		accountRepo,
		redisdb.NewRevocationList(redisClient),
		stream,
		cfg.JWTSecret,
		cfg.Session.TokenTTL,
		log,
	)
	auditLog := audit.New(logger.Component("audit"))
	gate := service.NewGate(memberRepo, identity, auditRepo, auditLog, log)
	sessions := service.NewSessionStore(identity, gate, cfg.Session.GateTimeout, log)
	defer sessions.Close()

	go pruneSessions(ctx, sessions, logger.Component("session_pruner"))

	// --- Members ---
	members := service.NewMemberService(memberRepo, spreadsheet.NewXLSX(), redisdb.NewChangeNotifier(redisClient), log)

	loginLimiter := redisdb.NewRateLimiter(redisClient, redisdb.Limit{
		Name:     "login",
		Capacity: cfg.Session.LoginRateCapacity,
		Window:   cfg.Session.LoginRateWindow,
	})

	e := api.NewRouter(api.Deps{
		Identity: identity,
		Sessions: sessions,
		Members:  members,
		Audit:    auditLog,
		Limiter:  loginLimiter,
		Checkers: []handler.DependencyChecker{
			mongodb.NewChecker(mongoClient),
			redisdb.NewChecker(redisClient),
		},
		Log:            logger.Component("http"),
		SessionWait:    cfg.Session.Wait,
		EnforceRoles:   cfg.Members.EnforceRoles,
		MaxImportBytes: cfg.Members.MaxImportBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = e.Close()
	}
	log.Info().Msg("shutdown complete")
}

// pruneSessions drops settled sessions that can no longer be used.
func pruneSessions(ctx context.Context, sessions *service.SessionStore, log zerolog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Prune(now, pruneGrace); n > 0 {
				log.Debug().Int("removed", n).Msg("pruned sessions")
			}
		}
	}
}
