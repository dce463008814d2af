// main wires the issue tracker: postgres (or in-memory stores in dev mode),
// redis-backed sessions, the Kafka event stream, and the HTTP API. Business
// logic lives in the internal service packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracker/internal/identity/handler"
	identityservice "tracker/internal/identity/service"
	sessionstore "tracker/internal/identity/store/session"
	userstore "tracker/internal/identity/store/user"
	issuehandler "tracker/internal/issue/handler"
	issueservice "tracker/internal/issue/service"
	eventstore "tracker/internal/issue/store/events"
	issuestore "tracker/internal/issue/store/issues"
	"tracker/internal/platform/config"
	"tracker/internal/platform/httpserver"
	"tracker/internal/platform/logger"
	"tracker/internal/platform/metrics"
	"tracker/internal/platform/postgres"
	"tracker/internal/platform/redis"
	"tracker/internal/platform/stream"
	httptransport "tracker/internal/transport/http"
	"tracker/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.DevMode)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		issues issueservice.IssueStore
		events issueservice.EventStore
		users  identityservice.UserStore
		refs   issueservice.UserStore
		runner tx.Runner
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.RunMigrations(db); err != nil {
			return err
		}
		issues = issuestore.NewPostgresStore(db)
		events = eventstore.NewPostgresStore(db)
		pgUsers := userstore.NewPostgresStore(db)
		users, refs = pgUsers, pgUsers
		runner = tx.NewRunner(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		memEvents := eventstore.NewInMemoryStore(nil)
		issues = issuestore.NewInMemoryStore(memEvents)
		events = memEvents
		memUsers := userstore.NewInMemoryStore()
		users, refs = memUsers, memUsers
		runner = tx.Passthrough()
	}

	var sessions identityservice.SessionStore = sessionstore.NewInMemoryStore()
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = sessionstore.NewRedisStore(redisClient.Client)
	}

	publisher, err := stream.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return err
	}
	var eventStream issueservice.EventStream
	if publisher != nil {
		defer publisher.Close()
		eventStream = publisher
		go func() {
			if err := publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event stream worker stopped", "error", err)
			}
		}()
	}

	auth := identityservice.New(users, sessions, identityservice.Config{
		SigningKey:    cfg.JWTSigningKey,
		AdminPassword: cfg.AdminPassword,
		DevMode:       cfg.DevMode,
		SessionTTL:    cfg.SessionTTL,
	})
	if err := auth.SeedUsers(ctx); err != nil {
		return err
	}

	tracker := issueservice.New(issues, events, refs, runner, eventStream, m, log)

	router := httptransport.NewRouter(
		handler.New(auth, log, m),
		issuehandler.New(tracker, log, m, auth),
	)
	srv := httpserver.New(cfg.Addr, router)

	errc := make(chan error, 1)
	go func() {
		log.Info("starting tracker", "addr", cfg.Addr, "dev_mode", cfg.DevMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
