package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"hustlex/internal/config"
	"hustlex/internal/domain"
	"hustlex/internal/httpserver"
	"hustlex/internal/presence"
	"hustlex/internal/relay"
	"hustlex/internal/security"
	"hustlex/internal/service"
	"hustlex/internal/store/mongo"
	"hustlex/internal/store/postgres"
	"hustlex/internal/store/sqlite"
	"hustlex/internal/ws"
)

type messageStore interface {
	domain.MessageRepository
	domain.Pinger
}

type stores struct {
	messages messageStore
	profiles domain.ProfileRepository
	close    func(context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStores(ctx, cfg)
	cancel()
	if err != nil {
		logger.Error("failed to open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}

	var encryptor *security.Encryptor
	if cfg.EncryptKey != "" {
		encryptor, err = security.NewEncryptor([]byte(cfg.EncryptKey), cfg.EncryptLegacyKeys)
		if err != nil {
			logger.Error("failed to initialize encryptor", slog.Any("error", err))
			os.Exit(1)
		}
	}

	tokens := security.NewTokenService(cfg.JWTSecret, cfg.TokenTTL())
	registry := presence.NewRegistry()
	msgSvc := service.NewMessageService(st.messages, st.profiles, encryptor, logger, cfg.MaxHistory)

	hub := ws.NewHub()
	rl := relay.New(registry, msgSvc, hub, logger.With(slog.String("component", "relay")), relay.Options{
		AllowUnbound: cfg.RelayAllowUnbound,
	})
	wsHandler := ws.MakeHandler(hub, rl, tokens, ws.HandlerOptions{
		AllowedOrigins:  cfg.CORSOrigins,
		RequireToken:    cfg.WSRequireToken,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
		EventsPerMinute: cfg.WSEventsPerMinute,
		Logger:          logger.With(slog.String("component", "ws")),
	})

	limiter := httpserver.NewLimiterStore(cfg.RateLimitRPM, cfg.RateLimitBurst, time.Minute)

	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Logger:        logger,
		Store:         st.messages,
		Presence:      registry,
		Tokens:        tokens,
		Messages:      msgSvc,
		Conversations: service.NewConversationService(msgSvc, st.messages),
		Users:         service.NewUserService(st.profiles, registry),
		Relay:         rl,
		Limiter:       limiter,
		WebSocket:     wsHandler,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			slog.String("app", cfg.AppName),
			slog.String("env", cfg.Env),
			slog.String("addr", cfg.HTTPAddr()),
			slog.String("store", cfg.StoreDriver),
			slog.Bool("encryption", encryptor != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				// Hijacked websocket connections are not tracked by Shutdown.
				hub.CloseAll()
				shutdownErr := srv.Shutdown(ctx)
				// The store outlives in-flight requests.
				return errors.Join(shutdownErr, st.close(ctx))
			},
			"limiter": func(ctx context.Context) error {
				limiter.Stop()
				return nil
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", slog.Int("code", exitCode))
	os.Exit(exitCode)
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := client.CreateIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return nil, err
		}
		return &stores{
			messages: mongo.NewMessageRepo(client),
			profiles: mongo.NewProfileRepo(client),
			close:    client.Close,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			messages: postgres.NewMessageRepo(db),
			profiles: postgres.NewProfileRepo(db),
			close:    func(context.Context) error { return db.Close() },
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			messages: sqlite.NewMessageRepo(db),
			profiles: sqlite.NewProfileRepo(db),
			close:    func(context.Context) error { return db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
