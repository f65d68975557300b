package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-iam/internal/config"
	"github.com/iliyamo/booking-iam/internal/database"
	"github.com/iliyamo/booking-iam/internal/handler"
	"github.com/iliyamo/booking-iam/internal/middleware"
	"github.com/iliyamo/booking-iam/internal/queue"
	"github.com/iliyamo/booking-iam/internal/repository"
	"github.com/iliyamo/booking-iam/internal/router"
	"github.com/iliyamo/booking-iam/internal/service"
	"github.com/iliyamo/booking-iam/internal/utils"
)

// stores is the pair of ports selected by STORE_DRIVER.
type stores struct {
	users  service.CredentialStore
	tokens interface {
		service.TokenStore
		service.TokenPurger
	}
	db *sql.DB
}

func main() {
	_ = godotenv.Load() // .env is optional

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg)

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open stores")
	}
	if st.db != nil {
		defer st.db.Close()
	}

	key, generated, err := cfg.SigningKey()
	if err != nil {
		log.Fatal().Err(err).Msg("load signing key")
	}
	if generated {
		log.Warn().Msg("no JWT signing key configured, using an ephemeral key; tokens will not survive a restart")
	}
	issuer, err := utils.NewJWTIssuer(key, cfg.JWT.KeyID, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("create token issuer")
	}

	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, rate limiting per instance")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var events service.EventPublisher
	if cfg.Events.Enabled {
		pub := queue.NewPublisher(cfg.Events.RabbitMQURL, log)
		defer pub.Close()
		events = pub

		consumer := &queue.AuditConsumer{URL: cfg.Events.RabbitMQURL, LogPath: cfg.Events.AuditLogPath, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	auth := service.NewAuthService(st.users, st.tokens, issuer, utils.BcryptMatcher{}, utils.SHA256Hasher{}, events,
		service.Options{
			AccessTTL:  cfg.JWT.AccessTTL,
			RefreshTTL: cfg.JWT.RefreshTTL,
			Lockout:    cfg.Lockout.Policy(),
		}, log)
	accounts := service.NewAccountService(st.users, st.tokens, utils.BcryptEncoder{Cost: cfg.BcryptCost}, events, log)

	if cfg.AdminEmail != "" {
		if _, err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("bootstrap admin account")
		}
	}

	go service.RunTokenPurge(ctx, st.tokens, cfg.TokenPurgeInterval, cfg.TokenRetention, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	var pinger handler.Pinger
	if st.db != nil {
		pinger = st.db
	}
	router.RegisterRoutes(e, pinger)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, accounts, log), issuer,
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.RegisterAdmin(e, handler.NewAdminHandler(accounts, log), issuer)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var log zerolog.Logger
	if cfg.IsProduction() {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly})
	}
	return log.Level(level).With().Timestamp().Str("service", "booking-iam").Logger()
}

func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory stores; accounts and tokens are lost on restart")
		return stores{users: repository.NewMemoryUserRepo(), tokens: repository.NewMemoryTokenRepo()}, nil
	}
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return stores{}, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{users: &repository.UserRepo{DB: db}, tokens: &repository.TokenRepo{DB: db}, db: db}, nil
}
