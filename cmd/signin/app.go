package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/credential/filerepo"
	"github.com/jrsteele09/go-signin/credential/redisrepo"
	"github.com/jrsteele09/go-signin/credential/repofake"
	"github.com/jrsteele09/go-signin/directauth"
	"github.com/jrsteele09/go-signin/internal/config"
	"github.com/jrsteele09/go-signin/internal/telemetry"
	"github.com/jrsteele09/go-signin/session"
	"github.com/jrsteele09/go-signin/signin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app is everything a command needs, wired from the configuration.
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	registry  *prometheus.Registry
	manager   *session.Manager
	model     *signin.Model
	closeRepo func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger := newLogger(cfg)

	repo, closeRepo, err := newRepo(cfg)
	if err != nil {
		return nil, err
	}

	flow, err := directauth.New(ctx, directauth.Config{
		Issuer:        cfg.GetIssuer(),
		ClientID:      cfg.GetClientID(),
		ClientSecret:  cfg.GetClientSecret(),
		Scopes:        cfg.GetScopes(),
		TokenURL:      cfg.GetTokenURL(),
		RevocationURL: cfg.GetRevocationURL(),
		UserInfoURL:   cfg.GetUserInfoURL(),
		Timeout:       cfg.GetRequestTimeout(),
	}, directauth.WithLogger(logger))
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := telemetry.NewSessionMetrics(registry)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	manager, err := session.NewManager(ctx,
		session.Deps{Provider: flow, Credentials: credential.NewKeychain(repo)},
		session.WithLogger(logger),
		session.WithObserver(metrics.Observe),
	)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		manager:   manager,
		model:     signin.NewModel(manager),
		closeRepo: closeRepo,
	}, nil
}

func (a *app) close() {
	if err := a.closeRepo(); err != nil {
		a.logger.Warn().Err(err).Msg("closing credential store")
	}
}

// newLogger writes to stderr so command output on stdout stays parseable.
func newLogger(cfg config.EnvConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if cfg.GetEnv() == "DEV" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logger = logger.Level(level).With().Timestamp().Str("app", cfg.GetAppName()).Logger()
	log.Logger = logger
	return logger
}

func newRepo(cfg config.StoreConfig) (credential.Repo, func() error, error) {
	noop := func() error { return nil }
	switch cfg.GetStoreKind() {
	case config.StoreMemory:
		return repofake.NewFakeCredentialRepo(), noop, nil
	case config.StoreRedis:
		repo, err := redisrepo.New(redisrepo.Config{
			Client:    redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr()}),
			KeyPrefix: cfg.GetRedisKeyPrefix(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("[newRepo] redis: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return filerepo.New(cfg.GetDataFolder()), noop, nil
	}
}
