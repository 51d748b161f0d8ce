// Package app compone el motor de autenticación desde la configuración:
// store durable, cache, firma de tokens y los servicios del dominio.
package app

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/littlejohn/internal/audit"
	"github.com/dropDatabas3/littlejohn/internal/auth"
	"github.com/dropDatabas3/littlejohn/internal/cache"
	"github.com/dropDatabas3/littlejohn/internal/config"
	jwtx "github.com/dropDatabas3/littlejohn/internal/jwt"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/rate"
	"github.com/dropDatabas3/littlejohn/internal/security/secretbox"
	"github.com/dropDatabas3/littlejohn/internal/store/pg"
)

// App agrupa los servicios armados y sus recursos subyacentes.
type App struct {
	Store *pg.Store
	Cache cache.Client

	Auth      auth.AuthService
	Tokens    auth.TokenService
	Sessions  auth.SessionService
	Mfa       auth.MfaService
	Validator *auth.Validator
}

// New arma la aplicación completa. El caller es dueño del ciclo de vida:
// debe llamar Close al terminar.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{
		MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
		MinConns:        int32(cfg.Storage.Postgres.MinConns),
		ConnMaxLifetime: cfg.PGConnMaxLifetime(),
		OpTimeout:       cfg.PGOpTimeout(),
	})
	if err != nil {
		return nil, err
	}

	c, err := cache.New(cache.Config{
		Driver:    cfg.Cache.Kind,
		Host:      cfg.Cache.Redis.Host,
		Port:      cfg.Cache.Redis.Port,
		Password:  cfg.Cache.Redis.Password,
		DB:        cfg.Cache.Redis.DB,
		Prefix:    cfg.Cache.Prefix,
		OpTimeout: cfg.CacheOpTimeout(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	issuer, err := jwtx.NewIssuer(cfg.JWT.Issuer, cfg.JWT.Ed25519Seed, cfg.AccessTTL())
	if err != nil {
		store.Close()
		return nil, err
	}

	passphrase := cfg.MFA.SecretPassphrase
	if passphrase == "" {
		// Sólo posible fuera de prod (Validate lo exige allí). Con la clave
		// de desarrollo los secretos cifrados no sobreviven un cambio de
		// passphrase.
		passphrase = "littlejohn-dev"
		logger.L().Warn("mfa.secret_passphrase vacía, usando clave de desarrollo")
	}
	box, err := secretbox.New(passphrase)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("app: secretbox: %w", err)
	}

	if err := metrics.Register(nil); err != nil {
		store.Close()
		return nil, err
	}

	recorder := audit.NewRecorder(store.Audit())

	tokens := auth.NewTokenService(auth.TokenDeps{
		Tokens:     store.Tokens(),
		Identities: store.Identities(),
		Cache:      c,
		Issuer:     issuer,
		RefreshTTL: cfg.RefreshTTL(),
	})

	sessions := auth.NewSessionService(auth.SessionDeps{
		Sessions: store.Sessions(),
		Cache:    c,
		TTL:      cfg.SessionTTL(),
	})

	mfa := auth.NewMfaService(auth.MfaDeps{
		Identities: store.Identities(),
		Box:        box,
		Limiter: rate.NewAttemptLimiter(c, "mfa_attempt:",
			cfg.MFA.MaxAttempts, cfg.MFALockoutWindow()),
		Issuer: cfg.MFA.Issuer,
	})

	orchestrator := auth.NewAuthService(auth.AuthDeps{
		Identities: store.Identities(),
		Tokens:     tokens,
		Sessions:   sessions,
		Mfa:        mfa,
		Audit:      recorder,
	})

	validator := auth.NewValidator(auth.ValidatorDeps{
		Issuer:     issuer,
		Tokens:     tokens,
		Sessions:   sessions,
		Identities: store.Identities(),
	})

	return &App{
		Store:     store,
		Cache:     c,
		Auth:      orchestrator,
		Tokens:    tokens,
		Sessions:  sessions,
		Mfa:       mfa,
		Validator: validator,
	}, nil
}

// Close libera pool y conexiones de cache.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
