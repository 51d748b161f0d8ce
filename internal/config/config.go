package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda "dev".
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
			OpTimeout       string `yaml:"op_timeout"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Prefix    string `yaml:"prefix"`
		OpTimeout string `yaml:"op_timeout"`
	} `yaml:"cache"`

	JWT struct {
		Issuer      string `yaml:"issuer"`
		AccessTTL   string `yaml:"access_ttl"`
		RefreshTTL  string `yaml:"refresh_ttl"`
		Ed25519Seed string `yaml:"ed25519_seed"` // base64(32 bytes); vacío => clave efímera
	} `yaml:"jwt"`

	Session struct {
		AbsoluteTTL string `yaml:"absolute_ttl"`
		IdleTTL     string `yaml:"idle_ttl"`
	} `yaml:"session"`

	MFA struct {
		Issuer           string `yaml:"issuer"` // label en la app autenticadora
		MaxAttempts      int    `yaml:"max_attempts"`
		LockoutWindow    string `yaml:"lockout_window"`
		SecretPassphrase string `yaml:"secret_passphrase"` // deriva la clave AES del secreto TOTP
	} `yaml:"mfa"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.OpTimeout == "" {
		c.Cache.OpTimeout = "3s"
	}
	if c.Storage.Postgres.OpTimeout == "" {
		c.Storage.Postgres.OpTimeout = "5s"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "littlejohn"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "168h" // 7d
	}
	if c.Session.AbsoluteTTL == "" {
		c.Session.AbsoluteTTL = "24h"
	}
	if c.Session.IdleTTL == "" {
		c.Session.IdleTTL = "30m"
	}
	if c.MFA.Issuer == "" {
		c.MFA.Issuer = c.JWT.Issuer
	}
	if c.MFA.MaxAttempts == 0 {
		c.MFA.MaxAttempts = 5
	}
	if c.MFA.LockoutWindow == "" {
		c.MFA.LockoutWindow = "15m"
	}

	// Overrides por env
	c.applyEnvOverrides()

	// validate string durations
	for _, d := range []string{
		c.Storage.Postgres.ConnMaxLifetime,
		c.Storage.Postgres.OpTimeout,
		c.Cache.OpTimeout,
		c.JWT.AccessTTL,
		c.JWT.RefreshTTL,
		c.Session.AbsoluteTTL,
		c.Session.IdleTTL,
		c.MFA.LockoutWindow,
	} {
		if d != "" {
			if _, err := time.ParseDuration(d); err != nil {
				return nil, err
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate chequea lo mínimo para arrancar.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("config: storage.dsn requerido")
	}
	if strings.EqualFold(c.App.Env, "prod") {
		if strings.TrimSpace(c.MFA.SecretPassphrase) == "" {
			return errors.New("config: mfa.secret_passphrase requerido en prod")
		}
		if strings.TrimSpace(c.JWT.Ed25519Seed) == "" {
			return errors.New("config: jwt.ed25519_seed requerido en prod")
		}
	}
	return nil
}

// ---- Accessors con duración parseada ----

func (c *Config) AccessTTL() time.Duration      { return mustDur(c.JWT.AccessTTL, 15*time.Minute) }
func (c *Config) RefreshTTL() time.Duration     { return mustDur(c.JWT.RefreshTTL, 168*time.Hour) }
func (c *Config) SessionTTL() time.Duration     { return mustDur(c.Session.AbsoluteTTL, 24*time.Hour) }
func (c *Config) SessionIdleTTL() time.Duration { return mustDur(c.Session.IdleTTL, 30*time.Minute) }
func (c *Config) MFALockoutWindow() time.Duration {
	return mustDur(c.MFA.LockoutWindow, 15*time.Minute)
}
func (c *Config) CacheOpTimeout() time.Duration { return mustDur(c.Cache.OpTimeout, 3*time.Second) }
func (c *Config) PGOpTimeout() time.Duration {
	return mustDur(c.Storage.Postgres.OpTimeout, 5*time.Second)
}
func (c *Config) PGConnMaxLifetime() time.Duration {
	return mustDur(c.Storage.Postgres.ConnMaxLifetime, 0)
}

func mustDur(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_HOST"); ok {
		c.Cache.Redis.Host = v
	}
	if v, ok := getEnvInt("REDIS_PORT"); ok {
		c.Cache.Redis.Port = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("CACHE_PREFIX"); ok {
		c.Cache.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvStr("JWT_ED25519_SEED"); ok {
		c.JWT.Ed25519Seed = v
	}

	// SESSION
	if v, ok := getEnvStr("SESSION_ABSOLUTE_TTL"); ok {
		c.Session.AbsoluteTTL = v
	}
	if v, ok := getEnvStr("SESSION_IDLE_TTL"); ok {
		c.Session.IdleTTL = v
	}

	// MFA
	if v, ok := getEnvStr("MFA_ISSUER"); ok {
		c.MFA.Issuer = v
	}
	if v, ok := getEnvInt("MFA_MAX_ATTEMPTS"); ok {
		c.MFA.MaxAttempts = v
	}
	if v, ok := getEnvStr("MFA_LOCKOUT_WINDOW"); ok {
		c.MFA.LockoutWindow = v
	}
	if v, ok := getEnvStr("MFA_SECRET_PASSPHRASE"); ok {
		c.MFA.SecretPassphrase = v
	}
}
