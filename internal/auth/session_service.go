package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/cache"
	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

// SessionService administra el registro dual de sesiones: la fila durable
// en Postgres es la fuente de verdad, la entrada en cache la vista rápida.
type SessionService interface {
	// Start crea la sesión en ambos stores.
	Start(ctx context.Context, userID string, client ClientInfo, mfaCompleted bool) (*repository.Session, error)

	// Validate responde si la sesión está viva. El hit de cache alcanza; el
	// miss cae al store durable sin repoblar el cache.
	Validate(ctx context.Context, sessionID string) (bool, error)

	// Get retorna la vista cacheada o, en su defecto, la fila durable.
	Get(ctx context.Context, sessionID string) (*repository.Session, error)

	// CompleteMFA marca el segundo factor como completado en ambos stores,
	// preservando el TTL restante de la entrada cacheada.
	CompleteMFA(ctx context.Context, sessionID string) error

	// Revoke invalida la sesión en ambos stores. Idempotente.
	Revoke(ctx context.Context, sessionID string) error

	// RevokeOwned revoca una sesión verificando que pertenezca al usuario.
	// Una sesión ajena (o inexistente) responde ErrSessionInvalid, sin
	// revelar si existe.
	RevokeOwned(ctx context.Context, userID, sessionID string) error

	// RevokeAllForUser invalida todas las sesiones activas del usuario.
	RevokeAllForUser(ctx context.Context, userID string) (int, error)

	// ListActive lista las sesiones vigentes del usuario, más reciente
	// primero, marcando cuál es la sesión desde la que consulta.
	ListActive(ctx context.Context, userID, currentSessionID string) ([]SessionView, error)
}

// SessionView es una sesión activa vista desde el dueño.
type SessionView struct {
	repository.Session
	Current bool
}

// SessionDeps contains dependencies for the session service.
type SessionDeps struct {
	Sessions repository.SessionRepository
	Cache    cache.Client
	TTL      time.Duration
}

type sessionService struct {
	deps SessionDeps
}

// NewSessionService creates a new session service.
func NewSessionService(deps SessionDeps) SessionService {
	if deps.TTL <= 0 {
		deps.TTL = 24 * time.Hour
	}
	return &sessionService{deps: deps}
}

// cachedSession es la vista denormalizada que vive bajo sess:<id>.
type cachedSession struct {
	UserID       string    `json:"user_id"`
	MfaCompleted bool      `json:"mfa_completed"`
	CreatedAt    time.Time `json:"created_at"`
}

func sessionKey(id string) string { return sessionPrefix + id }

func (s *sessionService) Start(ctx context.Context, userID string, client ClientInfo, mfaCompleted bool) (*repository.Session, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.session"),
		logger.Op("Start"),
	)

	sess, err := s.deps.Sessions.Create(ctx, repository.CreateSessionInput{
		UserID:       userID,
		IPAddress:    client.IPAddress,
		UserAgent:    client.UserAgent,
		DeviceInfo:   client.DeviceInfo,
		MFACompleted: mfaCompleted,
		ExpiresAt:    time.Now().UTC().Add(s.deps.TTL),
	})
	if err != nil {
		return nil, err
	}

	if err := s.writeCache(ctx, sess.ID, cachedSession{
		UserID:       sess.UserID,
		MfaCompleted: sess.MFACompleted,
		CreatedAt:    sess.CreatedAt,
	}, s.deps.TTL); err != nil {
		// La fila durable existe; la sesión funciona igual vía fallback.
		log.Warn("session cache write failed", logger.SessionID(sess.ID), logger.Err(err))
	}

	log.Debug("session started", logger.UserID(userID), logger.SessionID(sess.ID))
	return sess, nil
}

func (s *sessionService) Validate(ctx context.Context, sessionID string) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.SessionValidationLatency.Observe(float64(time.Since(start).Milliseconds()))
	}()

	if sessionID == "" {
		return false, nil
	}

	// El hit de cache es suficiente: las entradas expiran junto con la
	// sesión y Revoke las borra explícitamente.
	ok, err := s.deps.Cache.Exists(ctx, sessionKey(sessionID))
	if err == nil && ok {
		return true, nil
	}
	if err != nil {
		logger.From(ctx).Warn("session cache lookup failed",
			logger.Component("auth.session"),
			logger.SessionID(sessionID),
			logger.Err(err),
		)
	}

	sess, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return sess.Valid(time.Now().UTC()), nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*repository.Session, error) {
	sess, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	return sess, nil
}

func (s *sessionService) CompleteMFA(ctx context.Context, sessionID string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.session"),
		logger.Op("CompleteMFA"),
	)

	if err := s.deps.Sessions.CompleteMFA(ctx, sessionID); err != nil {
		if repository.IsNotFound(err) {
			return ErrSessionInvalid
		}
		return err
	}

	// Reescribir la vista cacheada con el TTL que le quede: completar MFA
	// no extiende la vida de la sesión.
	key := sessionKey(sessionID)
	raw, err := s.deps.Cache.Get(ctx, key)
	if err != nil {
		if !cache.IsNotFound(err) {
			log.Warn("session cache read failed", logger.SessionID(sessionID), logger.Err(err))
		}
		return nil
	}

	var cached cachedSession
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		_ = s.deps.Cache.Delete(ctx, key)
		return nil
	}
	cached.MfaCompleted = true

	remaining, err := s.deps.Cache.TTL(ctx, key)
	if err != nil || remaining <= 0 {
		remaining = s.deps.TTL
	}
	if err := s.writeCache(ctx, sessionID, cached, remaining); err != nil {
		log.Warn("session cache rewrite failed", logger.SessionID(sessionID), logger.Err(err))
	}
	return nil
}

func (s *sessionService) Revoke(ctx context.Context, sessionID string) error {
	if _, err := s.deps.Sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	if err := s.deps.Cache.Delete(ctx, sessionKey(sessionID)); err != nil {
		logger.From(ctx).Warn("session cache delete failed",
			logger.Component("auth.session"),
			logger.SessionID(sessionID),
			logger.Err(err),
		)
	}
	return nil
}

func (s *sessionService) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.deps.Sessions.RevokeAllByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.deps.Cache.Delete(ctx, sessionKey(id)); err != nil {
			logger.From(ctx).Warn("session cache delete failed",
				logger.Component("auth.session"),
				logger.SessionID(id),
				logger.Err(err),
			)
		}
	}
	return len(ids), nil
}

func (s *sessionService) RevokeOwned(ctx context.Context, userID, sessionID string) error {
	sess, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrSessionInvalid
		}
		return err
	}
	if sess.UserID != userID {
		return ErrSessionInvalid
	}
	return s.Revoke(ctx, sessionID)
}

func (s *sessionService) ListActive(ctx context.Context, userID, currentSessionID string) ([]SessionView, error) {
	sessions, err := s.deps.Sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionView, len(sessions))
	for i, sess := range sessions {
		out[i] = SessionView{Session: sess, Current: sess.ID == currentSessionID}
	}
	return out, nil
}

func (s *sessionService) writeCache(ctx context.Context, sessionID string, v cachedSession, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.deps.Cache.Set(ctx, sessionKey(sessionID), string(b), ttl)
}
