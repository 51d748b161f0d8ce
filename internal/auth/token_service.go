package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/littlejohn/internal/cache"
	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	jwtx "github.com/dropDatabas3/littlejohn/internal/jwt"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

const refreshTokenBytes = 32

// TokenService emite, rota y revoca tokens.
type TokenService interface {
	// IssuePair emite access + refresh para una sesión, abriendo una familia
	// nueva de refresh tokens.
	IssuePair(ctx context.Context, user *repository.Identity, sessionID string, mfaVerified bool) (*TokenPair, error)

	// IssueAccess re-emite sólo el access token de una sesión ya abierta.
	// El refresh token vigente no se toca.
	IssueAccess(ctx context.Context, user *repository.Identity, sessionID string, mfaVerified bool) (string, time.Time, error)

	// Rotate consume un refresh token del usuario dado y emite el par
	// siguiente de la misma familia. Presentar un token ya rotado o revocado
	// revoca la familia completa y retorna ErrRefreshReuseDetected.
	Rotate(ctx context.Context, rawRefresh, userID string) (*TokenPair, error)

	// BlacklistAccess marca un access token como inválido por el resto de su
	// vida útil.
	BlacklistAccess(ctx context.Context, accessToken string) error

	// IsAccessBlacklisted consulta la blacklist.
	IsAccessBlacklisted(ctx context.Context, accessToken string) (bool, error)

	// RevokeAllForUser revoca todos los refresh tokens vigentes del usuario.
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
}

// TokenDeps contains dependencies for the token service.
type TokenDeps struct {
	Tokens     repository.TokenRepository
	Identities repository.IdentityRepository
	Cache      cache.Client
	Issuer     *jwtx.Issuer
	RefreshTTL time.Duration
}

type tokenService struct {
	deps TokenDeps
}

// NewTokenService creates a new token service.
func NewTokenService(deps TokenDeps) TokenService {
	if deps.RefreshTTL <= 0 {
		deps.RefreshTTL = 7 * 24 * time.Hour
	}
	return &tokenService{deps: deps}
}

func (s *tokenService) IssuePair(ctx context.Context, user *repository.Identity, sessionID string, mfaVerified bool) (*TokenPair, error) {
	return s.issue(ctx, user, sessionID, mfaVerified, uuid.NewString(), s.deps.RefreshTTL)
}

func (s *tokenService) IssueAccess(ctx context.Context, user *repository.Identity, sessionID string, mfaVerified bool) (string, time.Time, error) {
	return s.deps.Issuer.IssueAccess(user.ID, jwtx.AccessClaims{
		Email:       user.Email,
		Role:        user.Role,
		MfaVerified: mfaVerified,
		SessionID:   sessionID,
	})
}

// issue emite el par con la familia y TTL de refresh dados. La rotación
// reusa la familia del padre y hereda su expiración absoluta.
func (s *tokenService) issue(ctx context.Context, user *repository.Identity, sessionID string, mfaVerified bool, family string, refreshTTL time.Duration) (*TokenPair, error) {
	access, accessExp, err := s.deps.Issuer.IssueAccess(user.ID, jwtx.AccessClaims{
		Email:       user.Email,
		Role:        user.Role,
		MfaVerified: mfaVerified,
		SessionID:   sessionID,
	})
	if err != nil {
		return nil, err
	}

	rawRefresh, err := tokens.GenerateOpaque(refreshTokenBytes)
	if err != nil {
		return nil, err
	}
	refreshExp := time.Now().UTC().Add(refreshTTL)

	if _, err := s.deps.Tokens.Create(ctx, repository.CreateRefreshTokenInput{
		UserID:    user.ID,
		TokenHash: tokens.SHA256Hex(rawRefresh),
		Family:    family,
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *tokenService) Rotate(ctx context.Context, rawRefresh, userID string) (*TokenPair, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.token"),
		logger.Op("Rotate"),
	)

	now := time.Now().UTC()

	current, err := s.deps.Tokens.GetByHash(ctx, tokens.SHA256Hex(rawRefresh))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}

	// El token tiene que pertenecer a quien lo presenta. Un mismatch se trata
	// como token inexistente, sin quemar la familia del dueño real.
	if current.UserID != userID {
		return nil, ErrRefreshTokenInvalid
	}

	// Un token rotado o revocado que vuelve a presentarse es evidencia de
	// robo: alguien tiene una copia del linaje. Se quema la familia entera.
	if current.State() != repository.TokenStateActive {
		n, revErr := s.deps.Tokens.RevokeFamily(ctx, current.Family)
		if revErr != nil {
			return nil, revErr
		}
		metrics.ReuseDetectedTotal.Inc()
		log.Warn("refresh token reuse detected, family revoked",
			logger.UserID(current.UserID),
			logger.Family(current.Family),
			logger.Count(n),
		)
		return nil, ErrRefreshReuseDetected
	}

	if current.Expired(now) {
		return nil, ErrRefreshTokenExpired
	}

	user, err := s.deps.Identities.GetByID(ctx, current.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// El hash del hijo se calcula ANTES del UPDATE condicional, así el padre
	// queda revocado y apuntando a su reemplazo en una sola sentencia.
	rawChild, err := tokens.GenerateOpaque(refreshTokenBytes)
	if err != nil {
		return nil, err
	}
	childHash := tokens.SHA256Hex(rawChild)

	won, err := s.deps.Tokens.MarkRotated(ctx, current.ID, childHash)
	if err != nil {
		return nil, err
	}
	if !won {
		// Otra rotación ganó entre el GetByHash y el UPDATE: mismo
		// tratamiento que el reuso detectado arriba.
		n, revErr := s.deps.Tokens.RevokeFamily(ctx, current.Family)
		if revErr != nil {
			return nil, revErr
		}
		metrics.ReuseDetectedTotal.Inc()
		log.Warn("lost rotation race, family revoked",
			logger.UserID(current.UserID),
			logger.Family(current.Family),
			logger.Count(n),
		)
		return nil, ErrRefreshReuseDetected
	}

	// El hijo hereda familia y expiración absoluta: rotar nunca extiende la
	// vida del linaje. Los access tokens re-emitidos por rotación no portan
	// sesión y sólo cuentan como MFA-verificados si el usuario no tiene MFA.
	access, accessExp, err := s.deps.Issuer.IssueAccess(user.ID, jwtx.AccessClaims{
		Email:       user.Email,
		Role:        user.Role,
		MfaVerified: !user.MFAEnabled,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.deps.Tokens.Create(ctx, repository.CreateRefreshTokenInput{
		UserID:    user.ID,
		TokenHash: childHash,
		Family:    current.Family,
		ExpiresAt: current.ExpiresAt,
	}); err != nil {
		return nil, err
	}

	metrics.RotationsTotal.Inc()
	log.Debug("refresh token rotated",
		logger.UserID(user.ID),
		logger.Family(current.Family),
	)

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rawChild,
		RefreshExpiresAt: current.ExpiresAt,
	}, nil
}

// BlacklistAccess decodifica el token SIN verificar firma: si ni siquiera
// parsea, no hay nada que invalidar. El TTL de la entrada es la vida
// restante del token, así la blacklist se limpia sola.
func (s *tokenService) BlacklistAccess(ctx context.Context, accessToken string) error {
	claims, err := jwtx.DecodeUnverified(accessToken)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}

	key := blacklistPrefix + tokens.SHA256Hex(accessToken)
	if err := s.deps.Cache.Set(ctx, key, "1", remaining); err != nil {
		return err
	}
	metrics.BlacklistWritesTotal.Inc()
	return nil
}

func (s *tokenService) IsAccessBlacklisted(ctx context.Context, accessToken string) (bool, error) {
	key := blacklistPrefix + tokens.SHA256Hex(accessToken)
	ok, err := s.deps.Cache.Exists(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return false, err
	}
	return ok, nil
}

func (s *tokenService) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	return s.deps.Tokens.RevokeAllByUser(ctx, userID)
}
