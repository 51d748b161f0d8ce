package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/audit"
	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/util"
)

// ProfileEnricher completa atributos de perfil (ej: avatar) desde una
// fuente externa. Best-effort: un fallo no afecta el login.
type ProfileEnricher interface {
	Enrich(ctx context.Context, profile *ExternalProfile) error
}

// AuthService orquesta los flujos de login, segundo factor y logout sobre
// los servicios de tokens, sesiones y MFA.
type AuthService interface {
	// Login registra la identidad verificada upstream, abre sesión y emite
	// el primer par de tokens. Si el usuario tiene MFA habilitado, el par
	// sale con mfaVerified=false y el resultado exige completar el factor.
	Login(ctx context.Context, profile ExternalProfile, client ClientInfo) (*LoginResult, error)

	// CompleteMfa verifica el segundo factor de una sesión pendiente y
	// re-emite sólo el access token con mfaVerified=true. El refresh token
	// y la sesión del login siguen vigentes.
	CompleteMfa(ctx context.Context, sessionID, code string, useRecoveryCode bool, client ClientInfo) (*LoginResult, error)

	// Refresh rota un refresh token del usuario dado.
	Refresh(ctx context.Context, userID, rawRefresh string) (*TokenPair, error)

	// Logout invalida el access token, la sesión y todos los refresh tokens
	// del usuario. Idempotente: repetirlo no falla.
	Logout(ctx context.Context, userID, accessToken, sessionID string, client ClientInfo) error
}

// AuthDeps contains dependencies for the auth orchestrator.
type AuthDeps struct {
	Identities repository.IdentityRepository
	Tokens     TokenService
	Sessions   SessionService
	Mfa        MfaService
	Audit      *audit.Recorder
	Enricher   ProfileEnricher // opcional
}

type authService struct {
	deps AuthDeps
}

// NewAuthService creates the auth orchestrator.
func NewAuthService(deps AuthDeps) AuthService {
	return &authService{deps: deps}
}

func (s *authService) Login(ctx context.Context, profile ExternalProfile, client ClientInfo) (*LoginResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("Login"),
	)

	if s.deps.Enricher != nil {
		if err := s.deps.Enricher.Enrich(ctx, &profile); err != nil {
			log.Debug("profile enrichment failed", logger.Email(util.MaskEmail(profile.Email)), logger.Err(err))
		}
	}

	user, err := s.deps.Identities.Upsert(ctx, repository.UpsertIdentityInput{
		ExternalID:  profile.ExternalID,
		Email:       profile.Email,
		Role:        profile.Role,
		IsActive:    profile.IsActive,
		DisplayName: profile.DisplayName,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		JobTitle:    profile.JobTitle,
		Department:  profile.Department,
		AvatarURL:   profile.AvatarURL,
	})
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		metrics.LoginsTotal.WithLabelValues("failed").Inc()
		s.record(ctx, user.ID, audit.ActionLoginFailed, client, false)
		return nil, ErrUserInactive
	}

	// Con MFA habilitado la sesión nace incompleta y los tokens salen sin
	// el claim de verificación: sólo sirven para terminar el factor.
	mfaRequired := user.MFAEnabled

	sess, err := s.deps.Sessions.Start(ctx, user.ID, client, !mfaRequired)
	if err != nil {
		return nil, err
	}

	pair, err := s.deps.Tokens.IssuePair(ctx, user, sess.ID, !mfaRequired)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Identities.UpdateLastLogin(ctx, user.ID, time.Now().UTC(), client.IPAddress); err != nil {
		log.Warn("last login update failed", logger.UserID(user.ID), logger.Err(err))
	}

	result := "success"
	if mfaRequired {
		result = "mfa_required"
	}
	metrics.LoginsTotal.WithLabelValues(result).Inc()
	s.record(ctx, user.ID, audit.ActionLogin, client, true)

	log.Info("login",
		logger.UserID(user.ID),
		logger.Email(util.MaskEmail(user.Email)),
		logger.SessionID(sess.ID),
		logger.Bool("mfa_required", mfaRequired),
	)

	return &LoginResult{
		UserID:      user.ID,
		SessionID:   sess.ID,
		Tokens:      *pair,
		MfaRequired: mfaRequired,
	}, nil
}

func (s *authService) CompleteMfa(ctx context.Context, sessionID, code string, useRecoveryCode bool, client ClientInfo) (*LoginResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("CompleteMfa"),
	)

	sess, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Valid(time.Now().UTC()) {
		return nil, ErrSessionInvalid
	}

	if useRecoveryCode {
		err = s.deps.Mfa.VerifyRecoveryCode(ctx, sess.UserID, code)
	} else {
		err = s.deps.Mfa.Verify(ctx, sess.UserID, code)
	}
	if err != nil {
		action := audit.ActionMfaFailed
		if errors.Is(err, ErrMfaLockedOut) {
			action = audit.ActionMfaLockout
		}
		s.record(ctx, sess.UserID, action, client, false)
		return nil, err
	}

	if err := s.deps.Sessions.CompleteMFA(ctx, sessionID); err != nil {
		return nil, err
	}

	user, err := s.deps.Identities.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	// Sólo se re-emite el access token: el refresh token del login sigue
	// siendo el vigente y la familia no cambia.
	access, accessExp, err := s.deps.Tokens.IssueAccess(ctx, user, sessionID, true)
	if err != nil {
		return nil, err
	}

	s.record(ctx, user.ID, audit.ActionMfaComplete, client, true)
	log.Info("mfa completed", logger.UserID(user.ID), logger.SessionID(sessionID))

	return &LoginResult{
		UserID:    user.ID,
		SessionID: sessionID,
		Tokens: TokenPair{
			AccessToken:     access,
			AccessExpiresAt: accessExp,
		},
	}, nil
}

func (s *authService) Refresh(ctx context.Context, userID, rawRefresh string) (*TokenPair, error) {
	pair, err := s.deps.Tokens.Rotate(ctx, rawRefresh, userID)
	if err != nil {
		if errors.Is(err, ErrRefreshReuseDetected) {
			s.record(ctx, userID, audit.ActionTokenReuse, ClientInfo{}, false)
		}
		return nil, err
	}
	return pair, nil
}

// Logout invalida de más, nunca de menos: revoca todos los refresh tokens
// del usuario, no sólo los de la sesión que cierra.
func (s *authService) Logout(ctx context.Context, userID, accessToken, sessionID string, client ClientInfo) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("Logout"),
	)

	if accessToken != "" {
		if err := s.deps.Tokens.BlacklistAccess(ctx, accessToken); err != nil {
			log.Warn("access blacklist failed", logger.UserID(userID), logger.Err(err))
		}
	}

	if sessionID != "" {
		if err := s.deps.Sessions.Revoke(ctx, sessionID); err != nil {
			return err
		}
	}

	if userID != "" {
		n, err := s.deps.Tokens.RevokeAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Debug("refresh tokens revoked", logger.UserID(userID), logger.Count(n))
		}
	}

	metrics.LogoutsTotal.Inc()
	s.record(ctx, userID, audit.ActionLogout, client, true)
	return nil
}

func (s *authService) record(ctx context.Context, userID, action string, client ClientInfo, success bool) {
	entry := repository.AuditEntry{
		UserID:  userID,
		Action:  action,
		Success: success,
	}
	if client.IPAddress != "" {
		entry.IPAddress = &client.IPAddress
	}
	if client.UserAgent != "" {
		entry.UserAgent = &client.UserAgent
	}
	s.deps.Audit.Record(ctx, entry)
}
