package auth

import (
	"context"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	jwtx "github.com/dropDatabas3/littlejohn/internal/jwt"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

// Check es un paso de la validación de access tokens. Los checks corren en
// orden fijo y el primero que falla corta el pipeline: lo barato y local
// primero, lo que toca stores después.
type Check interface {
	Name() string
	Check(ctx context.Context, vc *ValidationContext) error
}

// ValidationContext acumula lo resuelto por los checks previos.
type ValidationContext struct {
	Token  string
	Claims *jwtx.AccessClaims
	User   *repository.Identity
}

// Validator valida access tokens corriendo el pipeline de checks.
type Validator struct {
	checks []Check
}

// ValidatorDeps contains dependencies for the token validator.
type ValidatorDeps struct {
	Issuer     *jwtx.Issuer
	Tokens     TokenService
	Sessions   SessionService
	Identities repository.IdentityRepository
}

// NewValidator arma el pipeline estándar: firma y expiración, blacklist,
// sesión viva, usuario activo.
func NewValidator(deps ValidatorDeps) *Validator {
	return &Validator{checks: []Check{
		&signatureCheck{issuer: deps.Issuer},
		&blacklistCheck{tokens: deps.Tokens},
		&sessionCheck{sessions: deps.Sessions},
		&userActiveCheck{identities: deps.Identities},
	}}
}

// RequireMFA agrega al final el check de segundo factor completado.
func (v *Validator) RequireMFA() *Validator {
	checks := make([]Check, len(v.checks), len(v.checks)+1)
	copy(checks, v.checks)
	return &Validator{checks: append(checks, &mfaVerifiedCheck{})}
}

// Validate corre el pipeline y retorna las claims si el token es usable.
func (v *Validator) Validate(ctx context.Context, token string) (*jwtx.AccessClaims, error) {
	vc := &ValidationContext{Token: token}
	for _, c := range v.checks {
		if err := c.Check(ctx, vc); err != nil {
			logger.From(ctx).Debug("token validation failed",
				logger.Component("auth.validate"),
				logger.String("check", c.Name()),
				logger.Err(err),
			)
			return nil, err
		}
	}
	return vc.Claims, nil
}

// ---- Checks ----

type signatureCheck struct {
	issuer *jwtx.Issuer
}

func (c *signatureCheck) Name() string { return "signature" }

func (c *signatureCheck) Check(ctx context.Context, vc *ValidationContext) error {
	claims, err := c.issuer.Parse(vc.Token)
	if err != nil {
		// Firma inválida y vencimiento colapsan hacia afuera; el motivo
		// real queda en el log de debug.
		return ErrAuthenticationFailed
	}
	vc.Claims = claims
	return nil
}

type blacklistCheck struct {
	tokens TokenService
}

func (c *blacklistCheck) Name() string { return "blacklist" }

func (c *blacklistCheck) Check(ctx context.Context, vc *ValidationContext) error {
	blacklisted, err := c.tokens.IsAccessBlacklisted(ctx, vc.Token)
	if err != nil {
		return err
	}
	if blacklisted {
		return ErrAuthenticationFailed
	}
	return nil
}

type sessionCheck struct {
	sessions SessionService
}

func (c *sessionCheck) Name() string { return "session" }

func (c *sessionCheck) Check(ctx context.Context, vc *ValidationContext) error {
	// Tokens sin sesión (re-emitidos por rotación) saltean este check.
	if vc.Claims.SessionID == "" {
		return nil
	}
	ok, err := c.sessions.Validate(ctx, vc.Claims.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionInvalid
	}
	return nil
}

type userActiveCheck struct {
	identities repository.IdentityRepository
}

func (c *userActiveCheck) Name() string { return "user_active" }

func (c *userActiveCheck) Check(ctx context.Context, vc *ValidationContext) error {
	user, err := c.identities.GetByID(ctx, vc.Claims.Subject)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrAuthenticationFailed
		}
		return err
	}
	if !user.IsActive {
		return ErrUserInactive
	}
	vc.User = user
	return nil
}

type mfaVerifiedCheck struct{}

func (c *mfaVerifiedCheck) Name() string { return "mfa_verified" }

func (c *mfaVerifiedCheck) Check(ctx context.Context, vc *ValidationContext) error {
	if vc.User != nil && vc.User.MFAEnabled && !vc.Claims.MfaVerified {
		return ErrMfaRequired
	}
	return nil
}
