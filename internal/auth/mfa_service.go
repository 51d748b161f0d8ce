package auth

import (
	"context"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/rate"
	"github.com/dropDatabas3/littlejohn/internal/security/recovery"
	"github.com/dropDatabas3/littlejohn/internal/security/secretbox"
	"github.com/dropDatabas3/littlejohn/internal/security/totp"
)

const mfaMethodTOTP = "totp"

// MfaService administra el segundo factor TOTP: enrolamiento, verificación
// con lockout y recovery codes de un solo uso.
type MfaService interface {
	// Setup genera secreto y recovery codes nuevos y los persiste como
	// enrolamiento pendiente. MFA no queda habilitado hasta Confirm.
	Setup(ctx context.Context, userID string) (*MfaEnrollment, error)

	// Confirm verifica el primer código contra el setup pendiente y
	// habilita MFA.
	Confirm(ctx context.Context, userID, code string) error

	// Verify valida un código TOTP. Los fallos consumen intentos; agotado el
	// cupo, los intentos siguientes quedan bloqueados por la ventana de
	// lockout.
	Verify(ctx context.Context, userID, code string) error

	// VerifyRecoveryCode consume un recovery code. Comparte el contador de
	// intentos con Verify.
	VerifyRecoveryCode(ctx context.Context, userID, code string) error

	// RegenerateRecoveryCodes reemplaza el set completo de codes.
	RegenerateRecoveryCodes(ctx context.Context, userID string) ([]string, error)

	// Disable apaga MFA y borra secreto y codes.
	Disable(ctx context.Context, userID string) error

	// Status resume el estado MFA del usuario.
	Status(ctx context.Context, userID string) (*MfaStatus, error)
}

// MfaDeps contains dependencies for the MFA service.
type MfaDeps struct {
	Identities repository.IdentityRepository
	Box        *secretbox.Box
	Limiter    *rate.AttemptLimiter
	Issuer     string // label mostrado en la app autenticadora
}

type mfaService struct {
	deps MfaDeps
}

// NewMfaService creates a new MFA service.
func NewMfaService(deps MfaDeps) MfaService {
	return &mfaService{deps: deps}
}

func (s *mfaService) Setup(ctx context.Context, userID string) (*MfaEnrollment, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.mfa"),
		logger.Op("Setup"),
	)

	user, err := s.deps.Identities.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if user.MFAEnabled {
		return nil, ErrMfaAlreadyEnabled
	}

	enr, err := totp.Generate(s.deps.Issuer, user.Email)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.deps.Box.Encrypt(enr.Secret)
	if err != nil {
		return nil, err
	}

	codes, hashes, err := recovery.Generate()
	if err != nil {
		return nil, err
	}

	if err := s.deps.Identities.SetMFASetup(ctx, userID, repository.MFASetupInput{
		SecretEncrypted:    encrypted,
		RecoveryCodeHashes: hashes,
		Method:             mfaMethodTOTP,
	}); err != nil {
		return nil, err
	}

	log.Info("mfa setup initiated", logger.UserID(userID))
	return &MfaEnrollment{
		Secret:        enr.Secret,
		OtpauthURL:    enr.URL,
		QRCodePNG:     enr.QRCodePNG,
		RecoveryCodes: codes,
	}, nil
}

func (s *mfaService) Confirm(ctx context.Context, userID, code string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.mfa"),
		logger.Op("Confirm"),
	)

	user, err := s.deps.Identities.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrAuthenticationFailed
		}
		return err
	}
	if user.MFAEnabled {
		return ErrMfaAlreadyEnabled
	}
	if user.MFASecretEncrypted == nil {
		return ErrMfaSetupRequired
	}

	secret, err := s.deps.Box.Decrypt(*user.MFASecretEncrypted)
	if err != nil {
		return err
	}
	if !totp.Verify(code, secret, time.Now().UTC()) {
		return ErrMfaInvalidCode
	}

	if err := s.deps.Identities.EnableMFA(ctx, userID, time.Now().UTC()); err != nil {
		return err
	}
	log.Info("mfa enabled", logger.UserID(userID))
	return nil
}

func (s *mfaService) Verify(ctx context.Context, userID, code string) error {
	return s.verifyWith(ctx, userID, func(user *repository.Identity) (bool, error) {
		secret, err := s.deps.Box.Decrypt(*user.MFASecretEncrypted)
		if err != nil {
			return false, err
		}
		return totp.Verify(code, secret, time.Now().UTC()), nil
	}, ErrMfaInvalidCode)
}

func (s *mfaService) VerifyRecoveryCode(ctx context.Context, userID, code string) error {
	return s.verifyWith(ctx, userID, func(user *repository.Identity) (bool, error) {
		remaining, ok := recovery.Consume(ctx, code, user.MFARecoveryCodeHashes)
		if !ok {
			return false, nil
		}
		// El code queda quemado: persistir el set restante antes de aceptar.
		if err := s.deps.Identities.SetRecoveryCodeHashes(ctx, userID, remaining); err != nil {
			return false, err
		}
		return true, nil
	}, ErrRecoveryCodeInvalid)
}

// verifyWith aplica el protocolo común de verificación: lockout previo,
// check del factor, contabilidad de intentos.
func (s *mfaService) verifyWith(ctx context.Context, userID string, check func(*repository.Identity) (bool, error), invalidErr error) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.mfa"),
		logger.Op("Verify"),
	)

	locked, err := s.deps.Limiter.Locked(ctx, userID)
	if err != nil {
		return err
	}
	if locked {
		return ErrMfaLockedOut
	}

	user, err := s.deps.Identities.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrAuthenticationFailed
		}
		return err
	}
	if !user.MFAEnabled || user.MFASecretEncrypted == nil {
		return ErrMfaNotEnabled
	}

	ok, err := check(user)
	if err != nil {
		return err
	}
	if !ok {
		res, failErr := s.deps.Limiter.Fail(ctx, userID)
		if failErr != nil {
			return failErr
		}
		if !res.Allowed {
			// El intento que agota el cupo todavía responde código inválido;
			// el lockout recién se ve desde el intento siguiente.
			metrics.MfaLockoutsTotal.Inc()
			log.Warn("mfa lockout triggered",
				logger.UserID(userID),
				logger.Duration(res.RetryAfter),
			)
		}
		return invalidErr
	}

	if err := s.deps.Limiter.Reset(ctx, userID); err != nil {
		log.Warn("mfa attempt counter reset failed", logger.UserID(userID), logger.Err(err))
	}
	return nil
}

func (s *mfaService) RegenerateRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	user, err := s.deps.Identities.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if !user.MFAEnabled {
		return nil, ErrMfaNotEnabled
	}

	codes, hashes, err := recovery.Generate()
	if err != nil {
		return nil, err
	}
	if err := s.deps.Identities.SetRecoveryCodeHashes(ctx, userID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *mfaService) Disable(ctx context.Context, userID string) error {
	user, err := s.deps.Identities.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrAuthenticationFailed
		}
		return err
	}
	if !user.MFAEnabled && user.MFASecretEncrypted == nil {
		return ErrMfaNotEnabled
	}

	if err := s.deps.Identities.DisableMFA(ctx, userID); err != nil {
		return err
	}
	logger.From(ctx).Info("mfa disabled",
		logger.Component("auth.mfa"),
		logger.UserID(userID),
	)
	return nil
}

func (s *mfaService) Status(ctx context.Context, userID string) (*MfaStatus, error) {
	user, err := s.deps.Identities.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}

	st := &MfaStatus{
		Enabled:           user.MFAEnabled,
		VerifiedAt:        user.MFAVerifiedAt,
		RecoveryCodesLeft: len(user.MFARecoveryCodeHashes),
		PendingSetup:      !user.MFAEnabled && user.MFASecretEncrypted != nil,
	}
	if user.MFAMethod != nil {
		st.Method = *user.MFAMethod
	}
	return st, nil
}
