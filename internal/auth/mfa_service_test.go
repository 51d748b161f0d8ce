package auth

import (
	"context"
	"testing"
	"time"

	totplib "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/littlejohn/internal/cache"
	"github.com/dropDatabas3/littlejohn/internal/rate"
	"github.com/dropDatabas3/littlejohn/internal/security/secretbox"
)

const testMaxAttempts = 5

func newMfaServiceForTest(t *testing.T) (MfaService, *fakeIdentityRepo) {
	t.Helper()
	identities := newFakeIdentityRepo()
	box, err := secretbox.New("test-passphrase")
	require.NoError(t, err)
	c := cache.NewMemory("")
	svc := NewMfaService(MfaDeps{
		Identities: identities,
		Box:        box,
		Limiter:    rate.NewAttemptLimiter(c, "mfa_attempt:", testMaxAttempts, 15*time.Minute),
		Issuer:     "littlejohn-test",
	})
	return svc, identities
}

// enrollUser completa setup + confirm y retorna el secreto y los recovery
// codes en texto plano.
func enrollUser(t *testing.T, svc MfaService, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enr, err := svc.Setup(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, enr.Secret)
	require.NotEmpty(t, enr.QRCodePNG)
	require.Contains(t, enr.OtpauthURL, "otpauth://totp/")
	require.Len(t, enr.RecoveryCodes, 8)

	code, err := totplib.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(ctx, userID, code))

	return enr.Secret, enr.RecoveryCodes
}

func TestMfaSetupAndConfirm(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")

	secret, _ := enrollUser(t, svc, user.ID)

	st, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, st.Enabled)
	require.Equal(t, "totp", st.Method)
	require.NotNil(t, st.VerifiedAt)
	require.Equal(t, 8, st.RecoveryCodesLeft)

	// El secreto nunca se guarda en claro.
	stored, err := identities.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.MFASecretEncrypted)
	require.NotEqual(t, secret, *stored.MFASecretEncrypted)
}

func TestMfaSetup_AlreadyEnabled(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")
	enrollUser(t, svc, user.ID)

	_, err := svc.Setup(ctx, user.ID)
	require.ErrorIs(t, err, ErrMfaAlreadyEnabled)
}

func TestMfaConfirm_WithoutSetup(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")

	err := svc.Confirm(ctx, user.ID, "123456")
	require.ErrorIs(t, err, ErrMfaSetupRequired)
}

func TestMfaVerify(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")
	secret, _ := enrollUser(t, svc, user.ID)

	code, err := totplib.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, user.ID, code))

	require.ErrorIs(t, svc.Verify(ctx, user.ID, "000000"), ErrMfaInvalidCode)
}

func TestMfaVerify_NotEnabled(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")

	require.ErrorIs(t, svc.Verify(ctx, user.ID, "123456"), ErrMfaNotEnabled)
}

func TestMfaVerify_LockoutAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")
	secret, _ := enrollUser(t, svc, user.ID)

	// Todos los fallos dentro del cupo responden código inválido, incluso el
	// que lo agota; el lockout recién aparece en el intento siguiente.
	for i := 0; i < testMaxAttempts; i++ {
		require.ErrorIs(t, svc.Verify(ctx, user.ID, "000000"), ErrMfaInvalidCode)
	}
	require.ErrorIs(t, svc.Verify(ctx, user.ID, "000000"), ErrMfaLockedOut)

	// Bloqueado incluso con el código correcto.
	code, err := totplib.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.ErrorIs(t, svc.Verify(ctx, user.ID, code), ErrMfaLockedOut)
}

func TestMfaVerify_SuccessResetsCounter(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")
	secret, _ := enrollUser(t, svc, user.ID)

	for i := 0; i < testMaxAttempts-1; i++ {
		require.ErrorIs(t, svc.Verify(ctx, user.ID, "000000"), ErrMfaInvalidCode)
	}

	code, err := totplib.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, user.ID, code))

	// El contador volvió a cero: hay cupo completo de nuevo.
	for i := 0; i < testMaxAttempts-1; i++ {
		require.ErrorIs(t, svc.Verify(ctx, user.ID, "000000"), ErrMfaInvalidCode)
	}
}

func TestMfaRecoveryCode_SingleUse(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")
	_, codes := enrollUser(t, svc, user.ID)

	require.NoError(t, svc.VerifyRecoveryCode(ctx, user.ID, codes[0]))

	// El code quedó quemado.
	require.ErrorIs(t, svc.VerifyRecoveryCode(ctx, user.ID, codes[0]), ErrRecoveryCodeInvalid)

	st, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 7, st.RecoveryCodesLeft)

	// Los demás siguen sirviendo.
	require.NoError(t, svc.VerifyRecoveryCode(ctx, user.ID, codes[1]))
}

func TestMfaRegenerateRecoveryCodes(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")
	_, old := enrollUser(t, svc, user.ID)

	fresh, err := svc.RegenerateRecoveryCodes(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, fresh, 8)

	// El set viejo quedó invalidado completo.
	require.ErrorIs(t, svc.VerifyRecoveryCode(ctx, user.ID, old[0]), ErrRecoveryCodeInvalid)
	require.NoError(t, svc.VerifyRecoveryCode(ctx, user.ID, fresh[0]))
}

func TestMfaDisable(t *testing.T) {
	ctx := context.Background()
	svc, identities := newMfaServiceForTest(t)
	user := identities.mustAddUser("ana@example.com")
	secret, _ := enrollUser(t, svc, user.ID)

	require.NoError(t, svc.Disable(ctx, user.ID))

	st, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, st.Enabled)
	require.Equal(t, 0, st.RecoveryCodesLeft)

	code, err := totplib.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.ErrorIs(t, svc.Verify(ctx, user.ID, code), ErrMfaNotEnabled)

	require.ErrorIs(t, svc.Disable(ctx, user.ID), ErrMfaNotEnabled)
}
