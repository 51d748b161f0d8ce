package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/littlejohn/internal/cache"
)

func newSessionServiceForTest(t *testing.T, ttl time.Duration) (SessionService, *fakeSessionRepo, cache.Client) {
	t.Helper()
	repo := newFakeSessionRepo()
	c := cache.NewMemory("")
	svc := NewSessionService(SessionDeps{
		Sessions: repo,
		Cache:    c,
		TTL:      ttl,
	})
	return svc, repo, c
}

func TestSessionStartAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newSessionServiceForTest(t, time.Hour)

	sess, err := svc.Start(ctx, "user-1", ClientInfo{IPAddress: "10.0.0.1"}, true)
	require.NoError(t, err)
	require.True(t, sess.MFACompleted)

	ok, err := svc.Validate(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// La vista cacheada existe y lleva el TTL de la sesión.
	raw, err := c.Get(ctx, sessionPrefix+sess.ID)
	require.NoError(t, err)
	var cached cachedSession
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	require.Equal(t, "user-1", cached.UserID)
	require.True(t, cached.MfaCompleted)
}

func TestSessionValidate_FallbackToDurable(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newSessionServiceForTest(t, time.Hour)

	sess, err := svc.Start(ctx, "user-1", ClientInfo{}, true)
	require.NoError(t, err)

	// Simular pérdida del cache (restart de Redis): la fila durable sigue
	// respondiendo por la sesión.
	require.NoError(t, c.Delete(ctx, sessionPrefix+sess.ID))

	ok, err := svc.Validate(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// El fallback no repuebla el cache.
	_, err = c.Get(ctx, sessionPrefix+sess.ID)
	require.True(t, cache.IsNotFound(err))
}

func TestSessionValidate_Unknown(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSessionServiceForTest(t, time.Hour)

	ok, err := svc.Validate(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.Validate(ctx, "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionCompleteMFA_PreservesTTL(t *testing.T) {
	ctx := context.Background()
	svc, repo, c := newSessionServiceForTest(t, time.Hour)

	sess, err := svc.Start(ctx, "user-1", ClientInfo{}, false)
	require.NoError(t, err)
	require.False(t, sess.MFACompleted)

	before, err := c.TTL(ctx, sessionPrefix+sess.ID)
	require.NoError(t, err)

	require.NoError(t, svc.CompleteMFA(ctx, sess.ID))

	// Durable y cache quedaron marcados, sin extender la vida de la entrada.
	durable, err := repo.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, durable.MFACompleted)

	raw, err := c.Get(ctx, sessionPrefix+sess.ID)
	require.NoError(t, err)
	var cached cachedSession
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	require.True(t, cached.MfaCompleted)

	after, err := c.TTL(ctx, sessionPrefix+sess.ID)
	require.NoError(t, err)
	require.LessOrEqual(t, after, before)
}

func TestSessionCompleteMFA_InvalidSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSessionServiceForTest(t, time.Hour)

	err := svc.CompleteMFA(ctx, "nope")
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestSessionRevoke_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newSessionServiceForTest(t, time.Hour)

	sess, err := svc.Start(ctx, "user-1", ClientInfo{}, true)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, sess.ID))
	require.NoError(t, svc.Revoke(ctx, sess.ID)) // repetir no falla

	ok, err := svc.Validate(ctx, sess.ID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = c.Get(ctx, sessionPrefix+sess.ID)
	require.True(t, cache.IsNotFound(err))
}

func TestSessionRevokeOwned(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSessionServiceForTest(t, time.Hour)

	sess, err := svc.Start(ctx, "user-1", ClientInfo{}, true)
	require.NoError(t, err)

	// Sesión ajena o inexistente: mismo error, sin revelar cuál.
	require.ErrorIs(t, svc.RevokeOwned(ctx, "user-2", sess.ID), ErrSessionInvalid)
	require.ErrorIs(t, svc.RevokeOwned(ctx, "user-1", "nope"), ErrSessionInvalid)

	ok, err := svc.Validate(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.RevokeOwned(ctx, "user-1", sess.ID))
	ok, err = svc.Validate(ctx, sess.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionListActive(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSessionServiceForTest(t, time.Hour)

	s1, err := svc.Start(ctx, "user-1", ClientInfo{}, true)
	require.NoError(t, err)
	s2, err := svc.Start(ctx, "user-1", ClientInfo{}, true)
	require.NoError(t, err)
	_, err = svc.Start(ctx, "user-2", ClientInfo{}, true)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, s1.ID))

	views, err := svc.ListActive(ctx, "user-1", s2.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, s2.ID, views[0].ID)
	require.True(t, views[0].Current)

	// Más reciente primero.
	for i := 1; i < len(views); i++ {
		require.False(t, views[i].CreatedAt.After(views[i-1].CreatedAt))
	}
}

func TestSessionRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSessionServiceForTest(t, time.Hour)

	s1, err := svc.Start(ctx, "user-1", ClientInfo{}, true)
	require.NoError(t, err)
	s2, err := svc.Start(ctx, "user-1", ClientInfo{}, true)
	require.NoError(t, err)
	other, err := svc.Start(ctx, "user-2", ClientInfo{}, true)
	require.NoError(t, err)

	n, err := svc.RevokeAllForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, id := range []string{s1.ID, s2.ID} {
		ok, err := svc.Validate(ctx, id)
		require.NoError(t, err)
		require.False(t, ok)
	}
	ok, err := svc.Validate(ctx, other.ID)
	require.NoError(t, err)
	require.True(t, ok)
}
