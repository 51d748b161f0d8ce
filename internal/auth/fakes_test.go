package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

// Fakes en memoria para los repositorios del dominio. Mismo contrato que
// las implementaciones de Postgres, sin base.

type fakeIdentityRepo struct {
	mu    sync.Mutex
	users map[string]*repository.Identity
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{users: map[string]*repository.Identity{}}
}

func (r *fakeIdentityRepo) GetByID(ctx context.Context, id string) (*repository.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeIdentityRepo) Upsert(ctx context.Context, input repository.UpsertIdentityInput) (*repository.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ExternalID == input.ExternalID {
			u.Email = input.Email
			u.Role = input.Role
			u.IsActive = input.IsActive
			u.UpdatedAt = time.Now().UTC()
			cp := *u
			return &cp, nil
		}
	}
	u := &repository.Identity{
		ID:         uuid.NewString(),
		ExternalID: input.ExternalID,
		Email:      input.Email,
		Role:       input.Role,
		IsActive:   input.IsActive,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *fakeIdentityRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt = &at
	if ip != "" {
		u.LastLoginIP = &ip
	}
	return nil
}

func (r *fakeIdentityRepo) SetMFASetup(ctx context.Context, id string, input repository.MFASetupInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	secret := input.SecretEncrypted
	method := input.Method
	u.MFASecretEncrypted = &secret
	u.MFAMethod = &method
	u.MFARecoveryCodeHashes = append([]string(nil), input.RecoveryCodeHashes...)
	u.MFAEnabled = false
	u.MFAVerifiedAt = nil
	return nil
}

func (r *fakeIdentityRepo) EnableMFA(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.MFASecretEncrypted == nil {
		return repository.ErrNotFound
	}
	u.MFAEnabled = true
	u.MFAVerifiedAt = &at
	return nil
}

func (r *fakeIdentityRepo) SetRecoveryCodeHashes(ctx context.Context, id string, hashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.MFARecoveryCodeHashes = append([]string(nil), hashes...)
	return nil
}

func (r *fakeIdentityRepo) DisableMFA(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.MFAEnabled = false
	u.MFAMethod = nil
	u.MFASecretEncrypted = nil
	u.MFARecoveryCodeHashes = nil
	u.MFAVerifiedAt = nil
	return nil
}

// mustAddUser siembra un usuario activo y lo retorna.
func (r *fakeIdentityRepo) mustAddUser(email string) *repository.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &repository.Identity{
		ID:         uuid.NewString(),
		ExternalID: "ext-" + email,
		Email:      email,
		Role:       "user",
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	r.users[u.ID] = u
	cp := *u
	return &cp
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*repository.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*repository.Session{}}
}

func (r *fakeSessionRepo) Create(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &repository.Session{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		MFACompleted: input.MFACompleted,
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    input.ExpiresAt,
	}
	if input.IPAddress != "" {
		ip := input.IPAddress
		s.IPAddress = &ip
	}
	r.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) Get(ctx context.Context, id string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) CompleteMFA(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.MFACompleted || s.RevokedAt != nil {
		return repository.ErrNotFound
	}
	s.MFACompleted = true
	return nil
}

func (r *fakeSessionRepo) ListActiveByUser(ctx context.Context, userID string) ([]repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []repository.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Valid(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSessionRepo) Revoke(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	s.RevokedAt = &now
	return true, nil
}

func (r *fakeSessionRepo) RevokeAllByUser(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var ids []string
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (r *fakeSessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(now) || s.RevokedAt != nil {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*repository.RefreshToken // por ID
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[string]*repository.RefreshToken{}}
}

func (r *fakeTokenRepo) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == input.TokenHash {
			return "", repository.ErrConflict
		}
	}
	t := &repository.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		TokenHash: input.TokenHash,
		Family:    input.Family,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: input.ExpiresAt,
	}
	r.tokens[t.ID] = t
	return t.ID, nil
}

func (r *fakeTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTokenRepo) MarkRotated(ctx context.Context, id string, replacedByHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return false, fmt.Errorf("token %s: %w", id, repository.ErrNotFound)
	}
	if t.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	t.ReplacedByHash = &replacedByHash
	return true, nil
}

func (r *fakeTokenRepo) RevokeFamily(ctx context.Context, family string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, t := range r.tokens {
		if t.Family == family && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) DeleteExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for id, t := range r.tokens {
		if !now.Before(t.ExpiresAt) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

// activeCount cuenta tokens vigentes de un usuario.
func (r *fakeTokenRepo) activeCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []repository.AuditEntry
}

func (r *fakeAuditRepo) Insert(ctx context.Context, entry repository.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}
