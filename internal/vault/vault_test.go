package vault

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/shared/logger"
)

// memStore is an in-memory credentialStore with the same upsert and
// scoping semantics as the SQL store.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[string]*credentialRecord // key: userID|marketplace
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, recs: make(map[string]*credentialRecord)}
}

func (m *memStore) key(userID, marketplace string) string {
	return userID + "|" + marketplace
}

func (m *memStore) Upsert(_ context.Context, rec *credentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.key(rec.UserID, rec.Marketplace)
	stored := *rec
	stored.IsActive = true
	stored.LastUsed = nil
	stored.UpdatedAt = time.Now()
	if existing, ok := m.recs[k]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = m.nextID
		m.nextID++
	}
	m.recs[k] = &stored
	return nil
}

func (m *memStore) Get(_ context.Context, userID, marketplace string) (*credentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recs[m.key(userID, marketplace)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, userID string, id int64) (*credentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.recs {
		if rec.ID == id && rec.UserID == userID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]domain.CredentialInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var infos []domain.CredentialInfo
	for _, rec := range m.recs {
		if rec.UserID != userID {
			continue
		}
		infos = append(infos, domain.CredentialInfo{
			ID:          rec.ID,
			Marketplace: rec.Marketplace,
			Kind:        rec.Kind,
			Username:    rec.Username,
			IsActive:    rec.IsActive,
			LastUsed:    rec.LastUsed,
			UpdatedAt:   rec.UpdatedAt,
		})
	}
	return infos, nil
}

func (m *memStore) SetActive(_ context.Context, userID, marketplace string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.recs[m.key(userID, marketplace)]; ok {
		rec.IsActive = active
	}
	return nil
}

func (m *memStore) SetActiveByID(_ context.Context, userID string, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.recs {
		if rec.ID == id && rec.UserID == userID {
			rec.IsActive = active
		}
	}
	return nil
}

func (m *memStore) TouchLastUsed(_ context.Context, userID, marketplace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.recs[m.key(userID, marketplace)]; ok && rec.IsActive {
		now := time.Now()
		rec.LastUsed = &now
	}
	return nil
}

func newTestVault(t *testing.T) (*Vault, *memStore) {
	t.Helper()
	cipher, err := NewCipher(testKey(), testIterations)
	require.NoError(t, err)
	store := newMemStore()
	return NewVault(store, cipher, bcrypt.MinCost, logger.NewDefault().Logger), store
}

func TestStoreAndRetrieveSession(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	cookies := []byte(`[{"name":"sid","value":"tok-1","domain":".ebay.com"}]`)
	require.NoError(t, v.StoreSession(ctx, "user-1", "ebay", cookies))

	got, err := v.RetrieveSession(ctx, "user-1", "ebay")
	require.NoError(t, err)
	assert.Equal(t, cookies, got)
}

func TestRetrieveSessionNotFound(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	_, err := v.RetrieveSession(ctx, "user-1", "ebay")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// password-class records are not sessions
	require.NoError(t, v.StorePassword(ctx, "user-1", "mercari", "", "hunter2"))
	_, err = v.RetrieveSession(ctx, "user-1", "mercari")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetrieveSessionCorruptEnvelope(t *testing.T) {
	v, store := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.StoreSession(ctx, "user-1", "ebay", []byte(`[{"name":"sid"}]`)))

	rec, err := store.Get(ctx, "user-1", "ebay")
	require.NoError(t, err)
	corrupt := "AAAA" + (*rec.SessionBlob)[4:]
	rec.SessionBlob = &corrupt
	require.NoError(t, store.Upsert(ctx, rec))

	_, err = v.RetrieveSession(ctx, "user-1", "ebay")
	assert.ErrorIs(t, err, domain.ErrDecryptionFailed)
}

func TestStoreSessionReplacesNotDuplicates(t *testing.T) {
	v, store := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.StoreSession(ctx, "user-1", "poshmark", []byte(`old jar`)))
	require.NoError(t, v.StoreSession(ctx, "user-1", "poshmark", []byte(`new jar`)))

	got, err := v.RetrieveSession(ctx, "user-1", "poshmark")
	require.NoError(t, err)
	assert.Equal(t, []byte(`new jar`), got)

	infos, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestVerifyPassword(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.StorePassword(ctx, "user-1", "mercari", "seller@example.com", "correct horse"))

	ok, err := v.VerifyPassword(ctx, "user-1", "mercari", "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.VerifyPassword(ctx, "user-1", "mercari", "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordTouchesLastUsed(t *testing.T) {
	v, store := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.StorePassword(ctx, "user-1", "mercari", "", "pw"))

	ok, err := v.VerifyPassword(ctx, "user-1", "mercari", "pw")
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := store.Get(ctx, "user-1", "mercari")
	require.NoError(t, err)
	assert.NotNil(t, rec.LastUsed)
}

func TestListCredentialsMetadataOnly(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.StoreSession(ctx, "user-1", "ebay", []byte(`jar`)))
	require.NoError(t, v.StorePassword(ctx, "user-1", "mercari", "seller@example.com", "pw"))
	require.NoError(t, v.StoreSession(ctx, "user-2", "ebay", []byte(`other jar`)))

	infos, err := v.ListCredentials(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	for _, info := range infos {
		assert.True(t, info.IsActive)
		assert.NotEmpty(t, info.Marketplace)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.StoreSession(ctx, "user-1", "ebay", []byte(`jar`)))

	require.NoError(t, v.Deactivate(ctx, "user-1", "ebay"))
	require.NoError(t, v.Deactivate(ctx, "user-1", "ebay"))
	// deactivating something that never existed is also a no-op
	require.NoError(t, v.Deactivate(ctx, "user-1", "poshmark"))

	_, err := v.RetrieveSession(ctx, "user-1", "ebay")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := v.HasActiveSession(ctx, "user-1", "ebay")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeactivateByIDScopedToOwner(t *testing.T) {
	v, store := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.StoreSession(ctx, "user-1", "ebay", []byte(`jar`)))
	rec, err := store.Get(ctx, "user-1", "ebay")
	require.NoError(t, err)

	// another user cannot touch it
	err = v.DeactivateByID(ctx, "user-2", rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, v.DeactivateByID(ctx, "user-1", rec.ID))
	ok, err := v.HasActiveSession(ctx, "user-1", "ebay")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreValidation(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	err := v.StorePassword(ctx, "", "ebay", "", "pw")
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = v.StorePassword(ctx, "user-1", "ebay", "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = v.StoreSession(ctx, "user-1", "", []byte(`jar`))
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = v.StoreSession(ctx, "user-1", "ebay", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
