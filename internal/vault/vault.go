package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
)

// credentialRecord is the at-rest shape of one vault entry. Exactly
// one of SecretHash (password class) or SessionBlob (session class) is
// set, per Kind.
type credentialRecord struct {
	ID          int64      `db:"id"`
	UserID      string     `db:"user_id"`
	Marketplace string     `db:"marketplace"`
	Kind        string     `db:"kind"`
	Username    *string    `db:"username"`
	SecretHash  *string    `db:"secret_hash"`
	SessionBlob *string    `db:"session_blob"`
	IsActive    bool       `db:"is_active"`
	LastUsed    *time.Time `db:"last_used"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

type credentialStore interface {
	Upsert(ctx context.Context, rec *credentialRecord) error
	Get(ctx context.Context, userID, marketplace string) (*credentialRecord, error)
	GetByID(ctx context.Context, userID string, id int64) (*credentialRecord, error)
	ListByUser(ctx context.Context, userID string) ([]domain.CredentialInfo, error)
	SetActive(ctx context.Context, userID, marketplace string, active bool) error
	SetActiveByID(ctx context.Context, userID string, id int64, active bool) error
	TouchLastUsed(ctx context.Context, userID, marketplace string) error
}

// Vault is the only component permitted to read secret material.
// Password-class secrets are bcrypt-hashed and never recoverable;
// session-class secrets (cookie jars) are envelope-encrypted because
// the automation worker must present them verbatim.
type Vault struct {
	store  credentialStore
	cipher *Cipher
	cost   int
	logger *slog.Logger
}

// NewVault creates a Vault over the given store and cipher. cost is
// the bcrypt work factor, tuned so verification costs on the order of
// 100ms.
func NewVault(store credentialStore, cipher *Cipher, cost int, logger *slog.Logger) *Vault {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Vault{store: store, cipher: cipher, cost: cost, logger: logger}
}

// StorePassword hashes and upserts password-class material. A second
// call for the same (user, marketplace) replaces, never duplicates.
func (v *Vault) StorePassword(ctx context.Context, userID, marketplace, username, password string) error {
	if userID == "" || marketplace == "" || password == "" {
		return fmt.Errorf("%w: user id, marketplace and password are required", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	hashStr := string(hash)
	rec := &credentialRecord{
		UserID:      userID,
		Marketplace: marketplace,
		Kind:        domain.CredentialPassword,
		SecretHash:  &hashStr,
		IsActive:    true,
	}
	if username != "" {
		rec.Username = &username
	}

	if err := v.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to store password credential: %w", err)
	}

	v.logger.Info("Stored password credential",
		slog.String("user_id", userID),
		slog.String("marketplace", marketplace),
	)
	return nil
}

// StoreSession encrypts and upserts a session-class cookie jar.
func (v *Vault) StoreSession(ctx context.Context, userID, marketplace string, cookies []byte) error {
	if userID == "" || marketplace == "" || len(cookies) == 0 {
		return fmt.Errorf("%w: user id, marketplace and cookies are required", domain.ErrValidation)
	}

	blob, err := v.cipher.Encrypt(cookies)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	rec := &credentialRecord{
		UserID:      userID,
		Marketplace: marketplace,
		Kind:        domain.CredentialSession,
		SessionBlob: &blob,
		IsActive:    true,
	}

	if err := v.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to store session credential: %w", err)
	}

	v.logger.Info("Stored session credential",
		slog.String("user_id", userID),
		slog.String("marketplace", marketplace),
	)
	return nil
}

// RetrieveSession decrypts and returns the cookie jar. ErrNotFound if
// no active session-class record exists; ErrDecryptionFailed if the
// envelope is corrupt or was written under an incompatible key. There
// is no plaintext fallback.
func (v *Vault) RetrieveSession(ctx context.Context, userID, marketplace string) ([]byte, error) {
	rec, err := v.activeSession(ctx, userID, marketplace)
	if err != nil {
		return nil, err
	}

	plaintext, err := v.cipher.Decrypt(*rec.SessionBlob)
	if err != nil {
		v.logger.Error("Session envelope decryption failed",
			slog.String("user_id", userID),
			slog.String("marketplace", marketplace),
			slog.Any("error", err),
		)
		return nil, err
	}

	return plaintext, nil
}

// HasActiveSession reports whether an active session-class credential
// exists, without decrypting it.
func (v *Vault) HasActiveSession(ctx context.Context, userID, marketplace string) (bool, error) {
	_, err := v.activeSession(ctx, userID, marketplace)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (v *Vault) activeSession(ctx context.Context, userID, marketplace string) (*credentialRecord, error) {
	rec, err := v.store.Get(ctx, userID, marketplace)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive || rec.Kind != domain.CredentialSession || rec.SessionBlob == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// VerifyPassword checks password-class material. A wrong password is
// (false, nil), not an error.
func (v *Vault) VerifyPassword(ctx context.Context, userID, marketplace, password string) (bool, error) {
	rec, err := v.store.Get(ctx, userID, marketplace)
	if err != nil {
		return false, err
	}
	if !rec.IsActive || rec.Kind != domain.CredentialPassword || rec.SecretHash == nil {
		return false, domain.ErrNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*rec.SecretHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("failed to compare password: %w", err)
	}

	if err := v.store.TouchLastUsed(ctx, userID, marketplace); err != nil {
		v.logger.Warn("Failed to touch credential after verification",
			slog.String("user_id", userID),
			slog.String("marketplace", marketplace),
			slog.Any("error", err),
		)
	}

	return true, nil
}

// ListCredentials returns metadata only; secret material never leaves
// the vault.
func (v *Vault) ListCredentials(ctx context.Context, userID string) ([]domain.CredentialInfo, error) {
	infos, err := v.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return infos, nil
}

// Deactivate idempotently marks a credential inactive. The row is
// retained for audit until account deletion.
func (v *Vault) Deactivate(ctx context.Context, userID, marketplace string) error {
	if err := v.store.SetActive(ctx, userID, marketplace, false); err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	return nil
}

// DeactivateByID deactivates one credential by id, scoped to the
// owning user.
func (v *Vault) DeactivateByID(ctx context.Context, userID string, id int64) error {
	if _, err := v.store.GetByID(ctx, userID, id); err != nil {
		return err
	}
	if err := v.store.SetActiveByID(ctx, userID, id, false); err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	return nil
}

// Touch stamps last_used. Called only after a successful validation or
// automation attempt; a failed validation deliberately leaves
// last_used stale as a staleness signal to the UI.
func (v *Vault) Touch(ctx context.Context, userID, marketplace string) error {
	if err := v.store.TouchLastUsed(ctx, userID, marketplace); err != nil {
		return fmt.Errorf("failed to touch credential: %w", err)
	}
	return nil
}
