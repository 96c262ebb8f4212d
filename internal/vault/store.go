package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/shared/postgresql"
)

// SQLStore persists vault records in the marketplace_credentials
// table.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a new SQLStore instance
func NewSQLStore(pg *postgresql.Client) *SQLStore {
	return &SQLStore{db: pg.GetDB()}
}

// Upsert inserts or replaces the credential for (user, marketplace).
// A replacement reactivates the row and resets last_used.
func (s *SQLStore) Upsert(ctx context.Context, rec *credentialRecord) error {
	query := `
		INSERT INTO marketplace_credentials
			(user_id, marketplace, kind, username, secret_hash, session_blob, is_active, last_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NULL, NOW(), NOW())
		ON CONFLICT (user_id, marketplace)
		DO UPDATE SET
			kind = EXCLUDED.kind,
			username = EXCLUDED.username,
			secret_hash = EXCLUDED.secret_hash,
			session_blob = EXCLUDED.session_blob,
			is_active = TRUE,
			last_used = NULL,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		rec.UserID,
		rec.Marketplace,
		rec.Kind,
		rec.Username,
		rec.SecretHash,
		rec.SessionBlob,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}

// Get retrieves the credential for (user, marketplace), active or not.
func (s *SQLStore) Get(ctx context.Context, userID, marketplace string) (*credentialRecord, error) {
	query := `
		SELECT id, user_id, marketplace, kind, username, secret_hash, session_blob,
		       is_active, last_used, updated_at
		FROM marketplace_credentials
		WHERE user_id = $1 AND marketplace = $2
	`

	var rec credentialRecord
	if err := s.db.GetContext(ctx, &rec, query, userID, marketplace); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &rec, nil
}

// GetByID retrieves one credential by id, scoped to the owning user.
func (s *SQLStore) GetByID(ctx context.Context, userID string, id int64) (*credentialRecord, error) {
	query := `
		SELECT id, user_id, marketplace, kind, username, secret_hash, session_blob,
		       is_active, last_used, updated_at
		FROM marketplace_credentials
		WHERE id = $1 AND user_id = $2
	`

	var rec credentialRecord
	if err := s.db.GetContext(ctx, &rec, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &rec, nil
}

// ListByUser returns credential metadata for a user, newest first.
func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]domain.CredentialInfo, error) {
	query := `
		SELECT id, marketplace, kind, username, is_active, last_used, updated_at
		FROM marketplace_credentials
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	var infos []domain.CredentialInfo
	if err := s.db.SelectContext(ctx, &infos, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return infos, nil
}

// SetActive flips the active flag for (user, marketplace). Idempotent;
// affecting zero rows is not an error.
func (s *SQLStore) SetActive(ctx context.Context, userID, marketplace string, active bool) error {
	query := `
		UPDATE marketplace_credentials
		SET is_active = $1, updated_at = NOW()
		WHERE user_id = $2 AND marketplace = $3
	`

	if _, err := s.db.ExecContext(ctx, query, active, userID, marketplace); err != nil {
		return fmt.Errorf("failed to set credential active flag: %w", err)
	}

	return nil
}

// SetActiveByID flips the active flag for one credential by id.
func (s *SQLStore) SetActiveByID(ctx context.Context, userID string, id int64, active bool) error {
	query := `
		UPDATE marketplace_credentials
		SET is_active = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, active, id, userID); err != nil {
		return fmt.Errorf("failed to set credential active flag: %w", err)
	}

	return nil
}

// TouchLastUsed stamps last_used with the current time.
func (s *SQLStore) TouchLastUsed(ctx context.Context, userID, marketplace string) error {
	query := `
		UPDATE marketplace_credentials
		SET last_used = NOW()
		WHERE user_id = $1 AND marketplace = $2 AND is_active = TRUE
	`

	if _, err := s.db.ExecContext(ctx, query, userID, marketplace); err != nil {
		return fmt.Errorf("failed to touch credential: %w", err)
	}

	return nil
}
