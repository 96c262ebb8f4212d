package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
)

// Checker asks an external collaborator whether a marketplace still
// accepts a session's cookie jar. An ordinary rejection is (false,
// nil); only transport or protocol failures return an error.
type Checker interface {
	CheckSession(ctx context.Context, marketplace string, cookies []byte) (bool, error)
}

// SessionVault is the slice of the vault the freshness protocol needs.
type SessionVault interface {
	RetrieveSession(ctx context.Context, userID, marketplace string) ([]byte, error)
	Touch(ctx context.Context, userID, marketplace string) error
	Deactivate(ctx context.Context, userID, marketplace string) error
}

// Freshness validates vaulted sessions on demand, independent of job
// execution. Freshness is advisory: the vault keeps serving a stale
// session, and callers decide whether staleness blocks them.
type Freshness struct {
	vault   SessionVault
	checker Checker
	logger  *slog.Logger
}

// NewFreshness creates a new Freshness instance
func NewFreshness(vault SessionVault, checker Checker, logger *slog.Logger) *Freshness {
	return &Freshness{vault: vault, checker: checker, logger: logger}
}

// Validate decrypts the vaulted jar and asks the checker whether the
// marketplace still accepts it. A missing session or a rejected session
// is (false, nil). last_used is touched only when the check succeeds;
// a failed check deliberately leaves it stale as a signal to the UI.
func (f *Freshness) Validate(ctx context.Context, userID, marketplace string) (bool, error) {
	cookies, err := f.vault.RetrieveSession(ctx, userID, marketplace)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		if errors.Is(err, domain.ErrDecryptionFailed) {
			// Undecryptable material can never validate; treat it like
			// a hard rejection so the user is prompted to reconnect.
			f.deactivate(ctx, userID, marketplace)
			return false, nil
		}
		return false, fmt.Errorf("failed to load session for validation: %w", err)
	}

	valid, err := f.checker.CheckSession(ctx, marketplace, cookies)
	if err != nil {
		return false, fmt.Errorf("session check failed: %w", err)
	}

	if !valid {
		f.logger.Info("Marketplace rejected vaulted session",
			slog.String("user_id", userID),
			slog.String("marketplace", marketplace),
		)
		return false, nil
	}

	if err := f.vault.Touch(ctx, userID, marketplace); err != nil {
		f.logger.Warn("Failed to touch session after validation",
			slog.String("user_id", userID),
			slog.String("marketplace", marketplace),
			slog.Any("error", err),
		)
	}

	return true, nil
}

func (f *Freshness) deactivate(ctx context.Context, userID, marketplace string) {
	if err := f.vault.Deactivate(ctx, userID, marketplace); err != nil {
		f.logger.Warn("Failed to deactivate broken session",
			slog.String("user_id", userID),
			slog.String("marketplace", marketplace),
			slog.Any("error", err),
		)
	}
}
