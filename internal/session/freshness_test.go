package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
)

type fakeVault struct {
	cookies     []byte
	retrieveErr error

	touched     int
	deactivated int
}

func (v *fakeVault) RetrieveSession(_ context.Context, _, _ string) ([]byte, error) {
	if v.retrieveErr != nil {
		return nil, v.retrieveErr
	}
	return v.cookies, nil
}

func (v *fakeVault) Touch(_ context.Context, _, _ string) error {
	v.touched++
	return nil
}

func (v *fakeVault) Deactivate(_ context.Context, _, _ string) error {
	v.deactivated++
	return nil
}

type fakeChecker struct {
	valid bool
	err   error

	gotMarketplace string
	gotCookies     []byte
}

func (c *fakeChecker) CheckSession(_ context.Context, marketplace string, cookies []byte) (bool, error) {
	c.gotMarketplace = marketplace
	c.gotCookies = cookies
	return c.valid, c.err
}

func newTestFreshness(vault SessionVault, checker Checker) *Freshness {
	return NewFreshness(vault, checker, slog.New(slog.DiscardHandler))
}

func TestFreshness_ValidSessionTouchesLastUsed(t *testing.T) {
	vault := &fakeVault{cookies: []byte(`[{"name":"sid","value":"abc"}]`)}
	checker := &fakeChecker{valid: true}
	f := newTestFreshness(vault, checker)

	valid, err := f.Validate(context.Background(), "user-1", "ebay")

	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, 1, vault.touched)
	assert.Equal(t, "ebay", checker.gotMarketplace)
	assert.Equal(t, vault.cookies, checker.gotCookies)
}

func TestFreshness_RejectedSessionLeavesLastUsedStale(t *testing.T) {
	vault := &fakeVault{cookies: []byte(`[]`)}
	checker := &fakeChecker{valid: false}
	f := newTestFreshness(vault, checker)

	valid, err := f.Validate(context.Background(), "user-1", "poshmark")

	require.NoError(t, err)
	assert.False(t, valid)
	assert.Zero(t, vault.touched)
}

func TestFreshness_MissingSessionIsInvalidNotError(t *testing.T) {
	vault := &fakeVault{retrieveErr: domain.ErrNotFound}
	f := newTestFreshness(vault, &fakeChecker{valid: true})

	valid, err := f.Validate(context.Background(), "user-1", "ebay")

	require.NoError(t, err)
	assert.False(t, valid)
}

func TestFreshness_CorruptSessionDeactivates(t *testing.T) {
	vault := &fakeVault{retrieveErr: domain.ErrDecryptionFailed}
	f := newTestFreshness(vault, &fakeChecker{valid: true})

	valid, err := f.Validate(context.Background(), "user-1", "ebay")

	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, 1, vault.deactivated)
	assert.Zero(t, vault.touched)
}

func TestFreshness_CheckerFailureIsAnError(t *testing.T) {
	vault := &fakeVault{cookies: []byte(`[]`)}
	checker := &fakeChecker{err: assert.AnError}
	f := newTestFreshness(vault, checker)

	_, err := f.Validate(context.Background(), "user-1", "ebay")

	assert.Error(t, err)
	assert.Zero(t, vault.touched)
}

func TestHTTPChecker_CheckSession(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantValid  bool
		wantErr    bool
	}{
		{
			name:       "accepted session",
			statusCode: http.StatusOK,
			body:       `{"valid":true}`,
			wantValid:  true,
		},
		{
			name:       "rejected verdict",
			statusCode: http.StatusOK,
			body:       `{"valid":false}`,
			wantValid:  false,
		},
		{
			name:       "unauthorized means invalid",
			statusCode: http.StatusUnauthorized,
			body:       `{}`,
			wantValid:  false,
		},
		{
			name:       "server error propagates",
			statusCode: http.StatusInternalServerError,
			body:       `{}`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/sessions/check", r.URL.Path)
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			checker := NewHTTPChecker(srv.URL, 5*time.Second)
			valid, err := checker.CheckSession(context.Background(), "ebay", []byte(`[{"name":"sid"}]`))

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, valid)
		})
	}
}
