package hcaptcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, body string) *Verifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "203.0.113.9", r.PostForm.Get("remoteip"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return &Verifier{Secret: "s3cret", VerifyURL: srv.URL, HTTPClient: srv.Client()}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"accepted", `{"success":true,"hostname":"hangarlinks.local"}`, ""},
		{"rejected with codes", `{"success":false,"error-codes":["invalid-input-response","timeout-or-duplicate"]}`, "invalid-input-response, timeout-or-duplicate"},
		{"rejected bare", `{"success":false}`, "token rejected"},
		{"not json", `<html>bad gateway</html>`, "unexpected response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestVerifier(t, tt.body).Verify(context.Background(), "token", "203.0.113.9")
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestVerifyRejectedErrorType(t *testing.T) {
	err := newTestVerifier(t, `{"success":false,"error-codes":["bad-request"]}`).
		Verify(context.Background(), "token", "203.0.113.9")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, []string{"bad-request"}, rejected.Codes)
}

func TestVerifyRequiresTokenAndSecret(t *testing.T) {
	v := &Verifier{}
	assert.False(t, v.Enabled())
	assert.ErrorIs(t, v.Verify(context.Background(), "", ""), ErrNoToken)
	assert.ErrorIs(t, v.Verify(context.Background(), "token", ""), ErrNotConfigured)
}
