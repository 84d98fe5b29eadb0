package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instafly/instafly/internal/app/config"
)

func newTestTokenService(secret string, lifetimeSec int) *TokenServiceImpl {
	return NewTokenService(config.AppConfig{
		TokenSecretKey:   secret,
		TokenLifetimeSec: lifetimeSec,
	})
}

func TestTokenServiceImpl_RoundTrip(t *testing.T) {
	ts := newTestTokenService("super-duper-secret", 3600)

	token, err := ts.GenerateToken("customer@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	email, err := ts.GetUserEmail(token)
	require.NoError(t, err)
	assert.Equal(t, "customer@example.com", email)
}

func TestTokenServiceImpl_GetUserEmail(t *testing.T) {
	ts := newTestTokenService("super-duper-secret", 3600)

	expired := newTestTokenService("super-duper-secret", -60)
	expiredToken, err := expired.GenerateToken("customer@example.com")
	require.NoError(t, err)

	otherKey := newTestTokenService("different-secret-key", 3600)
	foreignToken, err := otherKey.GenerateToken("customer@example.com")
	require.NoError(t, err)

	badEmailToken, err := ts.GenerateToken("not-an-email")
	require.NoError(t, err)

	tests := []struct {
		name        string
		tokenString string
		wantErr     string
	}{
		{
			name:        "garbage token",
			tokenString: "invalid-token",
			wantErr:     "failed to parse token",
		},
		{
			name:        "expired token",
			tokenString: expiredToken,
			wantErr:     "failed to parse token",
		},
		{
			name:        "token signed with another key",
			tokenString: foreignToken,
			wantErr:     "failed to parse token",
		},
		{
			name:        "invalid email claim",
			tokenString: badEmailToken,
			wantErr:     "invalid email in token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.GetUserEmail(tt.tokenString)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
