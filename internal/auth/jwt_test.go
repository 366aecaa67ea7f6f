package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("s3cret", "alice", time.Hour)
	require.NoError(t, err)

	sub, err := ValidateJWT("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestValidateJWT_Rejects(t *testing.T) {
	good, err := GenerateJWT("s3cret", "alice", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateJWT("s3cret", "alice", -time.Minute)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "s3cret", expired},
		{"no expiry", "s3cret", noExpiry},
		{"alg none", "s3cret", unsigned},
		{"garbage", "s3cret", "not.a.token"},
		{"missing secret", "", good},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateJWT_RequiresSecretAndUser(t *testing.T) {
	_, err := GenerateJWT("", "alice", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = GenerateJWT("s3cret", "", time.Hour)
	assert.Error(t, err)
}
