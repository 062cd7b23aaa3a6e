package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("secret", "507f1f77bcf86cd799439011", "alice", time.Hour)
	require.NoError(t, err)

	id, name, err := ParseJWT("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "507f1f77bcf86cd799439011", id)
	assert.Equal(t, "alice", name)
}

func TestParseJWTRejects(t *testing.T) {
	valid, err := GenerateJWT("secret", "u1", "alice", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateJWT("secret", "u1", "alice", -time.Minute)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: tokenIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
		want   error
	}{
		{"empty", "secret", "", ErrInvalidToken},
		{"garbage", "secret", "not.a.token", ErrInvalidToken},
		{"wrong secret", "other", valid, ErrInvalidToken},
		{"expired", "secret", expired, ErrExpiredToken},
		{"unsigned", "secret", noneAlg, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseJWT(tt.secret, tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRoomCodeGenerator(t *testing.T) {
	gen, err := NewRoomCodeGenerator()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := gen()
		assert.Len(t, code, 6)
		assert.True(t, IsValidRoomCode(code), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestIsValidRoomCode(t *testing.T) {
	assert.True(t, IsValidRoomCode("AB12CD"))
	assert.False(t, IsValidRoomCode("ab12cd"))
	assert.False(t, IsValidRoomCode("AB12C"))
	assert.False(t, IsValidRoomCode("AB12CD7"))
	assert.False(t, IsValidRoomCode("AB-2CD"))
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))

	log, err = NewLogger("")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1))

	_, err = NewLogger("loud")
	assert.Error(t, err)
}
