package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j, err := New(&Config{Secret: "s3cret", TTL: time.Hour}, WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	token, exp, err := j.Generate("42", "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := j.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, "blogkit", claims.Issuer)

	got, err := ExpiresAt(token)
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))
}

func TestParseExpired(t *testing.T) {
	now := time.Now()
	j, err := New(&Config{Secret: "s3cret", TTL: time.Minute}, WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	token, _, err := j.Generate("1", "")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = j.Parse(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseWrongSecret(t *testing.T) {
	a, _ := New(&Config{Secret: "a"})
	b, _ := New(&Config{Secret: "b"})

	token, _, err := a.Generate("1", "")
	require.NoError(t, err)

	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiresAtUnverified(t *testing.T) {
	_, err := ExpiresAt("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = ExpiresAt(noExp)
	assert.ErrorIs(t, err, ErrNoExpiry)

	_, err = New(&Config{})
	assert.ErrorIs(t, err, ErrEmptySecret)
}
