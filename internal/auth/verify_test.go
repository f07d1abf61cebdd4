package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "client-123.apps.googleusercontent.com"

var testKey = mustKey()

func mustKey() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return k
}

type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	k, ok := s[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	return k, nil
}

func signToken(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(testKey)
	require.NoError(t, err)
	return s
}

func validClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   "https://accounts.google.com",
		"aud":   testClientID,
		"sub":   "1234567890",
		"email": "user@example.com",
		"name":  "Test User",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

// testVerifier runs on a fake clock that the retry sleep advances.
func testVerifier(now time.Time) (*Verifier, *int) {
	v := NewVerifier(staticKeys{"k1": &testKey.PublicKey})
	clock := now
	sleeps := 0
	v.now = func() time.Time { return clock }
	v.sleep = func(_ context.Context, d time.Duration) error {
		sleeps++
		clock = clock.Add(d)
		return nil
	}
	return v, &sleeps
}

func TestVerify_Valid(t *testing.T) {
	now := time.Now()
	v, sleeps := testVerifier(now)

	id, err := v.Verify(context.Background(), signToken(t, "k1", validClaims(now)), testClientID)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", id.Subject)
	assert.Equal(t, "user@example.com", id.Email)
	assert.Equal(t, "Test User", id.Name)
	assert.Zero(t, *sleeps)
}

func TestVerify_Rejections(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		kid    string
		mutate func(jwt.MapClaims)
		want   error
	}{
		{"wrong audience", "k1", func(c jwt.MapClaims) { c["aud"] = "someone-else" }, jwt.ErrTokenInvalidAudience},
		{"expired", "k1", func(c jwt.MapClaims) { c["exp"] = now.Add(-2 * time.Minute).Unix() }, jwt.ErrTokenExpired},
		{"wrong issuer", "k1", func(c jwt.MapClaims) { c["iss"] = "evil.example.com" }, jwt.ErrTokenInvalidIssuer},
		{"no expiry", "k1", func(c jwt.MapClaims) { delete(c, "exp") }, jwt.ErrTokenRequiredClaimMissing},
		{"unknown key", "other", func(jwt.MapClaims) {}, ErrUnknownKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, sleeps := testVerifier(now)
			c := validClaims(now)
			tt.mutate(c)

			_, err := v.Verify(context.Background(), signToken(t, tt.kid, c), testClientID)

			var verr *VerificationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, 1, verr.Attempts)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, *sleeps, "only clock skew is retried")
		})
	}
}

func TestVerify_WithinLeeway(t *testing.T) {
	now := time.Now()
	v, _ := testVerifier(now)
	c := validClaims(now)
	c["iat"] = now.Add(30 * time.Second).Unix()

	_, err := v.Verify(context.Background(), signToken(t, "k1", c), testClientID)
	assert.NoError(t, err)
}

func TestVerify_RetriesClockSkew(t *testing.T) {
	now := time.Now()
	v, sleeps := testVerifier(now)
	c := validClaims(now)
	// Issued 61s ahead: one retry delay brings it within the leeway.
	c["iat"] = now.Add(61 * time.Second).Unix()

	id, err := v.Verify(context.Background(), signToken(t, "k1", c), testClientID)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", id.Subject)
	assert.Equal(t, 1, *sleeps)
}

func TestVerify_GivesUpAfterThreeAttempts(t *testing.T) {
	now := time.Now()
	v, sleeps := testVerifier(now)
	c := validClaims(now)
	c["nbf"] = now.Add(10 * time.Minute).Unix()

	_, err := v.Verify(context.Background(), signToken(t, "k1", c), testClientID)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, maxVerifyAttempts, verr.Attempts)
	assert.ErrorIs(t, err, jwt.ErrTokenNotValidYet)
	assert.Equal(t, maxVerifyAttempts-1, *sleeps)
}

func TestVerify_CancelledDuringRetry(t *testing.T) {
	now := time.Now()
	v, _ := testVerifier(now)
	v.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	c := validClaims(now)
	c["nbf"] = now.Add(10 * time.Minute).Unix()

	_, err := v.Verify(context.Background(), signToken(t, "k1", c), testClientID)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Attempts)
}

func TestVerify_RejectsHMAC(t *testing.T) {
	now := time.Now()
	v, _ := testVerifier(now)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(now))
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), s, testClientID)
	assert.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable), err)
}
