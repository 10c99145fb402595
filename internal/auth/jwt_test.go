package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestVerify_ValidToken(t *testing.T) {
	t.Parallel()

	token, err := IssueToken(testSecret, "user-42", "authenticated", time.Hour)
	require.NoError(t, err)

	id, err := NewJWTVerifier(testSecret, "authenticated").Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.UserID)
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	expired, err := IssueToken(testSecret, "user-1", "", -time.Hour)
	require.NoError(t, err)

	wrongSecret, err := IssueToken("other-secret", "user-1", "", time.Hour)
	require.NoError(t, err)

	wrongAudience, err := IssueToken(testSecret, "user-1", "service_role", time.Hour)
	require.NoError(t, err)

	noSubject, err := IssueToken(testSecret, "", "authenticated", time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := []struct {
		name     string
		audience string
		token    string
		want     error
	}{
		{name: "empty", token: "", want: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", want: ErrInvalidToken},
		{name: "expired", token: expired, want: ErrInvalidToken},
		{name: "wrong secret", token: wrongSecret, want: ErrInvalidToken},
		{name: "wrong audience", audience: "authenticated", token: wrongAudience, want: ErrInvalidToken},
		{name: "no subject", audience: "authenticated", token: noSubject, want: ErrMissingSubject},
		{name: "no expiry", token: noExpiry, want: ErrInvalidToken},
		{name: "unexpected algorithm", token: hs512, want: ErrInvalidToken},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewJWTVerifier(testSecret, tc.audience).Verify(context.Background(), tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerify_RoleClaim(t *testing.T) {
	t.Parallel()

	token, err := IssueRoleToken(testSecret, "fleet-sync", RoleFleet, "authenticated", time.Hour)
	require.NoError(t, err)

	id, err := NewJWTVerifier(testSecret, "authenticated").Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, RoleFleet, id.Role)
}
