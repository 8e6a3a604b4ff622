package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(header string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return r
}

func TestAuthenticate(t *testing.T) {
	a := NewAuthenticator("s3cret")
	token, err := a.Issue("user-1", time.Hour)
	require.NoError(t, err)

	userID, err := a.Authenticate(request("Bearer " + token))
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	userID, err = a.Authenticate(request(""))
	require.NoError(t, err)
	assert.Empty(t, userID)

	r := request("")
	r.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: token})
	userID, err = a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestAuthenticateRejects(t *testing.T) {
	a := NewAuthenticator("s3cret")

	expired, err := a.Issue("user-1", -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewAuthenticator("other").Issue("user-1", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"other key":  otherKey,
		"no subject": noSubject,
		"wrong alg":  wrongAlg,
		"garbage":    "not-a-token",
	} {
		_, err := a.Authenticate(request("Bearer " + token))
		assert.True(t, errors.Is(err, ErrUnauthenticated), name)
	}
}

func TestAuthenticateWithoutSecret(t *testing.T) {
	a := NewAuthenticator("")
	assert.False(t, a.Enabled())

	userID, err := a.Authenticate(request(""))
	require.NoError(t, err)
	assert.Empty(t, userID)

	_, err = a.Authenticate(request("Bearer anything"))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = a.Issue("user-1", time.Hour)
	assert.Error(t, err)
}
