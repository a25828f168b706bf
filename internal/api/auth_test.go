package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_verifyToken(t *testing.T) {
	app, _ := newTestApp(t)

	t.Run("valid token", func(t *testing.T) {
		cookie := signedToken(t, "viewer1", "Alice")

		viewer, err := app.verifyToken(cookie.Value)
		assert.NoError(t, err, "expected valid token to verify")
		assert.Equal(t, "viewer1", viewer.Id)
		assert.Equal(t, "Alice", viewer.DisplayName)
	})

	t.Run("display name falls back to id", func(t *testing.T) {
		cookie := signedToken(t, "viewer1", "")

		viewer, err := app.verifyToken(cookie.Value)
		assert.NoError(t, err)
		assert.Equal(t, "viewer1", viewer.DisplayName)
	})

	t.Run("expired token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			viewerIdClaim: "viewer1",
			"exp":         time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString(testSigningKey)
		require.NoError(t, err)

		_, err = app.verifyToken(signed)
		assert.Error(t, err, "expected expired token to be rejected")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			viewerIdClaim: "viewer1",
		})
		signed, err := token.SignedString([]byte("other_secret"))
		require.NoError(t, err)

		_, err = app.verifyToken(signed)
		assert.Error(t, err, "expected token with wrong key to be rejected")
	})

	t.Run("missing viewer id claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			nameClaim: "Alice",
		})
		signed, err := token.SignedString(testSigningKey)
		require.NoError(t, err)

		_, err = app.verifyToken(signed)
		assert.Error(t, err, "expected token without viewer id to be rejected")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := app.verifyToken("not.a.token")
		assert.Error(t, err)
	})
}
