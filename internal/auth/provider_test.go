package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/markbates/goth/gothic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petermazzocco/photocard-catalog/internal/config"
)

func TestSetup(t *testing.T) {
	store := Setup(config.AuthConfig{
		SessionSecret: "0123456789abcdef0123456789abcdef",
		CallbackURL:   "http://localhost:3000/auth/google/callback",
		SecureCookies: true,
	})

	assert.Same(t, store, gothic.Store)
	assert.Equal(t, "/", store.Options.Path)
	assert.True(t, store.Options.HttpOnly)
	assert.True(t, store.Options.Secure)
	assert.Equal(t, sessionMaxAge, store.Options.MaxAge)

	t.Run("saved user id survives a round trip", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, SaveUser(rec, httptest.NewRequest(http.MethodGet, "/", nil), 7))

		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)

		next := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		for _, c := range cookies {
			next.AddCookie(c)
		}
		session, err := gothic.Store.Get(next, SessionName)
		require.NoError(t, err)
		assert.Equal(t, uint(7), session.Values[sessionUserID])
	})
}
