package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"github.com/petermazzocco/photocard-catalog/internal/config"
)

const sessionMaxAge = 86400 * 30

// Setup registers the OAuth providers and installs the cookie store used by gothic and UserMiddleware.
func Setup(cfg config.AuthConfig) *sessions.CookieStore {
	goth.UseProviders(google.New(cfg.GoogleKey, cfg.GoogleSecret, cfg.CallbackURL))

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.MaxAge(sessionMaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.SecureCookies
	gothic.Store = store
	return store
}

// SaveUser binds userID to the caller's session cookie.
func SaveUser(w http.ResponseWriter, r *http.Request, userID uint) error {
	session, err := gothic.Store.Get(r, SessionName)
	if err != nil {
		return err
	}
	session.Values[sessionUserID] = userID
	return session.Save(r, w)
}
