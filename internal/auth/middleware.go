package auth

import (
	"errors"
	"net/http"

	"github.com/markbates/goth/gothic"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/petermazzocco/photocard-catalog/internal/logger"
	"github.com/petermazzocco/photocard-catalog/models"
)

const (
	SessionName   = "_gothic_session"
	sessionUserID = "user_id"
)

// UserMiddleware resolves the session cookie to a user row and stores the caller's Session in the
// request context.
func UserMiddleware(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := gothic.Store.Get(r, SessionName)
			if err != nil {
				logger.For(r.Context()).WithError(err).Warn("failed to read session")
				http.Error(w, "Not Authorized", http.StatusUnauthorized)
				return
			}

			userID, ok := session.Values[sessionUserID].(uint)
			if !ok || userID == 0 {
				http.Error(w, "Not Authorized", http.StatusUnauthorized)
				return
			}

			var user models.User
			if err := db.WithContext(r.Context()).First(&user, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					http.Error(w, "Not Authorized", http.StatusUnauthorized)
					return
				}
				logger.For(r.Context()).WithError(err).Error("failed to load session user")
				http.Error(w, "Database error", http.StatusInternalServerError)
				return
			}

			ctx := WithSession(r.Context(), Session{UserID: user.ID, Role: user.Role})
			ctx = logger.NewContextWithFields(ctx, logrus.Fields{"user_id": user.ID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose session ranks below role.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireAtLeast(r.Context(), role); err != nil {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
