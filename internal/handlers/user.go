package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/markbates/goth/gothic"
	"gorm.io/gorm"

	"github.com/petermazzocco/photocard-catalog/internal/auth"
	"github.com/petermazzocco/photocard-catalog/internal/catalog"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/internal/logger"
	"github.com/petermazzocco/photocard-catalog/models"
)

// UserLoginHandler completes the OAuth flow, creating the user on first login, and binds the user
// to the session cookie. New users start with RoleUser.
func UserLoginHandler(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	log := logger.For(r.Context())

	user, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		log.WithError(err).Warn("oauth callback failed")
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	var dbUser models.User
	if err := db.WithContext(r.Context()).Where("email = ?", user.Email).First(&dbUser).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Error("failed to look up user")
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		dbUser = models.User{
			Name:  user.Name,
			Email: user.Email,
			Role:  models.RoleUser,
		}
		if err := db.WithContext(r.Context()).Create(&dbUser).Error; err != nil {
			log.WithError(err).Error("failed to create user")
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}
		log.WithField("user_id", dbUser.ID).Info("user created")
	}

	if err := auth.SaveUser(w, r, dbUser.ID); err != nil {
		log.WithError(err).Error("failed to save session")
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

type userResponse struct {
	models.User
	RoleName string `json:"roleName"`
}

func GetUserHandler(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	session, ok := auth.CurrentSession(r.Context())
	if !ok {
		http.Error(w, "Not Authorized", http.StatusUnauthorized)
		return
	}

	var user models.User
	if err := db.WithContext(r.Context()).First(&user, session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user, RoleName: user.Role.String()})
}

type roleRequest struct {
	Role string `json:"role"`
}

// SetUserRoleHandler changes another user's role. Admin only.
func SetUserRoleHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errs.Validation("invalid request body: %v", err))
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		writeError(w, r, errs.Validation("unknown role %q", req.Role))
		return
	}
	if err := svc.SetUserRole(r.Context(), id, role); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
