package httpapi

import (
	"errors"
	"net/http"
	"time"

	"littlelungs.org/internal/auth"
	"littlelungs.org/internal/directory"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userBrief `json:"user"`
}

type userBrief struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
}

// handleAuthToken exchanges email/password credentials for a session
// token. Credential and unknown-account failures share one message so
// the endpoint does not reveal which emails exist.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, w, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := a.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, trimSentinel(err, directory.ErrInvalidInput))
		case errors.Is(err, directory.ErrNotFound):
			writeError(w, r, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, directory.ErrInactive):
			writeError(w, r, http.StatusForbidden, "Account is deactivated")
		default:
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}

	token, err := auth.GenerateToken(profile.ID, profile.Role, a.sessionTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(a.sessionTTL),
		User: userBrief{
			ID:       profile.ID,
			Email:    profile.Email,
			FullName: profile.FullName,
			Role:     profile.Role,
		},
	})
}
