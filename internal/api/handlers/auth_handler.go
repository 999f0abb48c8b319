package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/isdelr/ender-local/internal/auth"
	"github.com/rs/zerolog/log"
)

// AuthHandler issues operator tokens.
type AuthHandler struct {
	auth         *auth.Authenticator
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. secureCookie sets the Secure flag
// on the token cookie.
func NewAuthHandler(a *auth.Authenticator, secureCookie bool) *AuthHandler {
	return &AuthHandler{auth: a, secureCookie: secureCookie}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Password string `json:"password"`
}

// Login checks the operator password and returns a JWT, also set as cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Login(payload.Password)
	switch {
	case errors.Is(err, auth.ErrAuthDisabled):
		http.Error(w, "Authentication is not configured", http.StatusNotFound)
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Failed authentication attempt")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to generate JWT")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(auth.TokenTTL),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
