package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/bidhall/internal/api/respond"
	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/isdelr/bidhall/internal/auth"
	"github.com/isdelr/bidhall/internal/models"
	"github.com/isdelr/bidhall/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for registration, sessions and profiles.
type UserHandler struct {
	service      services.UserServiceProvider
	tokens       *auth.Manager
	secureCookie bool
}

// NewUserHandler creates a new UserHandler. secureCookie sets the Secure
// flag on the session cookie and should be true in production.
func NewUserHandler(service services.UserServiceProvider, tokens *auth.Manager, secureCookie bool) *UserHandler {
	return &UserHandler{service: service, tokens: tokens, secureCookie: secureCookie}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ProfilePayload defines the structure for profile updates.
type ProfilePayload struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	User  models.PublicUser `json:"user"`
	Token string            `json:"token"`
}

// Register handles new user registration and starts a session.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decode(w, r, &payload); err != nil {
		respond.Error(w, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		respond.Error(w, err)
		return
	}
	log.Info().Str("user_id", user.ID).Msg("User registered")

	h.startSession(w, user, http.StatusCreated)
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := decode(w, r, &payload); err != nil {
		respond.Error(w, err)
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		respond.Error(w, err)
		return
	}

	h.startSession(w, user, http.StatusOK)
}

// Logout clears the session cookie.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *UserHandler) startSession(w http.ResponseWriter, user models.User, status int) {
	token, err := h.tokens.GenerateJWT(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		respond.Error(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  time.Now().Add(h.tokens.TTL()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	respond.JSON(w, status, SessionResponse{User: user.Public(), Token: token})
}

// GetMe returns the user the request's session belongs to.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.ErrUnauthorized)
		return
	}
	respond.JSON(w, http.StatusOK, user.Public())
}

// UpdateMe changes the current user's name and email.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	current, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.ErrUnauthorized)
		return
	}

	var payload ProfilePayload
	if err := decode(w, r, &payload); err != nil {
		respond.Error(w, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), current.ID, payload.Name, payload.Email)
	if err != nil {
		log.Warn().Err(err).Str("user_id", current.ID).Msg("Failed to update user")
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, user.Public())
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, user.Public())
}
