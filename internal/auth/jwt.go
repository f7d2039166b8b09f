package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/bidhall/internal/api/respond"
	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/isdelr/bidhall/internal/models"
	"github.com/rs/zerolog/log"
)

// CookieName is the cookie the session token is stored in.
const CookieName = "token"

// Claims defines the JWT claims structure.
type Claims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// UserLookup loads the user a token was issued to.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

type contextKey string

// userContextKey is the context key for the resolved user.
const userContextKey = contextKey("user")

// Manager issues session tokens and resolves them back to users.
type Manager struct {
	secret []byte
	ttl    time.Duration
	users  UserLookup
}

// NewManager creates a Manager signing with secret.
func NewManager(secret string, ttl time.Duration, users UserLookup) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, users: users}
}

// TTL returns how long issued tokens stay valid.
func (m *Manager) TTL() time.Duration { return m.ttl }

// GenerateJWT creates a new JWT for a given user.
func (m *Manager) GenerateJWT(user models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateJWT parses and validates a JWT string.
func (m *Manager) ValidateJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Resolve maps a session token to the user it was issued to. Tokens that
// fail validation or name a user that no longer exists yield ErrUnauthorized.
func (m *Manager) Resolve(ctx context.Context, tokenStr string) (models.User, error) {
	if tokenStr == "" {
		return models.User{}, apperr.ErrUnauthorized
	}
	claims, err := m.ValidateJWT(tokenStr)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected session token")
		return models.User{}, apperr.ErrUnauthorized
	}

	user, err := m.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return models.User{}, apperr.ErrUnauthorized
		}
		return models.User{}, err
	}
	return user, nil
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Required rejects requests without a resolvable session.
func (m *Manager) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.Resolve(r.Context(), TokenFromRequest(r))
		if err != nil {
			respond.Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Optional attaches the user when the request carries a valid session and
// passes anonymous requests through unchanged.
func (m *Manager) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.Resolve(r.Context(), token)
		if err != nil {
			if apperr.KindOf(err) != apperr.KindAuth {
				respond.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user attached by Required or Optional.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}
