package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/isdelr/bidhall/internal/models"
	"github.com/stretchr/testify/require"
)

type stubUsers map[string]models.User

func (s stubUsers) GetUserByID(_ context.Context, id string) (models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return models.User{}, apperr.ErrUserNotFound
}

var ana = models.User{ID: "u-1", Name: "Ana", Email: "ana@example.com"}

func newTestManager(ttl time.Duration) *Manager {
	return NewManager("test-secret", ttl, stubUsers{ana.ID: ana})
}

func TestManager_GenerateAndResolve(t *testing.T) {
	m := newTestManager(time.Hour)
	token, err := m.GenerateJWT(ana)
	require.NoError(t, err)

	claims, err := m.ValidateJWT(token)
	require.NoError(t, err)
	require.Equal(t, ana.ID, claims.UserID)

	user, err := m.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, ana, user)
}

func TestManager_Resolve_Rejects(t *testing.T) {
	m := newTestManager(time.Hour)
	expired, err := newTestManager(-time.Minute).GenerateJWT(ana)
	require.NoError(t, err)
	foreign, err := NewManager("other-secret", time.Hour, stubUsers{}).GenerateJWT(ana)
	require.NoError(t, err)
	ghost, err := m.GenerateJWT(models.User{ID: "u-gone", Name: "Ghost"})
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: ana.ID}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"expired":      expired,
		"wrong secret": foreign,
		"deleted user": ghost,
		"alg none":     unsigned,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.Resolve(context.Background(), token)
			require.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	require.Equal(t, "from-cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", TokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	m := newTestManager(time.Hour)
	token, err := m.GenerateJWT(ana)
	require.NoError(t, err)

	var seen *models.User
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFromContext(r.Context()); ok {
			seen = &u
		}
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(mw func(http.Handler) http.Handler, bearer string) *httptest.ResponseRecorder {
		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if bearer != "" {
			r.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, r)
		return rec
	}

	rec := serve(m.Required, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"Unauthorized"`)

	rec = serve(m.Required, token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, ana.ID, seen.ID)

	rec = serve(m.Optional, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, seen)

	rec = serve(m.Optional, "bogus")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, seen)

	rec = serve(m.Optional, token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
}
