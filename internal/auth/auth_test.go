package auth_test

import (
	"context"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/logger"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestHMACVerifier(t *testing.T) {
	v := auth.NewHMACVerifier("door-secret")
	exp := time.Now().Add(time.Hour).Unix()

	claims, err := v.Verify(context.Background(), sign(t, "door-secret", jwt.MapClaims{
		"sub": "user-1", "preferred_username": "gate-a", "exp": exp,
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "gate-a", claims.Actor())

	_, err = v.Verify(context.Background(), sign(t, "other", jwt.MapClaims{"sub": "user-1", "exp": exp}))
	assert.Error(t, err)

	_, err = v.Verify(context.Background(), sign(t, "door-secret", jwt.MapClaims{"sub": "user-1"}))
	assert.Error(t, err, "tokens without expiry are rejected")

	_, err = v.Verify(context.Background(), sign(t, "door-secret", jwt.MapClaims{"exp": exp}))
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v := auth.NewHMACVerifier("s")
	var gotActor, gotUser string
	h := auth.Middleware(v, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = auth.Actor(r.Context())
		gotUser = auth.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/checkin/list", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"ok":false,"message":"authorization header is missing"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/checkin/list", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/checkin/list", nil)
	req.Header.Set("Authorization", "bearer "+sign(t, "s", jwt.MapClaims{"sub": "u-9", "exp": time.Now().Add(time.Minute).Unix()}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u-9", gotActor)
	assert.Equal(t, "u-9", gotUser)
}
