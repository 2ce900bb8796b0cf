package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims map[string]interface{}) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	message := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return message + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, string, bool) {
	t.Helper()

	var gotUserID string
	var called bool
	handler := NewAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotUserID, _ = GetUserID(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/sync/pull", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, gotUserID, called
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token := signToken(t, testSecret, map[string]interface{}{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	w, userID, called := runAuth(t, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, "user-123", userID)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	w, _, called := runAuth(t, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body["error"])
}

func TestAuthMiddleware_WrongSignature(t *testing.T) {
	token := signToken(t, "other-secret", map[string]interface{}{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w, _, called := runAuth(t, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, map[string]interface{}{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	w, _, called := runAuth(t, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthMiddleware_MissingSubject(t *testing.T) {
	token := signToken(t, testSecret, map[string]interface{}{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w, _, called := runAuth(t, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthMiddleware_MalformedToken(t *testing.T) {
	w, _, called := runAuth(t, "Bearer not.a.jwt")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}
