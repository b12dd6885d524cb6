package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T) (*gin.Engine, *AuthMiddleware) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testHistory(t)
	auth, err := NewAuthMiddleware(store)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/api/auth/login", auth.LoginHandler)
	r.POST("/api/auth/setup", auth.SetupHandler)
	r.POST("/api/auth/logout", auth.LogoutHandler)
	r.GET("/api/auth/status", auth.StatusHandler)
	r.GET("/api/protected", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, auth
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "printd_auth" {
			return c
		}
	}
	t.Fatal("auth cookie not set")
	return nil
}

func TestAuth_OpenUntilPasswordConfigured(t *testing.T) {
	r, _ := newAuthServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/protected", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/auth/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status AuthStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.SetupRequired)
	assert.False(t, status.Authenticated)
}

func TestAuth_SetupThenEnforced(t *testing.T) {
	r, _ := newAuthServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)
	cookie := authCookie(t, w)

	// No token: rejected.
	w = doJSON(t, r, http.MethodGet, "/api/protected", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The setup cookie authenticates.
	w = doJSON(t, r, http.MethodGet, "/api/protected", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_SetupRejectsShortPassword(t *testing.T) {
	r, _ := newAuthServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuth_SetupOnlyOnce(t *testing.T) {
	r, _ := newAuthServer(t)

	require.Equal(t, http.StatusOK,
		doJSON(t, r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "hunter22"}).Code)

	w := doJSON(t, r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "another1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuth_LoginFlow(t *testing.T) {
	r, _ := newAuthServer(t)

	doJSON(t, r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "hunter22"})

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", LoginRequest{Password: "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", LoginRequest{Password: "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)
	cookie := authCookie(t, w)

	w = doJSON(t, r, http.MethodGet, "/api/protected", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_BearerHeaderAccepted(t *testing.T) {
	r, auth := newAuthServer(t)

	doJSON(t, r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "hunter22"})

	token, err := auth.generateToken()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_GarbageTokenRejected(t *testing.T) {
	r, _ := newAuthServer(t)

	doJSON(t, r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "hunter22"})

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_SecretPersistsAcrossRestart(t *testing.T) {
	store := testHistory(t)

	first, err := NewAuthMiddleware(store)
	require.NoError(t, err)
	token, err := first.generateToken()
	require.NoError(t, err)

	second, err := NewAuthMiddleware(store)
	require.NoError(t, err)
	claims, err := second.validateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.Authenticated)
}
