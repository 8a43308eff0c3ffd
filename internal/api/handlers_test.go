package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchdeck/searchdeck/internal/config"
	"github.com/searchdeck/searchdeck/internal/database"
	"github.com/searchdeck/searchdeck/internal/users"
)

func newTestAPI(t *testing.T) (*Api, users.Store) {
	t.Helper()

	cfg := &config.Config{APIPort: 8081, Environment: "test"}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	cfg.Database.Driver = "sqlite3"
	cfg.Database.DSN = ":memory:"
	cfg.Database.MaxRetries = 1
	cfg.CORS.AllowedOrigins = []string{"http://localhost:*"}

	db, err := database.Open(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	store := users.NewSQLStore(db)
	api, err := New(cfg, slog.New(slog.DiscardHandler), store)
	require.NoError(t, err)
	return api, store
}

func doJSON(t *testing.T, api *Api, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	api.Router.ServeHTTP(w, r)
	return w
}

func tokenCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatal("no token cookie in response")
	return nil
}

func TestRegister(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodPost, "/api/user/register",
		`{"username":"ann","email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Success bool         `json:"success"`
		User    users.Public `json:"user"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "ann", body.User.Username)
	assert.Equal(t, "ann@x.com", body.User.Email)
	assert.NotZero(t, body.User.ID)

	cookie := tokenCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	// The issued token decodes back to the created user.
	claims, err := api.tokens.Verify(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, body.User.ID, claims.UserID)
	assert.Equal(t, "ann@x.com", claims.Email)
}

func TestRegisterAcceptsNameAlias(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodPost, "/api/user/register",
		`{"name":"ann","email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		User users.Public `json:"user"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ann", body.User.Username)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	api, store := newTestAPI(t)

	payload := `{"username":"ann","email":"ann@x.com","password":"secret123"}`
	w := doJSON(t, api, http.MethodPost, "/api/user/register", payload)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, api, http.MethodPost, "/api/user/register", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "User already exists", body["message"])

	// No second row was inserted.
	user, err := store.GetByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, "ann", user.Username)
}

func TestRegisterValidation(t *testing.T) {
	api, _ := newTestAPI(t)

	tests := []struct {
		name    string
		payload string
	}{
		{"missing username", `{"email":"ann@x.com","password":"secret123"}`},
		{"bad email", `{"username":"ann","email":"not-an-email","password":"secret123"}`},
		{"short password", `{"username":"ann","email":"ann@x.com","password":"short"}`},
		{"malformed json", `{"username":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, api, http.MethodPost, "/api/user/register", tt.payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestLogin(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodPost, "/api/user/register",
		`{"username":"ann","email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, api, http.MethodPost, "/api/user/login",
		`{"email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool         `json:"success"`
		User    users.Public `json:"user"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "ann@x.com", body.User.Email)
	tokenCookie(t, w)
}

func TestLoginEnumerationResistance(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodPost, "/api/user/register",
		`{"username":"ann","email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	wrongPassword := doJSON(t, api, http.MethodPost, "/api/user/login",
		`{"email":"ann@x.com","password":"wrong-password"}`)
	unknownEmail := doJSON(t, api, http.MethodPost, "/api/user/login",
		`{"email":"nobody@x.com","password":"wrong-password"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	// Bit-identical bodies: an attacker cannot tell the cases apart.
	assert.Equal(t, wrongPassword.Body.Bytes(), unknownEmail.Body.Bytes())
}

func TestVerifyToken(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodPost, "/api/user/register",
		`{"username":"ann","email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	cookie := tokenCookie(t, w)

	w = doJSON(t, api, http.MethodGet, "/api/user/verify-token", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool         `json:"success"`
		User    users.Public `json:"user"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "ann@x.com", body.User.Email)
}

func TestVerifyTokenViaBearerHeader(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodPost, "/api/user/register",
		`{"username":"ann","email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	cookie := tokenCookie(t, w)

	r := httptest.NewRequest(http.MethodGet, "/api/user/verify-token", nil)
	r.Header.Set("Authorization", "Bearer "+cookie.Value)
	rec := httptest.NewRecorder()
	api.Router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyTokenWithoutToken(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodGet, "/api/user/verify-token", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyTokenAfterUserDeleted(t *testing.T) {
	api, store := newTestAPI(t)

	w := doJSON(t, api, http.MethodPost, "/api/user/register",
		`{"username":"ann","email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	cookie := tokenCookie(t, w)

	user, err := store.GetByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), user.ID))

	// The token still carries a valid signature, but the row is gone.
	w = doJSON(t, api, http.MethodGet, "/api/user/verify-token", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodPost, "/api/user/logout", "")
	require.Equal(t, http.StatusOK, w.Code)

	cookie := tokenCookie(t, w)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestHeartbeat(t *testing.T) {
	api, _ := newTestAPI(t)

	w := doJSON(t, api, http.MethodGet, "/heartbeat", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
