package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetshop/apiserver/internal/auth"
)

func TestRegister_ReturnsBearerToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "a@x.com",
		"password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)

	claims, err := app.tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestRegister_Duplicate(t *testing.T) {
	app := newTestApp(t)
	app.registerToken(t, "a@x.com", "", "")

	rec := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "a@x.com",
		"password": "Secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decodeError(t, rec))
}

func TestRegister_Validation(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "Secret123"}},
		{"bad email", map[string]string{"email": "not-an-email", "password": "Secret123"}},
		{"missing password", map[string]string{"email": "a@x.com"}},
		{"short password", map[string]string{"email": "a@x.com", "password": "abc"}},
		{"unknown role", map[string]string{"email": "a@x.com", "password": "Secret123", "role": "superuser"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/api/auth/register", "", tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestRegister_AdminSecret(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":        "boss@x.com",
		"password":     "Secret123",
		"role":         "admin",
		"admin_secret": "wrong",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid admin secret", decodeError(t, rec))

	token := app.registerToken(t, "boss@x.com", "admin", testAdminSecret)
	claims, err := app.tokens.Verify(token)
	require.NoError(t, err)

	user, err := app.userRepo.GetByID(t.Context(), claims.Subject)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)
}

func TestLogin_JSON(t *testing.T) {
	app := newTestApp(t)
	app.registerToken(t, "a@x.com", "", "")

	rec := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "Secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogin_Form(t *testing.T) {
	app := newTestApp(t)
	app.registerToken(t, "a@x.com", "", "")

	form := url.Values{}
	form.Set("username", "a@x.com")
	form.Set("password", "Secret123")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	app := newTestApp(t)
	app.registerToken(t, "a@x.com", "", "")

	wrongPassword := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "Wrong",
	})
	unknownEmail := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@x.com",
		"password": "Secret123",
	})

	// Identical outcome for wrong password and unknown email.
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Equal(t, "Invalid credentials", decodeError(t, wrongPassword))
}

func TestAccessGuard_StateMachine(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.registerToken(t, "boss@x.com", "admin", testAdminSecret)
	userToken := app.registerToken(t, "user@x.com", "", "")

	t.Run("missing header", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/sweets", "", map[string]any{"name": "Ladoo", "price": 1.0})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Missing authorization header", decodeError(t, rec))
	})

	t.Run("no bearer prefix", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sweets", strings.NewReader(`{"name":"Ladoo","price":1}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Token "+adminToken)
		rec := httptest.NewRecorder()
		app.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid token format", decodeError(t, rec))
	})

	t.Run("tampered token", func(t *testing.T) {
		parts := strings.Split(adminToken, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]
		rec := app.do(t, http.MethodPost, "/api/sweets", tampered, map[string]any{"name": "Ladoo", "price": 1.0})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid token", decodeError(t, rec))
	})

	t.Run("expired token", func(t *testing.T) {
		expired := issueExpiredToken(t, "some-subject")
		rec := app.do(t, http.MethodPost, "/api/sweets", expired, map[string]any{"name": "Ladoo", "price": 1.0})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid token", decodeError(t, rec))
	})

	t.Run("valid token, no account", func(t *testing.T) {
		orphan, err := app.tokens.Issue("no-such-account", "ghost@x.com")
		require.NoError(t, err)

		rec := app.do(t, http.MethodPost, "/api/sweets", orphan, map[string]any{"name": "Ladoo", "price": 1.0})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "User not found", decodeError(t, rec))
	})

	t.Run("insufficient role", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/sweets", userToken, map[string]any{"name": "Ladoo", "price": 1.0})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Admin privileges required", decodeError(t, rec))
	})

	t.Run("authorized", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/sweets", adminToken, map[string]any{
			"name": "Ladoo", "price": 1.0, "quantity": 3,
		})
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func issueExpiredToken(t *testing.T, subject string) string {
	t.Helper()
	// Same secret, already past expiry.
	svc, err := auth.NewTokenService(testSecret, "HS256", time.Millisecond)
	require.NoError(t, err)
	token, err := svc.Issue(subject, "")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	return token
}
