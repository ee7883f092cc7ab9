package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/sweetshop/apiserver/internal/auth"
	"github.com/sweetshop/apiserver/internal/services"
	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
)

// AuthHandler provides the authentication endpoints and the access guard.
type AuthHandler struct {
	authService *services.AuthService
	tokens      *auth.TokenService
	log         zerolog.Logger
}

func NewAuthHandler(authService *services.AuthService, tokens *auth.TokenService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, tokens: tokens, log: log}
}

// AuthRouter registers the auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

// RegisterRequest is the registration payload. Role defaults to "user";
// requesting "admin" additionally requires the pre-shared admin secret.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	Role        string `json:"role" validate:"omitempty,oneof=admin user staff"`
	AdminSecret string `json:"admin_secret"`
}

// LoginRequest is the JSON login payload. Form logins map username→email.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates an account and returns a bearer token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if msg := validateRequest(req); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	token, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Role, req.AdminSecret)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "Email already registered")
		case errors.Is(err, services.ErrBadAdminSecret):
			writeError(w, http.StatusForbidden, "Invalid admin secret")
		default:
			h.log.Error().Err(err).Msg("registration failed")
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Login verifies credentials and returns a bearer token. The body may be
// JSON {email, password} or form data with username/password fields.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLogin(w, r)
	if !ok {
		return
	}

	token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (LoginRequest, bool) {
	var req LoginRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid form body")
			return LoginRequest{}, false
		}
		req.Email = r.PostFormValue("username")
		if req.Email == "" {
			req.Email = r.PostFormValue("email")
		}
		req.Password = r.PostFormValue("password")
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid request body")
			return LoginRequest{}, false
		}
	}

	if msg := validateRequest(req); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return LoginRequest{}, false
	}
	return req, true
}

// Authenticate is the access guard. It extracts the bearer token, verifies
// it, resolves the subject to a live account, and injects the account into
// the request context. The role on the account is read fresh from the store
// on every request; historical token claims are never trusted for it.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Invalid token format")
			return
		}

		claims, err := h.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			h.log.Debug().Err(err).Msg("token rejected")
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := h.authService.GetByID(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Authentication failure: the subject no longer maps to an
				// account. Distinct wording for diagnostics only.
				writeError(w, http.StatusUnauthorized, "User not found")
				return
			}
			h.log.Error().Err(err).Msg("account lookup failed")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithAccount(r.Context(), user)))
	})
}

// RequireAdmin allows only accounts whose current role is admin. Must be
// mounted after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := accountFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}
		if user.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
