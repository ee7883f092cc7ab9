package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sweetshop/apiserver/types"
)

type contextKey string

const contextAccountKey contextKey = "account"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// validateRequest runs struct validation and returns a user-facing message,
// or "" when the request is valid.
func validateRequest(req any) string {
	err := validate.Struct(req)
	if err == nil {
		return ""
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return "invalid request"
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email address", field))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(messages, "; ")
}

// accountFromContext retrieves the account injected by the access guard.
func accountFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextAccountKey).(types.User)
	return user, ok
}

func contextWithAccount(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextAccountKey, user)
}
