package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures, distinguished so callers can log precisely.
// All of them map to an authentication failure upstream.
var (
	ErrTokenMalformed      = errors.New("token malformed")
	ErrTokenSignature      = errors.New("token signature invalid")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenMissingSubject = errors.New("token missing subject")
)

// Claims is the payload carried by an access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-limited bearer tokens.
// Tokens are self-contained: verification needs no store lookup, only the
// secondary subject-to-account resolution does.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService validates the configured algorithm and builds a service.
// Only HS256 is supported; anything else is a configuration error.
func NewTokenService(secret, algorithm string, ttl time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret key is required")
	}
	if algorithm != "" && algorithm != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token whose subject is the account id. Expiry is
// issued-at plus the configured TTL.
func (s *TokenService) Issue(subject, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the claims. Failures are
// one of the ErrToken* sentinels.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !token.Valid {
		return nil, ErrTokenSignature
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMissingSubject
	}
	return claims, nil
}
