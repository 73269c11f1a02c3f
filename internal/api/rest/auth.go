package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const contextKeyOperator contextKey = "operator"

// OperatorFromContext returns the authenticated operator subject, if any.
func OperatorFromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(contextKeyOperator).(string)
	return op, ok
}

// AuthConfig holds token signing parameters.
type AuthConfig struct {
	Secret      []byte
	TokenExpiry time.Duration
	Issuer      string
}

// Claims are the operator token claims. Role separates dashboard viewers
// from operators allowed to mutate callers and reassign leads.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticator issues and validates operator tokens. Mutating routes
// require it; reads and the webhook use their own guards.
type Authenticator struct {
	config *AuthConfig
}

func NewAuthenticator(config *AuthConfig) *Authenticator {
	return &Authenticator{config: config}
}

// GenerateToken mints an HS256 operator token.
func (a *Authenticator) GenerateToken(subject, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.config.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TokenExpiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.config.Secret)
}

func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware rejects requests without a valid Bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearer(r)
		if err != nil {
			writeUnauthorized(w, r, err.Error())
			return
		}

		claims, err := a.validateToken(token)
		if err != nil {
			writeUnauthorized(w, r, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyOperator, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("authorization required")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization format")
	}
	return parts[1], nil
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	writeEnvelope(w, r, http.StatusUnauthorized, ResponseEnvelope{
		Success: false,
		Error:   &ErrorResponse{Code: "UNAUTHORIZED", Message: message},
	})
}
