package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

var errInvalidToken = errors.New("auth: invalid ops token")

// OpsTokenVerifier validates HS256 bearer tokens guarding the internal
// operational endpoints.
type OpsTokenVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewOpsTokenVerifier constructs the verifier from the shared signing secret.
func NewOpsTokenVerifier(secret string) *OpsTokenVerifier {
	return &OpsTokenVerifier{
		secret: []byte(strings.TrimSpace(secret)),
		now:    time.Now,
	}
}

// IssueOpsToken mints a short-lived token for operational tooling. Exposed so
// deploy scripts and tests share one implementation with the verifier.
func IssueOpsToken(secret, subject string, ttl time.Duration) (string, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return "", errors.New("auth: ops token secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strings.TrimSpace(subject),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(trimmed))
}

// Verify parses and validates a raw token string, returning its subject.
func (v *OpsTokenVerifier) Verify(raw string) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", errors.New("auth: ops token secret not configured")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)

	var claims jwt.RegisteredClaims
	token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// RequireOpsToken rejects requests that do not carry a valid bearer token.
func (v *OpsTokenVerifier) RequireOpsToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil || len(v.secret) == 0 {
				respondAuthError(w, http.StatusServiceUnavailable, "ops_auth_unavailable", "ops token secret not configured")
				return
			}

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(header, bearerPrefix) {
				respondAuthError(w, http.StatusUnauthorized, "token_missing", "bearer token required")
				return
			}

			if _, err := v.Verify(strings.TrimSpace(header[len(bearerPrefix):])); err != nil {
				respondAuthError(w, http.StatusUnauthorized, "token_invalid", "bearer token invalid or expired")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
