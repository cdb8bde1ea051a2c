// Package auth guards the HTTP bridge with HS256 bearer tokens signed by a
// per-installation secret.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
)

const (
	issuer      = "et-launcher"
	secretBytes = 32
)

var ErrMissingToken = errors.New("missing bearer token")

type contextKey string

const claimsKey contextKey = "claims"

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("HS256 requires a secret")
	}
	return &Verifier{secret: []byte(strings.TrimSpace(secret))}, nil
}

// Issue signs a token for subject. A ttl <= 0 issues a token that does not
// expire.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify checks the signature, issuer and expiry of token.
func (v *Verifier) Verify(token string) (*jwt.RegisteredClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Middleware rejects requests without a valid token. Browsers cannot set
// headers on websocket upgrades, so a ?token= query parameter is accepted
// too.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		claims, err := v.Verify(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="et-launcher"`)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom returns the claims stored by Middleware.
func ClaimsFrom(ctx context.Context) (*jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*jwt.RegisteredClaims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// LoadOrCreateSecret returns the secret stored at path, generating and
// persisting one with owner-only permissions on first use.
func LoadOrCreateSecret(path string) (string, error) {
	secret, err := config.ReadText(path)
	if err == nil && strings.TrimSpace(secret) != "" {
		return strings.TrimSpace(secret), nil
	}
	if err != nil && !fault.Is(err, fault.NotFound) {
		return "", err
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret = hex.EncodeToString(buf)
	if err := config.WritePrivateText(path, secret+"\n"); err != nil {
		return "", err
	}
	return secret, nil
}
