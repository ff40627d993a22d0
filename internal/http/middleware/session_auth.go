package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/omnitrix-widget/internal/tenancy"
)

type contextKey string

const sessionClaimsKey contextKey = "sessionClaims"

const tokenIssuer = "omnitrix-widget"

// SessionClaims authorise the embedding page to act on one chat session.
// Subject carries the session id.
type SessionClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// SessionTokens issues and checks HMAC-signed session tokens.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionTokens(secret string, ttl time.Duration) *SessionTokens {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (t *SessionTokens) Enabled() bool {
	return t != nil && len(t.secret) > 0
}

// Issue signs a token scoped to sessionID.
func (t *SessionTokens) Issue(sessionID, tenantID string) (string, error) {
	if !t.Enabled() {
		return "", errors.New("middleware: session token secret not configured")
	}
	now := t.now()
	claims := SessionClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("middleware: sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns its claims.
func (t *SessionTokens) Parse(tokenString string) (SessionClaims, error) {
	claims := SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return SessionClaims{}, err
	}
	if !token.Valid {
		return SessionClaims{}, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// RequireSession enforces a bearer token whose subject matches the
// {sessionID} route parameter.
func RequireSession(tokens *SessionTokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokens.Enabled() {
				http.Error(w, "session auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := tokens.Parse(strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if sessionID := chi.URLParam(r, "sessionID"); sessionID != "" && sessionID != claims.Subject {
				http.Error(w, "token does not match session", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), sessionClaimsKey, claims)
			ctx = tenancy.WithTenantID(ctx, claims.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionClaimsFromContext returns session claims if present.
func SessionClaimsFromContext(ctx context.Context) (SessionClaims, bool) {
	claims, ok := ctx.Value(sessionClaimsKey).(SessionClaims)
	return claims, ok
}
