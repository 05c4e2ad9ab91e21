package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chris/student-escrow-market/pkg/api"
	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/render"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const principalKey contextKey = "principal"

// Claims are the token claims issued by the auth service.
type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 bearer tokens and loads the caller from
// the user table.
type Authenticator struct {
	users  storage.PrincipalReader
	secret []byte
	logger *slog.Logger
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(users storage.PrincipalReader, secret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{users: users, secret: []byte(secret), logger: logger}
}

func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	// Browsers cannot set headers on websocket upgrades.
	if q := r.URL.Query().Get("token"); q != "" {
		return q
	}
	return ""
}

// Authenticate resolves the caller of r.
func (a *Authenticator) Authenticate(r *http.Request) (models.Principal, error) {
	return a.AuthenticateToken(r.Context(), extractToken(r))
}

// AuthenticateToken resolves the caller holding raw. Unknown users are
// Unauthorized and blocked users Forbidden.
func (a *Authenticator) AuthenticateToken(ctx context.Context, raw string) (models.Principal, error) {
	if raw == "" {
		return models.Principal{}, apperrors.Unauthorized("authentication required")
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.ID == "" {
		return models.Principal{}, apperrors.Unauthorized("invalid or expired token")
	}

	p, err := a.users.GetPrincipal(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Principal{}, apperrors.Unauthorized("user not found")
		}
		return models.Principal{}, err
	}
	if !p.IsActive() {
		return models.Principal{}, apperrors.Forbidden("account is blocked")
	}
	return *p, nil
}

// Middleware authenticates operations that declare bearer auth and passes
// the others through untouched.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Value(api.BearerAuthScopes) == nil {
			next.ServeHTTP(w, r)
			return
		}
		p, err := a.Authenticate(r)
		if err != nil {
			render.Error(w, r, a.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// WithPrincipal stores the caller in ctx.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller stored by the middleware. The zero
// principal is returned for anonymous requests.
func PrincipalFrom(ctx context.Context) models.Principal {
	p, _ := ctx.Value(principalKey).(models.Principal)
	return p
}

// IssueToken signs a token for the user. The auth service owns issuance in
// production; this is used by tests and local tooling.
func IssueToken(secret string, p models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:   p.ID,
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
