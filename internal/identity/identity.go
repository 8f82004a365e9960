// Package identity adapts the external identity provider into a current-user lookup.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	UserID string
	Name   string
	Email  string
}

// Authenticator resolves the caller of a request. ok is false for anonymous requests.
type Authenticator interface {
	Authenticate(r *http.Request) (id Identity, ok bool)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by Middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// UserID returns the current user ID, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

// Middleware resolves the caller once per request. Anonymous requests pass through;
// handlers decide whether they need a user.
func Middleware(auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.Authenticate(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Claims are the token claims issued by the identity provider.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 bearer tokens.
type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a bearer-token authenticator. An empty issuer skips the
// issuer check.
func NewJWTAuthenticator(secret, issuer string) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTAuthenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (Identity, bool) {
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return Identity{}, false
	}

	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		slog.Debug("rejected bearer token", "error", err)
		return Identity{}, false
	}
	if claims.Subject == "" {
		return Identity{}, false
	}
	return Identity{
		UserID: claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
	}, true
}

// Sign issues a token for id. Used by tests and local tooling.
func (a *JWTAuthenticator) Sign(id Identity, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = id.UserID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name:             id.Name,
		Email:            id.Email,
		RegisteredClaims: claims,
	})
	return token.SignedString(a.secret)
}

// HeaderAuthenticator trusts identity headers set by an authenticating gateway.
type HeaderAuthenticator struct {
	UserHeader  string
	NameHeader  string
	EmailHeader string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (Identity, bool) {
	userID := strings.TrimSpace(r.Header.Get(a.UserHeader))
	if userID == "" {
		return Identity{}, false
	}
	id := Identity{UserID: userID}
	if a.NameHeader != "" {
		id.Name = strings.TrimSpace(r.Header.Get(a.NameHeader))
	}
	if a.EmailHeader != "" {
		id.Email = strings.TrimSpace(r.Header.Get(a.EmailHeader))
	}
	return id, true
}
