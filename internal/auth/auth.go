// Package auth resolves the authenticated user behind an HTTP request. The
// actual identity provider is a platform service in front of the app; this
// package only defines the boundary and a proxy-header implementation.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// ErrNotLoggedIn indicates a request with no authenticated user.
var ErrNotLoggedIn = errors.New("user is not logged in")

// User identifies one authenticated user.
type User struct {
	ID    string
	Email string
}

// Service resolves the current user from a request.
type Service interface {
	// CurrentUser returns the authenticated user, or ErrNotLoggedIn.
	CurrentUser(r *http.Request) (User, error)
}

// HeaderService trusts identity headers injected by the platform's
// authenticating proxy. The app itself never sees credentials.
type HeaderService struct {
	IDHeader    string
	EmailHeader string
}

// NewHeaderService returns a Service reading the default proxy headers.
func NewHeaderService() *HeaderService {
	return &HeaderService{
		IDHeader:    "X-Auth-User-Id",
		EmailHeader: "X-Auth-User-Email",
	}
}

// CurrentUser implements the Service interface.
func (s *HeaderService) CurrentUser(r *http.Request) (User, error) {
	id := r.Header.Get(s.IDHeader)
	if id == "" {
		return User{}, ErrNotLoggedIn
	}
	return User{ID: id, Email: r.Header.Get(s.EmailHeader)}, nil
}

type userContextKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// FromContext returns the user stored by the auth middleware.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userContextKey{}).(User)
	return u, ok
}
