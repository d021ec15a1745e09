// Package identity resolves the signed-in user behind a browser request
// and the OAuth token they linked for publishing.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidSession = errors.New("invalid session token")
	ErrNoLinkedToken  = errors.New("no linked oauth token")
)

// User is the profile the browser reports after sign-in. Field names match
// the remote users document.
type User struct {
	ID        string    `json:"uid" validate:"required"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	FullName  string    `json:"fullName"`
	ImageURL  string    `json:"imageUrl"`
	LastSync  time.Time `json:"lastSync"`
}

// TokenSource looks up a user's linked Google access token.
type TokenSource interface {
	GoogleToken(ctx context.Context, userID string) (string, error)
}

type userKey struct{}

// WithUser returns a context carrying the signed-in user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the signed-in user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
