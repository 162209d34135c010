package auth

import (
	"context"
	"time"
)

// User is the public view of an account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PhotoURL  string    `json:"photoURL,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is a signed-in user and the bearer token that proves it.
type Identity struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProfileUpdate lists the fields a user may change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	PhotoURL *string `json:"photoURL,omitempty"`
}

// Provider is an identity provider.
type Provider interface {
	SignUp(ctx context.Context, name, email, password string) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, resetToken, newPassword string) error
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error)
	Verify(ctx context.Context, token string) (User, error)
}
