package auth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"signscribe/internal/auth"
	"signscribe/internal/docstore"
	"signscribe/internal/testsupport"
)

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[email] = token
	return nil
}

func newProvider(t *testing.T) (*auth.LocalProvider, *captureMailer) {
	t.Helper()
	provider, mailer, _ := newProviderWithStore(t)
	return provider, mailer
}

func newProviderWithStore(t *testing.T) (*auth.LocalProvider, *captureMailer, *docstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	tokens, err := auth.NewTokenIssuer(testsupport.TestJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	mailer := &captureMailer{}
	provider, err := auth.NewLocalProvider(store, tokens, auth.LocalOptions{
		BcryptCost: bcrypt.MinCost,
		Mailer:     mailer,
	}, nil)
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	return provider, mailer, store
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	provider, _ := newProvider(t)

	identity, err := provider.SignUp(ctx, "Asha", "Asha@Example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if identity.User.Email != "asha@example.com" || identity.User.Name != "Asha" || identity.Token == "" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	if _, err := provider.SignUp(ctx, "Other", "asha@example.com", "secret2"); !errors.Is(err, auth.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}

	signedIn, err := provider.SignIn(ctx, "ASHA@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if signedIn.User.ID != identity.User.ID {
		t.Fatalf("signed in as %q, want %q", signedIn.User.ID, identity.User.ID)
	}

	for _, tc := range []struct{ email, password string }{
		{"asha@example.com", "wrong-password"},
		{"nobody@example.com", "secret1"},
	} {
		if _, err := provider.SignIn(ctx, tc.email, tc.password); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("SignIn(%s) error = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}

	user, err := provider.Verify(ctx, signedIn.Token)
	if err != nil || user.ID != identity.User.ID {
		t.Fatalf("Verify = %+v, %v", user, err)
	}
}

func TestSignUpValidation(t *testing.T) {
	provider, _ := newProvider(t)
	tests := []struct {
		name, email, password, field string
	}{
		{"", "a@example.com", "secret1", "name"},
		{"A", "not-an-email", "secret1", "email"},
		{"A", "a@localhost", "secret1", "email"},
		{"A", "a@example.com", "12345", "password"},
	}
	for _, tt := range tests {
		_, err := provider.SignUp(context.Background(), tt.name, tt.email, tt.password)
		var verr *auth.ValidationError
		if !errors.As(err, &verr) || verr.Field != tt.field {
			t.Fatalf("SignUp(%q,%q,%q) error = %v, want validation on %s", tt.name, tt.email, tt.password, err, tt.field)
		}
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	provider, _ := newProvider(t)
	identity, err := provider.SignUp(ctx, "Ravi", "ravi@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := provider.SignOut(ctx, identity.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := provider.Verify(ctx, identity.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
	if _, err := provider.Verify(ctx, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected malformed token to fail, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	provider, mailer := newProvider(t)
	if _, err := provider.SignUp(ctx, "Meera", "meera@example.com", "oldpass"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if err := provider.ResetPassword(ctx, "unknown@example.com"); err != nil {
		t.Fatalf("reset for unknown email should succeed silently, got %v", err)
	}
	if err := provider.ResetPassword(ctx, "meera@example.com"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	token := mailer.tokens["meera@example.com"]
	if token == "" {
		t.Fatal("expected reset token to be mailed")
	}
	if _, ok := mailer.tokens["unknown@example.com"]; ok {
		t.Fatal("unknown email should not receive a token")
	}

	if err := provider.ConfirmReset(ctx, token, "short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
	if err := provider.ConfirmReset(ctx, token, "newpass"); err != nil {
		t.Fatalf("ConfirmReset: %v", err)
	}
	if err := provider.ConfirmReset(ctx, token, "another"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected reused token to fail, got %v", err)
	}
	if _, err := provider.SignIn(ctx, "meera@example.com", "oldpass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	if _, err := provider.SignIn(ctx, "meera@example.com", "newpass"); err != nil {
		t.Fatalf("new password should work, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	provider, _ := newProvider(t)
	identity, err := provider.SignUp(ctx, "Kiran", "kiran@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	name, photo := "Kiran R", "https://example.com/k.png"
	user, err := provider.UpdateProfile(ctx, identity.User.ID, auth.ProfileUpdate{Name: &name, PhotoURL: &photo})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.Name != name || user.PhotoURL != photo || user.Email != "kiran@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	blank := " "
	if _, err := provider.UpdateProfile(ctx, identity.User.ID, auth.ProfileUpdate{Name: &blank}); err == nil {
		t.Fatal("expected blank name to be rejected")
	}
	if _, err := provider.UpdateProfile(ctx, "missing", auth.ProfileUpdate{}); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestConfirmResetAcceptsTokenOnce(t *testing.T) {
	ctx := context.Background()
	provider, mailer := newProvider(t)
	if _, err := provider.SignUp(ctx, "Dev", "dev@example.com", "oldpass"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := provider.ResetPassword(ctx, "dev@example.com"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	token := mailer.tokens["dev@example.com"]

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- provider.ConfirmReset(ctx, token, fmt.Sprintf("newpass%d", i))
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, auth.ErrInvalidToken):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful reset, got %d", succeeded)
	}
}

func TestPruneExpiredRemovesStaleTokens(t *testing.T) {
	ctx := context.Background()
	provider, mailer, store := newProviderWithStore(t)
	identity, err := provider.SignUp(ctx, "Lena", "lena@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := provider.SignOut(ctx, identity.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	past := time.Now().Add(-time.Hour).UTC()
	if err := store.Set(ctx, auth.RevokedTokensCollection, "old-jti", map[string]any{"user_id": identity.User.ID, "expires_at": past}); err != nil {
		t.Fatalf("seed revoked token: %v", err)
	}
	if err := store.Set(ctx, auth.ResetsCollection, "old-reset", map[string]any{"user_id": identity.User.ID, "expires_at": past}); err != nil {
		t.Fatalf("seed reset token: %v", err)
	}
	if err := provider.ResetPassword(ctx, "lena@example.com"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	removed, err := provider.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 records removed, got %d", removed)
	}
	if _, err := store.Get(ctx, auth.RevokedTokensCollection, "old-jti"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected expired revocation to be gone, got %v", err)
	}
	if n, err := store.Count(ctx, auth.RevokedTokensCollection); err != nil || n != 1 {
		t.Fatalf("expected live revocation to remain, got %d (%v)", n, err)
	}
	if _, err := provider.Verify(ctx, identity.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("signed-out token should stay revoked, got %v", err)
	}
	if err := provider.ConfirmReset(ctx, mailer.tokens["lena@example.com"], "newpass"); err != nil {
		t.Fatalf("pending reset should survive pruning, got %v", err)
	}
	removed, err = provider.PruneExpired(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("expected used reset to be pruned, got %d (%v)", removed, err)
	}
}
