package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"signscribe/internal/docstore"
	"signscribe/internal/logging"
)

const (
	UsersCollection         = "users"
	ResetsCollection        = "password_resets"
	RevokedTokensCollection = "revoked_tokens"
)

// Store is the document persistence LocalProvider needs.
type Store interface {
	Get(ctx context.Context, collection, id string) (docstore.Document, error)
	Set(ctx context.Context, collection, id string, data any) error
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection, field string, value any) ([]docstore.Document, error)
	Documents(ctx context.Context, collection string) ([]docstore.Document, error)
}

type userRecord struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r userRecord) user(id string) User {
	return User{ID: id, Name: r.Name, Email: r.Email, PhotoURL: r.PhotoURL, CreatedAt: r.CreatedAt}
}

type resetRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

type revokedRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LocalOptions configures a LocalProvider.
type LocalOptions struct {
	ResetTTL   time.Duration
	BcryptCost int
	Mailer     Mailer
}

// LocalProvider keeps accounts in the document store.
type LocalProvider struct {
	store    Store
	tokens   *TokenIssuer
	mailer   Mailer
	resetTTL time.Duration
	cost     int
	logger   *slog.Logger
	now      func() time.Time

	// signups serializes the email uniqueness check with the insert.
	signups sync.Mutex
	// resets serializes the single-use check with consuming the token.
	resets sync.Mutex
}

// NewLocalProvider builds a provider over store.
func NewLocalProvider(store Store, tokens *TokenIssuer, opts LocalOptions, logger *slog.Logger) (*LocalProvider, error) {
	if store == nil || tokens == nil {
		return nil, errors.New("store and token issuer are required")
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	logger = logging.NewComponentLogger(logger, "auth")
	if opts.Mailer == nil {
		opts.Mailer = LogMailer{Logger: logger}
	}
	return &LocalProvider{
		store:    store,
		tokens:   tokens,
		mailer:   opts.Mailer,
		resetTTL: opts.ResetTTL,
		cost:     opts.BcryptCost,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SignUp creates an account and signs it in.
func (p *LocalProvider) SignUp(ctx context.Context, name, email, password string) (Identity, error) {
	if err := errors.Join(ValidateName(name), ValidateEmail(email), ValidatePassword(password)); err != nil {
		return Identity{}, err
	}
	email = NormalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	p.signups.Lock()
	defer p.signups.Unlock()

	if _, _, err := p.findByEmail(ctx, email); err == nil {
		return Identity{}, ErrEmailInUse
	} else if !errors.Is(err, ErrUserNotFound) {
		return Identity{}, err
	}

	now := p.now().UTC()
	id := uuid.NewString()
	record := userRecord{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.store.Set(ctx, UsersCollection, id, record); err != nil {
		return Identity{}, fmt.Errorf("store user: %w", err)
	}
	p.logger.Info("user signed up",
		logging.String(logging.FieldEventType, "user_signed_up"),
		logging.String(logging.FieldUserID, id),
	)
	return p.issue(record.user(id))
}

// SignIn checks credentials and issues a token.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Identity, error) {
	id, record, err := p.findByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return p.issue(record.user(id))
}

// SignOut revokes token until it would have expired anyway.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return err
	}
	revoked := revokedRecord{UserID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}
	if err := p.store.Set(ctx, RevokedTokensCollection, claims.ID, revoked); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ResetPassword issues a single-use reset token and hands it to the mailer.
// Unknown addresses succeed silently so callers cannot probe for accounts.
func (p *LocalProvider) ResetPassword(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	email = NormalizeEmail(email)
	id, _, err := p.findByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		p.logger.Debug("password reset for unknown email ignored")
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	expires := p.now().UTC().Add(p.resetTTL)
	if err := p.store.Set(ctx, ResetsCollection, token, resetRecord{UserID: id, ExpiresAt: expires}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if err := p.mailer.SendPasswordReset(ctx, email, token, expires); err != nil {
		return fmt.Errorf("send reset: %w", err)
	}
	return nil
}

// ConfirmReset sets a new password using a reset token.
func (p *LocalProvider) ConfirmReset(ctx context.Context, resetToken, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	p.resets.Lock()
	defer p.resets.Unlock()

	doc, err := p.store.Get(ctx, ResetsCollection, strings.TrimSpace(resetToken))
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	var reset resetRecord
	if err := doc.Decode(&reset); err != nil {
		return fmt.Errorf("decode reset token: %w", err)
	}
	if reset.Used || !p.now().Before(reset.ExpiresAt) {
		return ErrInvalidToken
	}

	record, err := p.load(ctx, reset.UserID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	record.PasswordHash = string(hash)
	record.UpdatedAt = p.now().UTC()
	if err := p.store.Set(ctx, UsersCollection, reset.UserID, record); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	reset.Used = true
	if err := p.store.Set(ctx, ResetsCollection, doc.ID, reset); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	p.logger.Info("password reset completed",
		logging.String(logging.FieldEventType, "password_reset"),
		logging.String(logging.FieldUserID, reset.UserID),
	)
	return nil
}

// PruneExpired deletes revoked tokens past their expiry and reset tokens
// that are used or expired. It returns how many records were removed.
func (p *LocalProvider) PruneExpired(ctx context.Context) (int, error) {
	now := p.now()
	removed := 0
	revoked, err := p.store.Documents(ctx, RevokedTokensCollection)
	if err != nil {
		return 0, fmt.Errorf("list revoked tokens: %w", err)
	}
	for _, doc := range revoked {
		var record revokedRecord
		if err := doc.Decode(&record); err != nil {
			return removed, fmt.Errorf("decode revoked token %s: %w", doc.ID, err)
		}
		if now.Before(record.ExpiresAt) {
			continue
		}
		if err := p.store.Delete(ctx, RevokedTokensCollection, doc.ID); err != nil {
			return removed, fmt.Errorf("delete revoked token: %w", err)
		}
		removed++
	}

	p.resets.Lock()
	defer p.resets.Unlock()
	resets, err := p.store.Documents(ctx, ResetsCollection)
	if err != nil {
		return removed, fmt.Errorf("list reset tokens: %w", err)
	}
	for _, doc := range resets {
		var record resetRecord
		if err := doc.Decode(&record); err != nil {
			return removed, fmt.Errorf("decode reset token: %w", err)
		}
		if !record.Used && now.Before(record.ExpiresAt) {
			continue
		}
		if err := p.store.Delete(ctx, ResetsCollection, doc.ID); err != nil {
			return removed, fmt.Errorf("delete reset token: %w", err)
		}
		removed++
	}
	return removed, nil
}

// RunPruner calls PruneExpired now and then every interval until ctx is done.
func (p *LocalProvider) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		removed, err := p.PruneExpired(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logging.WarnWithContext(p.logger, "token pruning failed", "token_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "expired tokens stay stored until the next run"),
			)
		case removed > 0:
			p.logger.Info("expired tokens pruned", logging.Int("removed", removed))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// UpdateProfile applies update to the account.
func (p *LocalProvider) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	record, err := p.load(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if update.Name != nil {
		if err := ValidateName(*update.Name); err != nil {
			return User{}, err
		}
		record.Name = strings.TrimSpace(*update.Name)
	}
	if update.PhotoURL != nil {
		record.PhotoURL = strings.TrimSpace(*update.PhotoURL)
	}
	record.UpdatedAt = p.now().UTC()
	if err := p.store.Set(ctx, UsersCollection, userID, record); err != nil {
		return User{}, fmt.Errorf("store user: %w", err)
	}
	return record.user(userID), nil
}

// Verify resolves a bearer token to its user.
func (p *LocalProvider) Verify(ctx context.Context, token string) (User, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return User{}, err
	}
	if _, err := p.store.Get(ctx, RevokedTokensCollection, claims.ID); err == nil {
		return User{}, ErrInvalidToken
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return User{}, err
	}
	record, err := p.load(ctx, claims.Subject)
	if err != nil {
		return User{}, err
	}
	return record.user(claims.Subject), nil
}

// User looks up an account by id.
func (p *LocalProvider) User(ctx context.Context, id string) (User, error) {
	record, err := p.load(ctx, id)
	if err != nil {
		return User{}, err
	}
	return record.user(id), nil
}

func (p *LocalProvider) issue(user User) (Identity, error) {
	token, expires, err := p.tokens.Issue(user)
	if err != nil {
		return Identity{}, err
	}
	return Identity{User: user, Token: token, ExpiresAt: expires}, nil
}

func (p *LocalProvider) load(ctx context.Context, id string) (userRecord, error) {
	doc, err := p.store.Get(ctx, UsersCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return userRecord{}, ErrUserNotFound
	}
	if err != nil {
		return userRecord{}, err
	}
	var record userRecord
	if err := doc.Decode(&record); err != nil {
		return userRecord{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	return record, nil
}

func (p *LocalProvider) findByEmail(ctx context.Context, email string) (string, userRecord, error) {
	docs, err := p.store.Find(ctx, UsersCollection, "email", email)
	if err != nil {
		return "", userRecord{}, fmt.Errorf("find user: %w", err)
	}
	if len(docs) == 0 {
		return "", userRecord{}, ErrUserNotFound
	}
	var record userRecord
	if err := docs[0].Decode(&record); err != nil {
		return "", userRecord{}, fmt.Errorf("decode user %s: %w", docs[0].ID, err)
	}
	return docs[0].ID, record, nil
}
