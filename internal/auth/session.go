package auth

import (
	"context"
	"sync"
)

// Session holds the identity of one interactive client and notifies
// listeners on every sign-in, sign-out and profile change.
type Session struct {
	provider Provider

	mu        sync.Mutex
	current   *Identity
	listeners map[int]func(*Identity)
	nextID    int
}

// NewSession builds a signed-out session over provider.
func NewSession(provider Provider) *Session {
	return &Session{provider: provider, listeners: make(map[int]func(*Identity))}
}

// OnSessionChange registers fn and returns a function that removes it. fn
// receives nil after sign-out.
func (s *Session) OnSessionChange(fn func(*Identity)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

// Current returns a copy of the signed-in identity.
func (s *Session) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Identity{}, false
	}
	return *s.current, true
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

func (s *Session) SignIn(ctx context.Context, email, password string) error {
	identity, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	s.set(&identity)
	return nil
}

func (s *Session) SignUp(ctx context.Context, name, email, password string) error {
	identity, err := s.provider.SignUp(ctx, name, email, password)
	if err != nil {
		return err
	}
	s.set(&identity)
	return nil
}

// Resume restores a previously issued token, e.g. one persisted between runs.
func (s *Session) Resume(ctx context.Context, identity Identity) error {
	user, err := s.provider.Verify(ctx, identity.Token)
	if err != nil {
		return err
	}
	identity.User = user
	s.set(&identity)
	return nil
}

// SignOut revokes the current token and clears the session. The session is
// cleared even when revocation fails.
func (s *Session) SignOut(ctx context.Context) error {
	current, ok := s.Current()
	if !ok {
		return nil
	}
	err := s.provider.SignOut(ctx, current.Token)
	s.set(nil)
	return err
}

func (s *Session) ResetPassword(ctx context.Context, email string) error {
	return s.provider.ResetPassword(ctx, email)
}

// UpdateProfile changes the signed-in user's profile.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, error) {
	current, ok := s.Current()
	if !ok {
		return User{}, ErrNotAuthenticated
	}
	user, err := s.provider.UpdateProfile(ctx, current.User.ID, update)
	if err != nil {
		return User{}, err
	}
	current.User = user
	s.set(&current)
	return user, nil
}

func (s *Session) set(identity *Identity) {
	s.mu.Lock()
	s.current = identity
	listeners := make([]func(*Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		if identity == nil {
			fn(nil)
			continue
		}
		snapshot := *identity
		fn(&snapshot)
	}
}
