package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/kiskahq/kiska/internal/model/session"
	"github.com/kiskahq/kiska/internal/store"
)

var (
	// ErrInvalidCredentials is returned when the authenticator rejects the
	// username/password pair. Retryable by the user.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrCredentialsRequired is returned when either field is empty.
	ErrCredentialsRequired = errors.New("auth: username and password are required")
)

// Gate drives the launch-time session check and the login flow. Once it has
// seen a valid session it stays authenticated for the process lifetime; the
// store is never re-read after that.
type Gate struct {
	mu            sync.Mutex
	authenticator Authenticator
	sessions      store.Store
	fallbackName  string

	authenticated bool
	current       session.Session
}

// NewGate wires the gate to its authenticator and session store. fallbackName
// substitutes for a missing stored username.
func NewGate(authenticator Authenticator, sessions store.Store, fallbackName string) *Gate {
	return &Gate{
		authenticator: authenticator,
		sessions:      sessions,
		fallbackName:  fallbackName,
	}
}

// CheckSession reads the persisted session once and reports whether the user
// is already authenticated. Read failures are logged and treated as "no
// session"; the caller falls through to the login form.
func (g *Gate) CheckSession(ctx context.Context) (session.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.authenticated {
		return g.current, true
	}

	token, err := g.sessions.Get(ctx, session.KeyUserToken)
	if errors.Is(err, store.ErrNotFound) {
		return session.Session{}, false
	}
	if err != nil {
		log.Printf("[auth] session check failed, treating as unauthenticated: %v", err)
		return session.Session{}, false
	}
	if token == "" {
		return session.Session{}, false
	}

	username, err := g.sessions.Get(ctx, session.KeyUsername)
	if err != nil || username == "" {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("[auth] username read failed, using fallback: %v", err)
		}
		username = g.fallbackName
	}

	g.authenticated = true
	g.current = session.Session{Token: token, Username: username}
	return g.current, true
}

// Login validates the credentials and, on success, persists the session and
// transitions the gate to authenticated. A rejected pair leaves the store
// untouched. A store write failure is returned wrapped so callers can surface
// it as transient; the gate does not transition in that case.
func (g *Gate) Login(ctx context.Context, username, password string) (session.Session, error) {
	if username == "" || password == "" {
		return session.Session{}, ErrCredentialsRequired
	}

	if !g.authenticator.Authenticate(username, password) {
		return session.Session{}, ErrInvalidCredentials
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	token := uuid.NewString()

	// Username first: the token's presence is the authentication marker, so
	// a partial write can never leave a token without its username.
	if err := g.sessions.Set(ctx, session.KeyUsername, username); err != nil {
		return session.Session{}, fmt.Errorf("persist username: %w", err)
	}
	if err := g.sessions.Set(ctx, session.KeyUserToken, token); err != nil {
		return session.Session{}, fmt.Errorf("persist session token: %w", err)
	}

	g.authenticated = true
	g.current = session.Session{Token: token, Username: username}
	return g.current, nil
}

// Authenticated reports whether the gate has transitioned.
func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}

// Current returns the active session. The boolean is false before the gate
// has transitioned.
func (g *Gate) Current() (session.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, g.authenticated
}
