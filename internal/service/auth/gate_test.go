package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kiskahq/kiska/internal/model/session"
	"github.com/kiskahq/kiska/internal/service/auth"
	"github.com/kiskahq/kiska/internal/store"
)

func newAuthenticator(t *testing.T) auth.Authenticator {
	t.Helper()
	hash, err := auth.HashPassword("orbital")
	if err != nil {
		t.Fatalf("HashPassword err: %v", err)
	}
	return auth.NewStaticAuthenticator(map[string]string{"trent": hash})
}

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*store.MemoryStore
	failGet    bool
	failSetKey string
	sets       int
}

func (f *failingStore) Get(ctx context.Context, key string) (string, error) {
	if f.failGet {
		return "", errors.New("backing store unavailable")
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	f.sets++
	if key == f.failSetKey {
		return errors.New("backing store unavailable")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func TestCheckSessionWithStoredToken(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewMemoryStore()
	sessions.Set(ctx, session.KeyUserToken, "stored-token")
	sessions.Set(ctx, session.KeyUsername, "trent")

	gate := auth.NewGate(newAuthenticator(t), sessions, "Trent")

	got, ok := gate.CheckSession(ctx)
	if !ok {
		t.Fatal("expected stored token to authenticate")
	}
	if got.Username != "trent" {
		t.Fatalf("unexpected username: %s", got.Username)
	}
	if got.Token != "stored-token" {
		t.Fatalf("unexpected token: %s", got.Token)
	}
}

func TestCheckSessionFallbackUsername(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewMemoryStore()
	sessions.Set(ctx, session.KeyUserToken, "stored-token")

	gate := auth.NewGate(newAuthenticator(t), sessions, "Trent")

	got, ok := gate.CheckSession(ctx)
	if !ok {
		t.Fatal("expected stored token to authenticate")
	}
	if got.Username != "Trent" {
		t.Fatalf("expected fallback username, got %s", got.Username)
	}
}

func TestCheckSessionEmptyStore(t *testing.T) {
	gate := auth.NewGate(newAuthenticator(t), store.NewMemoryStore(), "Trent")
	if _, ok := gate.CheckSession(context.Background()); ok {
		t.Fatal("expected unauthenticated with empty store")
	}
}

func TestCheckSessionReadErrorFailsSoft(t *testing.T) {
	sessions := &failingStore{MemoryStore: store.NewMemoryStore(), failGet: true}
	gate := auth.NewGate(newAuthenticator(t), sessions, "Trent")

	if _, ok := gate.CheckSession(context.Background()); ok {
		t.Fatal("read error must be treated as unauthenticated")
	}
}

func TestLoginPersistsSession(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewMemoryStore()
	gate := auth.NewGate(newAuthenticator(t), sessions, "Trent")

	got, err := gate.Login(ctx, "trent", "orbital")
	if err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if !got.Authenticated() {
		t.Fatal("expected session with token")
	}

	token, err := sessions.Get(ctx, session.KeyUserToken)
	if err != nil {
		t.Fatalf("token not persisted: %v", err)
	}
	if token != got.Token {
		t.Fatalf("persisted token mismatch: %s != %s", token, got.Token)
	}
	username, err := sessions.Get(ctx, session.KeyUsername)
	if err != nil {
		t.Fatalf("username not persisted: %v", err)
	}
	if username != "trent" {
		t.Fatalf("persisted username mismatch: %s", username)
	}
	if !gate.Authenticated() {
		t.Fatal("gate should be authenticated after login")
	}
}

func TestLoginRejectedLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	sessions := &failingStore{MemoryStore: store.NewMemoryStore()}
	gate := auth.NewGate(newAuthenticator(t), sessions, "Trent")

	_, err := gate.Login(ctx, "trent", "wrong")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if sessions.sets != 0 {
		t.Fatalf("rejected login must not write, saw %d writes", sessions.sets)
	}
	if gate.Authenticated() {
		t.Fatal("gate must not transition on rejection")
	}
}

func TestLoginTokenWriteFailureBlocksTransition(t *testing.T) {
	ctx := context.Background()
	sessions := &failingStore{MemoryStore: store.NewMemoryStore(), failSetKey: session.KeyUserToken}
	gate := auth.NewGate(newAuthenticator(t), sessions, "Trent")

	if _, err := gate.Login(ctx, "trent", "orbital"); err == nil {
		t.Fatal("expected transient error when token write fails")
	}
	if gate.Authenticated() {
		t.Fatal("gate must not transition when the write did not complete")
	}
	if _, err := sessions.MemoryStore.Get(ctx, session.KeyUserToken); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no token may be persisted, got %v", err)
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	gate := auth.NewGate(newAuthenticator(t), store.NewMemoryStore(), "Trent")
	if _, err := gate.Login(context.Background(), "trent", ""); !errors.Is(err, auth.ErrCredentialsRequired) {
		t.Fatalf("expected ErrCredentialsRequired, got %v", err)
	}
}

func TestAuthenticatedIsTerminal(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewMemoryStore()
	gate := auth.NewGate(newAuthenticator(t), sessions, "Trent")

	if _, err := gate.Login(ctx, "trent", "orbital"); err != nil {
		t.Fatalf("Login err: %v", err)
	}

	// Even if the store is wiped afterwards, the gate never re-checks.
	sessions.Delete(ctx, session.KeyUserToken)
	sessions.Delete(ctx, session.KeyUsername)

	if _, ok := gate.CheckSession(ctx); !ok {
		t.Fatal("authenticated must be terminal for the process lifetime")
	}
}
