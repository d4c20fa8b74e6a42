package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Authenticator validates a username/password pair. The policy behind the
// boolean is opaque to the login gate.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// StaticAuthenticator checks credentials against a fixed table of bcrypt
// hashes seeded from configuration.
type StaticAuthenticator struct {
	hashes map[string]string
}

// NewStaticAuthenticator returns an authenticator over the supplied
// username -> bcrypt hash table.
func NewStaticAuthenticator(hashes map[string]string) *StaticAuthenticator {
	copied := make(map[string]string, len(hashes))
	for username, hash := range hashes {
		copied[username] = hash
	}
	return &StaticAuthenticator{hashes: copied}
}

// Authenticate reports whether the password matches the stored hash for
// username. Unknown users are rejected the same way as bad passwords.
func (a *StaticAuthenticator) Authenticate(username, password string) bool {
	hash, ok := a.hashes[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword produces a bcrypt hash for seeding credential tables.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
