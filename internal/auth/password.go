// Package auth handles password hashing and bearer-token sessions.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both unknown emails and wrong passwords, so
// login failures do not reveal which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Hasher derives and verifies bcrypt password hashes. The pepper is a
// server-side secret appended to every password before hashing; it never
// touches the database.
type Hasher struct {
	pepper string
	cost   int
}

func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: pepper, cost: bcrypt.DefaultCost}
}

// Hash returns the bcrypt hash of the peppered password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password+h.pepper), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether the password matches the stored hash.
func (h *Hasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password+h.pepper))
	if err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
