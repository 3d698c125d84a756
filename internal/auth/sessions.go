package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppinheiro86/doctalk/internal/storage"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// UserStore is the subset of the storage layer the service needs.
type UserStore interface {
	CreateUser(u storage.User) error
	GetUserByEmail(email string) (storage.User, error)
	CreateSession(sess storage.Session) error
	GetSession(token string) (storage.Session, error)
}

// Service registers users and exchanges credentials for opaque bearer tokens.
type Service struct {
	store      UserStore
	hasher     *Hasher
	sessionTTL time.Duration
}

func NewService(store UserStore, hasher *Hasher) *Service {
	return &Service{
		store:      store,
		hasher:     hasher,
		sessionTTL: defaultSessionTTL,
	}
}

// Register creates a user with a hashed password. Returns
// storage.ErrEmailTaken when the email is already registered.
func (s *Service) Register(email, password string) (storage.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return storage.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user := storage.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(user); err != nil {
		return storage.User{}, err
	}
	return user, nil
}

// Login verifies credentials and issues a new session token.
func (s *Service) Login(email, password string) (storage.Session, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Session{}, ErrInvalidCredentials
		}
		return storage.Session{}, err
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return storage.Session{}, err
	}

	token, err := newToken()
	if err != nil {
		return storage.Session{}, err
	}

	now := time.Now().UTC()
	sess := storage.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(sess); err != nil {
		return storage.Session{}, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// Authenticate resolves a bearer token to the owning user ID. Expired and
// unknown tokens both come back as storage.ErrNotFound.
func (s *Service) Authenticate(token string) (string, error) {
	sess, err := s.store.GetSession(token)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// newToken returns 32 bytes of hex-encoded randomness. Tokens are opaque;
// everything about the session lives server side.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
