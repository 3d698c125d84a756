package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCursor is returned when a pagination cursor does not resolve to an
// existing message.
var ErrInvalidCursor = errors.New("invalid cursor")

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrNotClaimable is returned when a document cannot be moved to PROCESSING
// because it is no longer in the UPLOADED state (already claimed or terminal).
var ErrNotClaimable = errors.New("document not claimable")

// Document processing states. Transitions are one-directional:
// UPLOADED -> PROCESSING -> COMPLETED | FAILED. Terminal states are absorbing.
const (
	StatusUploaded   = "UPLOADED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Message roles.
const (
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Document struct {
	ID          string
	UserID      string
	FileName    string
	MimeType    string
	StoragePath string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExtractedText is the 1:1 result of successful processing. It exists exactly
// when the owning document is COMPLETED; both are written in one transaction.
type ExtractedText struct {
	DocumentID string
	Text       string
	CreatedAt  time.Time
}

type Message struct {
	ID         string
	DocumentID string
	Role       string
	Content    string
	CreatedAt  time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
