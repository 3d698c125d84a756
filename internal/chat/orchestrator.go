// Package chat answers user questions about a document, grounded in the
// document's extracted text.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ppinheiro86/doctalk/internal/storage"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var (
	// ErrDocumentNotReady means the document has no extracted text yet and
	// cannot be asked about.
	ErrDocumentNotReady = errors.New("document not processed yet")

	// ErrUpstreamUnavailable means the completion provider failed; the user's
	// question was recorded but no answer was produced.
	ErrUpstreamUnavailable = errors.New("language model unavailable")
)

// Store is the subset of the storage layer the orchestrator needs.
type Store interface {
	GetDocument(id string) (storage.Document, error)
	GetExtractedText(documentID string) (storage.ExtractedText, error)
	CreateMessage(m storage.Message) error
	ListMessages(documentID string, limit int, cursor string) ([]storage.Message, string, error)
}

// Completer produces an assistant reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Orchestrator coordinates one question/answer exchange: ownership and
// readiness checks, message persistence, and the completion call.
type Orchestrator struct {
	store        Store
	completer    Completer
	logger       *slog.Logger
	defaultLimit int
	maxLimit     int
}

func New(store Store, completer Completer) *Orchestrator {
	return NewWithLimits(store, completer, defaultPageLimit, maxPageLimit)
}

// NewWithLimits overrides the history page-size bounds; non-positive values
// fall back to the built-in defaults.
func NewWithLimits(store Store, completer Completer, defaultLimit, maxLimit int) *Orchestrator {
	if defaultLimit <= 0 {
		defaultLimit = defaultPageLimit
	}
	if maxLimit <= 0 {
		maxLimit = maxPageLimit
	}
	return &Orchestrator{
		store:        store,
		completer:    completer,
		logger:       slog.Default(),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Page is one slice of a document's conversation history.
type Page struct {
	Messages   []storage.Message
	NextCursor string
}

// Ask records the user's question, asks the model with the document text as
// grounding, and records and returns the assistant's answer.
//
// The user message is persisted before the completion call: a question that
// hits a model outage stays in the history, so ErrUpstreamUnavailable tells
// the caller only the answer is missing.
func (o *Orchestrator) Ask(ctx context.Context, userID, documentID, content string) (storage.Message, error) {
	doc, err := o.loadOwned(userID, documentID)
	if err != nil {
		return storage.Message{}, err
	}

	text, err := o.store.GetExtractedText(doc.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Message{}, ErrDocumentNotReady
		}
		return storage.Message{}, fmt.Errorf("loading extracted text: %w", err)
	}

	userMsg := storage.Message{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Role:       storage.RoleUser,
		Content:    content,
	}
	if err := o.store.CreateMessage(userMsg); err != nil {
		return storage.Message{}, fmt.Errorf("persisting user message: %w", err)
	}

	answer, err := o.completer.Complete(ctx, BuildPrompt(text.Text, content))
	if err != nil {
		o.logger.Error("completion failed", "document_id", doc.ID, "error", err)
		return storage.Message{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	assistantMsg := storage.Message{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Role:       storage.RoleAssistant,
		Content:    answer,
	}
	if err := o.store.CreateMessage(assistantMsg); err != nil {
		return storage.Message{}, fmt.Errorf("persisting assistant message: %w", err)
	}
	return assistantMsg, nil
}

// History returns one page of the document's messages in chronological order.
// A zero or negative limit falls back to the default; oversized limits are
// clamped.
func (o *Orchestrator) History(ctx context.Context, userID, documentID string, limit int, cursor string) (Page, error) {
	if _, err := o.loadOwned(userID, documentID); err != nil {
		return Page{}, err
	}

	if limit <= 0 {
		limit = o.defaultLimit
	}
	if limit > o.maxLimit {
		limit = o.maxLimit
	}

	msgs, next, err := o.store.ListMessages(documentID, limit, cursor)
	if err != nil {
		return Page{}, err
	}
	return Page{Messages: msgs, NextCursor: next}, nil
}

// loadOwned fetches the document and hides its existence from non-owners.
func (o *Orchestrator) loadOwned(userID, documentID string) (storage.Document, error) {
	doc, err := o.store.GetDocument(documentID)
	if err != nil {
		return storage.Document{}, err
	}
	if doc.UserID != userID {
		return storage.Document{}, storage.ErrNotFound
	}
	return doc, nil
}
