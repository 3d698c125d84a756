// Package pipeline drives a document from UPLOADED to a terminal status:
// download the bytes, extract text, persist the result. It runs detached from
// the upload request via the job queue worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppinheiro86/doctalk/internal/blob"
	"github.com/ppinheiro86/doctalk/internal/storage"
)

// DocumentStore is the persistence surface the processor needs.
type DocumentStore interface {
	GetDocument(id string) (storage.Document, error)
	ClaimDocument(id string) error
	CompleteDocument(id, text string) error
	FailDocument(id string) error
}

// Extractor produces plain text from document bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Processor owns all document status transitions after upload.
type Processor struct {
	store     DocumentStore
	blobs     blob.Provider
	extractor Extractor
	logger    *slog.Logger
}

func NewProcessor(store DocumentStore, blobs blob.Provider, extractor Extractor) *Processor {
	return &Processor{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		logger:    slog.Default(),
	}
}

// Process runs extraction for one document and leaves it in a terminal status.
// It returns an error only when the run never started: the document is missing
// (storage.ErrNotFound) or not claimable (storage.ErrNotClaimable). Once the
// document is claimed, every failure is logged, absorbed, and recorded as the
// FAILED status; no error escapes to the trigger.
func (p *Processor) Process(ctx context.Context, documentID string) error {
	doc, err := p.store.GetDocument(documentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("loading document %s: %w", documentID, err)
	}

	// The PROCESSING marker is visible to readers immediately and doubles as
	// the guard against concurrent runs on the same document.
	if err := p.store.ClaimDocument(documentID); err != nil {
		return fmt.Errorf("claiming document %s: %w", documentID, err)
	}

	text, err := p.extractText(ctx, doc)
	if err != nil {
		p.fail(documentID, err)
		return nil
	}

	if err := p.store.CompleteDocument(documentID, text); err != nil {
		p.fail(documentID, fmt.Errorf("persisting extracted text: %w", err))
		return nil
	}

	p.logger.Info("document processed", "document_id", documentID, "text_length", len(text))
	return nil
}

func (p *Processor) extractText(ctx context.Context, doc storage.Document) (string, error) {
	data, err := p.blobs.Download(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("downloading document bytes: %w", err)
	}

	text, err := p.extractor.Extract(ctx, data, doc.MimeType)
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	return text, nil
}

func (p *Processor) fail(documentID string, cause error) {
	p.logger.Error("document processing failed", "document_id", documentID, "error", cause)
	if err := p.store.FailDocument(documentID); err != nil {
		p.logger.Error("failed to mark document as failed", "document_id", documentID, "error", err)
	}
}
