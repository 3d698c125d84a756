package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) CreateDocument(d Document) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	if d.Status == "" {
		d.Status = StatusUploaded
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (id, user_id, file_name, mime_type, storage_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.FileName, d.MimeType, d.StoragePath, d.Status,
		d.CreatedAt.UTC().Format(time.RFC3339), d.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetDocument(id string) (Document, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, file_name, mime_type, storage_path, status, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func (s *Store) ListDocuments(userID string) ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, file_name, mime_type, storage_path, status, created_at, updated_at
		FROM documents WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// ClaimDocument transitions a document from UPLOADED to PROCESSING. The
// transition only succeeds when the current status is exactly UPLOADED, so a
// concurrent or repeated trigger on the same document is rejected with
// ErrNotClaimable instead of restarting an in-flight or terminal run.
func (s *Store) ClaimDocument(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE documents SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		StatusProcessing, now, id, StatusUploaded,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents WHERE id = ?", id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrNotClaimable
}

// CompleteDocument stores the extracted text and marks the document COMPLETED
// in a single transaction, so no reader ever observes one without the other.
func (s *Store) CompleteDocument(id, text string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning complete transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT INTO extracted_texts (document_id, text, created_at)
		VALUES (?, ?, ?)`, id, text, now,
	); err != nil {
		return fmt.Errorf("inserting extracted text: %w", err)
	}

	res, err := tx.Exec(`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		StatusCompleted, now, id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// FailDocument marks the document FAILED. The document keeps no extracted text;
// reprocessing requires a fresh upload.
func (s *Store) FailDocument(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetExtractedText(documentID string) (ExtractedText, error) {
	var et ExtractedText
	var createdAt string
	err := s.db.QueryRow(`
		SELECT document_id, text, created_at
		FROM extracted_texts WHERE document_id = ?`, documentID,
	).Scan(&et.DocumentID, &et.Text, &createdAt)
	if err == sql.ErrNoRows {
		return ExtractedText{}, ErrNotFound
	}
	if err != nil {
		return ExtractedText{}, err
	}
	if et.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return ExtractedText{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return et, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.UserID, &d.FileName, &d.MimeType, &d.StoragePath, &d.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Document{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Document{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return d, nil
}
