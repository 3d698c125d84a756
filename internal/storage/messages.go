package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) CreateMessage(m Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	// Nanosecond precision keeps the (created_at, id) sort aligned with
	// insertion order for messages created within the same second.
	_, err := s.db.Exec(`
		INSERT INTO messages (id, document_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.DocumentID, m.Role, m.Content, m.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListMessages returns up to limit messages of a document in (created_at ASC,
// id ASC) order, starting at the message identified by cursor (inclusive).
// An empty cursor starts from the beginning. When more messages remain, the
// returned nextCursor is the id of the first message of the next page;
// otherwise it is empty.
//
// The result is computed by fetching limit+1 rows and dropping the extra one,
// avoiding a separate count query. Walking pages until nextCursor is empty
// yields every message exactly once: messages appended concurrently sort after
// the cursor point and surface on a later page.
func (s *Store) ListMessages(documentID string, limit int, cursor string) ([]Message, string, error) {
	if limit < 1 {
		limit = 1
	}

	query := `
		SELECT id, document_id, role, content, created_at
		FROM messages WHERE document_id = ?`
	args := []any{documentID}

	if cursor != "" {
		// Resolve the cursor row; an unknown id is a client error, not an
		// empty page.
		var curCreatedAt string
		err := s.db.QueryRow(
			`SELECT created_at FROM messages WHERE id = ? AND document_id = ?`,
			cursor, documentID,
		).Scan(&curCreatedAt)
		if err == sql.ErrNoRows {
			return nil, "", ErrInvalidCursor
		}
		if err != nil {
			return nil, "", fmt.Errorf("resolving cursor: %w", err)
		}

		// Seek from the cursor row inclusive: nextCursor is the first row of
		// the next page, so it must be returned by the follow-up call.
		query += ` AND (created_at > ? OR (created_at = ? AND id >= ?))`
		args = append(args, curCreatedAt, curCreatedAt, cursor)
	}

	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, "", err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, "", fmt.Errorf("parsing created_at: %w", err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(results) > limit {
		nextCursor = results[limit].ID
		results = results[:limit]
	}
	return results, nextCursor, nil
}

// ListAllMessages returns every message of a document in conversation order.
// Used by the transcript export.
func (s *Store) ListAllMessages(documentID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, document_id, role, content, created_at
		FROM messages WHERE document_id = ?
		ORDER BY created_at ASC, id ASC`, documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}
