// Package store persists fetched messages in a local sqlite database so
// rule runs can work offline and remember which messages were already
// evaluated.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meko-christian/mail-triage/internal/triage"
)

const schema = `
CREATE TABLE IF NOT EXISTS emails (
	id TEXT PRIMARY KEY,
	thread_id TEXT,
	from_address TEXT,
	subject TEXT,
	received_at INTEGER,
	body_text TEXT,
	is_read INTEGER NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0
);
`

// Store wraps a single sqlite handle. Access is sequential; there is no
// transaction spanning multiple messages, so a crash mid-run leaves each
// message's processed flag individually committed and the next run resumes
// where it stopped.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts a message, silently keeping the existing row when the id is
// already present.
func (s *Store) Save(msg triage.Message) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO emails (id, thread_id, from_address, subject, received_at, body_text, is_read, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.From, msg.Subject,
		msg.ReceivedAt.Unix(), msg.Body, boolToInt(msg.IsRead), boolToInt(msg.Processed),
	)
	if err != nil {
		return fmt.Errorf("failed to save message %s: %w", msg.ID, err)
	}
	return nil
}

// ListAll returns every stored message, oldest first.
func (s *Store) ListAll() ([]triage.Message, error) {
	return s.list(`SELECT id, thread_id, from_address, subject, received_at, body_text, is_read, processed
		FROM emails ORDER BY received_at`)
}

// ListUnprocessed returns messages the engine has not evaluated yet,
// oldest first.
func (s *Store) ListUnprocessed() ([]triage.Message, error) {
	return s.list(`SELECT id, thread_id, from_address, subject, received_at, body_text, is_read, processed
		FROM emails WHERE processed = 0 ORDER BY received_at`)
}

// ListAllIDs returns every stored message id, used by ingestion to skip
// refetching known messages.
func (s *Store) ListAllIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM emails`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkProcessed flags one message as evaluated.
func (s *Store) MarkProcessed(id string) error {
	return s.exec(`UPDATE emails SET processed = 1 WHERE id = ?`, id)
}

// ResetProcessed clears the processed flag for one message.
func (s *Store) ResetProcessed(id string) error {
	return s.exec(`UPDATE emails SET processed = 0 WHERE id = ?`, id)
}

// ResetAllProcessed clears the processed flag on every message.
func (s *Store) ResetAllProcessed() error {
	return s.exec(`UPDATE emails SET processed = 0`)
}

// ResetProcessedOlderThan clears the processed flag on messages received
// more than the given number of days ago.
func (s *Store) ResetProcessedOlderThan(days int) error {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	return s.exec(`UPDATE emails SET processed = 0 WHERE received_at < ?`, cutoff)
}

// UpdateReadState mirrors a successful provider-side read-state change into
// the local copy.
func (s *Store) UpdateReadState(id string, read bool) error {
	return s.exec(`UPDATE emails SET is_read = ? WHERE id = ?`, boolToInt(read), id)
}

func (s *Store) list(query string) ([]triage.Message, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []triage.Message
	for rows.Next() {
		var (
			msg                 triage.Message
			receivedAt          int64
			isRead, isProcessed int
		)
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.From, &msg.Subject,
			&receivedAt, &msg.Body, &isRead, &isProcessed); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ReceivedAt = time.Unix(receivedAt, 0)
		msg.IsRead = isRead != 0
		msg.Processed = isProcessed != 0
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *Store) exec(query string, args ...any) error {
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to update emails: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
