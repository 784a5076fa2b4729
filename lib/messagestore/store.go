// Package messagestore archives portal messages in sqlite. the portal
// only keeps messages around for so long, so anything a user has read
// gets copied here for later retrieval.
package messagestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"
	"wilma-backend/lib/timezone"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

type Record struct {
	User        string
	Id          string
	Folder      string
	Subject     string
	Sender      string
	Timestamp   time.Time
	Content     string
	Recipients  []string
	Attachments []string
}

// Archive upserts a message under its (user, id) key. re-archiving a
// message the portal has since amended keeps the newest copy.
func (s Store) Archive(ctx context.Context, rec Record) error {
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return err
	}
	attachments, err := json.Marshal(rec.Attachments)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO message (
			user, id, folder, subject, sender,
			timestamp, content, recipients, attachments, archived_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user, id) DO UPDATE SET
			folder = excluded.folder,
			subject = excluded.subject,
			sender = excluded.sender,
			timestamp = excluded.timestamp,
			content = excluded.content,
			recipients = excluded.recipients,
			attachments = excluded.attachments,
			archived_at = excluded.archived_at
	`,
		rec.User, rec.Id, rec.Folder, rec.Subject, rec.Sender,
		rec.Timestamp.Unix(), rec.Content, string(recipients), string(attachments),
		timezone.Now().Unix(),
	)
	return err
}

// Get returns a single archived message. a missing message surfaces as
// sql.ErrNoRows.
func (s Store) Get(ctx context.Context, user, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user, id, folder, subject, sender,
		       timestamp, content, recipients, attachments
		FROM message
		WHERE user = ? AND id = ?
	`, user, id)
	return scanRecord(ctx, row)
}

// List returns a user's archived messages in a folder, newest first.
// limit <= 0 means no limit.
func (s Store) List(ctx context.Context, user, folder string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user, id, folder, subject, sender,
		       timestamp, content, recipients, attachments
		FROM message
		WHERE user = ? AND folder = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, user, folder, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(ctx, rows)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable archived message", "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(ctx context.Context, row scannable) (Record, error) {
	var rec Record
	var timestamp int64
	var recipients, attachments string

	err := row.Scan(
		&rec.User, &rec.Id, &rec.Folder, &rec.Subject, &rec.Sender,
		&timestamp, &rec.Content, &recipients, &attachments,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Timestamp = time.Unix(timestamp, 0).In(timezone.Location)

	if err := json.Unmarshal([]byte(recipients), &rec.Recipients); err != nil {
		slog.WarnContext(ctx, "failed to unmarshal db recipients", "err", err)
	}
	if err := json.Unmarshal([]byte(attachments), &rec.Attachments); err != nil {
		slog.WarnContext(ctx, "failed to unmarshal db attachments", "err", err)
	}
	return rec, nil
}
