// Package history archives session traffic in SQLite and exports it as
// JSON Lines or CSV.
package history

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	session  TEXT NOT NULL,
	target   TEXT NOT NULL,
	nick     TEXT NOT NULL,
	kind     TEXT NOT NULL,
	text     TEXT NOT NULL,
	at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_target_at ON messages(target, at);
`

// Record is one archived line of traffic.
type Record struct {
	ID      int64     `json:"id"`
	Session string    `json:"session"`
	Target  string    `json:"target"`
	Nick    string    `json:"nick"`
	Kind    string    `json:"kind"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Store is the SQLite-backed archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append archives one record.
func (s *Store) Append(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session, target, nick, kind, text, at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Session, r.Target, r.Nick, r.Kind, r.Text, r.At.UTC().UnixMilli())
	return err
}

// Query returns records for target within [from, to], oldest first.
// Zero bounds are open.
func (s *Store) Query(ctx context.Context, target string, from, to time.Time) ([]Record, error) {
	lo := int64(0)
	hi := int64(1<<63 - 1)
	if !from.IsZero() {
		lo = from.UTC().UnixMilli()
	}
	if !to.IsZero() {
		hi = to.UTC().UnixMilli()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session, target, nick, kind, text, at FROM messages
		 WHERE target = ? AND at BETWEEN ? AND ? ORDER BY at, id`,
		target, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var at int64
		if err := rows.Scan(&r.ID, &r.Session, &r.Target, &r.Nick, &r.Kind, &r.Text, &at); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Export writes the matching records to w in the named format, "jsonl"
// or "csv".
func (s *Store) Export(ctx context.Context, w io.Writer, target string, from, to time.Time, format string) error {
	records, err := s.Query(ctx, target, from, to)
	if err != nil {
		return err
	}
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"at", "session", "target", "nick", "kind", "text"}); err != nil {
			return err
		}
		for _, r := range records {
			row := []string{r.At.Format(time.RFC3339), r.Session, r.Target, r.Nick, r.Kind, r.Text}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
