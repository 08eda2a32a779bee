package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// CompletionRecord describes one completion call. It carries no message content.
type CompletionRecord struct {
	At           time.Time
	Model        string
	MessageCount int
	Digest       string
	Duration     time.Duration
	Err          error
}

// Journal appends completion call records to a SQLite database
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (creating if needed) the journal database at path
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createCompletionsTable := `
	CREATE TABLE IF NOT EXISTS completions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at DATETIME,
		model TEXT,
		message_count INTEGER,
		digest TEXT,
		duration_ms INTEGER,
		error TEXT
	);`

	if _, err := db.Exec(createCompletionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create completions table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores rec
func (j *Journal) Record(ctx context.Context, rec CompletionRecord) error {
	var errText sql.NullString
	if rec.Err != nil {
		errText = sql.NullString{String: rec.Err.Error(), Valid: true}
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO completions (at, model, message_count, digest, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)",
		rec.At, rec.Model, rec.MessageCount, rec.Digest, rec.Duration.Milliseconds(), errText,
	)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

// Count returns the number of recorded completions
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM completions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return n, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
