package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrDuplicateInterpretation is returned when an entry already has an interpretation row.
var ErrDuplicateInterpretation = errors.New("interpretation already exists for entry")

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withDefaultParams(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func withDefaultParams(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_busy_timeout=5000&_foreign_keys=on"
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS entries (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        title TEXT,
        content TEXT NOT NULL,
        mood TEXT,
        tags_json TEXT NOT NULL DEFAULT '[]',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_entries_user ON entries (user_id, created_at);

    CREATE TABLE IF NOT EXISTS interpretations (
        id TEXT PRIMARY KEY, -- UUID
        entry_id TEXT NOT NULL UNIQUE,
        content TEXT NOT NULL, -- JSON payload
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (entry_id) REFERENCES entries (id)
    );

    CREATE TABLE IF NOT EXISTS memory_vectors (
        namespace TEXT NOT NULL,
        entry_id TEXT NOT NULL,
        embedding_json TEXT NOT NULL, -- JSON array of float32
        mood TEXT,
        tags_json TEXT,
        created_at DATETIME,
        PRIMARY KEY (namespace, entry_id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Entry methods
func (s *SQLiteStore) CreateEntry(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO entries (id, user_id, title, content, mood, tags_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.ID, entry.UserID, entry.Title, entry.Content, entry.Mood, string(tagsJSON), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute entry insert: %w", err)
	}
	return nil
}

const entryColumns = "id, user_id, title, content, mood, tags_json, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var title, mood sql.NullString
	var tagsJSON string
	if err := row.Scan(&entry.ID, &entry.UserID, &title, &entry.Content, &mood, &tagsJSON, &entry.CreatedAt); err != nil {
		return nil, err
	}
	if title.Valid {
		entry.Title = &title.String
	}
	if mood.Valid {
		entry.Mood = &mood.String
	}
	if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for entry %s: %w", entry.ID, err)
	}
	return &entry, nil
}

// FindOwnedEntry returns the entry only when it belongs to userID; (nil, nil)
// covers both a missing entry and one owned by somebody else.
func (s *SQLiteStore) FindOwnedEntry(ctx context.Context, entryID, userID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = ? AND user_id = ?", entryID, userID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// FindOwnedEntries loads the listed entries that belong to userID, in the order of ids.
func (s *SQLiteStore) FindOwnedEntries(ctx context.Context, userID string, ids []string) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE user_id = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Entry, len(ids))
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		byID[entry.ID] = *entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	entries := make([]Entry, 0, len(byID))
	for _, id := range ids {
		if entry, ok := byID[id]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *SQLiteStore) ListEntriesByUser(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE user_id = ? ORDER BY created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Interpretation methods
func (s *SQLiteStore) FindInterpretationByEntryID(ctx context.Context, entryID string) (*Interpretation, error) {
	var it Interpretation
	err := s.db.QueryRowContext(ctx,
		"SELECT id, entry_id, content, created_at, updated_at FROM interpretations WHERE entry_id = ?", entryID).
		Scan(&it.ID, &it.EntryID, &it.Content, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get interpretation: %w", err)
	}
	return &it, nil
}

// InsertInterpretation creates the interpretation row for entryID. The UNIQUE
// constraint on entry_id turns a concurrent second insert into
// ErrDuplicateInterpretation instead of a second row.
func (s *SQLiteStore) InsertInterpretation(ctx context.Context, entryID string, content []byte) (*Interpretation, error) {
	now := s.now().UTC()
	it := &Interpretation{
		ID:        uuid.NewString(),
		EntryID:   entryID,
		Content:   string(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO interpretations (id, entry_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		it.ID, it.EntryID, it.Content, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrDuplicateInterpretation
		}
		return nil, fmt.Errorf("failed to execute interpretation insert: %w", err)
	}
	return it, nil
}

func (s *SQLiteStore) UpdateInterpretation(ctx context.Context, id string, content []byte) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE interpretations SET content = ?, updated_at = ? WHERE id = ?", string(content), s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to execute interpretation update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("interpretation %s not found, content not updated", id)
	}
	return nil
}

func (s *SQLiteStore) CountInterpretations(ctx context.Context, entryID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interpretations WHERE entry_id = ?", entryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count interpretations: %w", err)
	}
	return n, nil
}
