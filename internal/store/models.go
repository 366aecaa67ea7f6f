package store

import "time"

type Entry struct {
	ID        string    `json:"id"` // UUID
	UserID    string    `json:"user_id"`
	Title     *string   `json:"title"` // Nullable
	Content   string    `json:"content"`
	Mood      *string   `json:"mood"` // Nullable
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// Interpretation is the single stored interpretation of an entry. Content is
// the JSON payload exactly as it was persisted.
type Interpretation struct {
	ID        string    `json:"id"` // UUID
	EntryID   string    `json:"entry_id"`
	Content   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type memoryVector struct {
	EntryID       string
	EmbeddingJSON string
}
