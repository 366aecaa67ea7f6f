package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dreamsync/dreamsync-backend/internal/memory"
	"github.com/dreamsync/dreamsync-backend/internal/utils"
)

// MemoryIndex is a local memory.Index kept in the memory_vectors table. Queries
// are brute-force cosine similarity over one user's namespace.
type MemoryIndex struct {
	store *SQLiteStore
}

func (s *SQLiteStore) MemoryIndex() *MemoryIndex {
	return &MemoryIndex{store: s}
}

var _ memory.Index = (*MemoryIndex)(nil)

func (m *MemoryIndex) Upsert(ctx context.Context, namespace string, rec memory.Record) error {
	if len(rec.Values) == 0 {
		return fmt.Errorf("empty embedding for entry %s", rec.EntryID)
	}
	embeddingBytes, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	var tagsJSON *string
	if len(rec.Tags) > 0 {
		b, err := json.Marshal(rec.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		s := string(b)
		tagsJSON = &s
	}
	var mood *string
	if rec.Mood != "" {
		mood = &rec.Mood
	}

	_, err = m.store.db.ExecContext(ctx, `
        INSERT INTO memory_vectors (namespace, entry_id, embedding_json, mood, tags_json, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (namespace, entry_id) DO UPDATE SET
            embedding_json = excluded.embedding_json,
            mood = excluded.mood,
            tags_json = excluded.tags_json,
            created_at = excluded.created_at`,
		namespace, rec.EntryID, string(embeddingBytes), mood, tagsJSON, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert memory vector: %w", err)
	}
	return nil
}

func (m *MemoryIndex) Fetch(ctx context.Context, namespace, entryID string) ([]float32, error) {
	var embeddingJSON string
	err := m.store.db.QueryRowContext(ctx,
		"SELECT embedding_json FROM memory_vectors WHERE namespace = ? AND entry_id = ?", namespace, entryID).
		Scan(&embeddingJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch memory vector: %w", err)
	}
	var values []float32
	if err := json.Unmarshal([]byte(embeddingJSON), &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding for entry %s: %w", entryID, err)
	}
	return values, nil
}

func (m *MemoryIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]memory.Match, error) {
	rows, err := m.store.db.QueryContext(ctx,
		"SELECT entry_id, embedding_json FROM memory_vectors WHERE namespace = ?", namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory vectors: %w", err)
	}
	defer rows.Close()

	candidates := make(map[string][]float32)
	for rows.Next() {
		var mv memoryVector
		if err := rows.Scan(&mv.EntryID, &mv.EmbeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan memory vector row: %w", err)
		}
		var values []float32
		if err := json.Unmarshal([]byte(mv.EmbeddingJSON), &values); err != nil || len(values) == 0 {
			// A corrupt row only costs recall quality.
			continue
		}
		candidates[mv.EntryID] = values
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memory vectors: %w", err)
	}

	ranked := utils.RankBySimilarity(vector, candidates, topK)
	matches := make([]memory.Match, 0, len(ranked))
	for _, r := range ranked {
		matches = append(matches, memory.Match{EntryID: r.ID, Score: r.Score})
	}
	return matches, nil
}
