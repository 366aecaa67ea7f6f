// Package memory defines the per-user vector index that backs semantic recall
// of past entries, and a best-effort wrapper that never reports failures to
// its caller.
package memory

import (
	"context"
	"time"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
)

// Record is the vector stored for one entry inside a user's namespace.
type Record struct {
	EntryID   string
	Values    []float32
	CreatedAt time.Time
	Mood      string
	Tags      []string
}

type Match struct {
	EntryID string
	Score   float32
}

// Index is a vector store namespaced per user. Fetch returns (nil, nil) when
// the namespace holds no vector for the entry.
type Index interface {
	Upsert(ctx context.Context, namespace string, rec Record) error
	Fetch(ctx context.Context, namespace, entryID string) ([]float32, error)
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
}

// BestEffort wraps an optional Index. Every method reports availability with a
// boolean instead of an error; a nil index is permanently unavailable.
type BestEffort struct {
	index Index
	log   *logger.Logger
}

func NewBestEffort(index Index, log *logger.Logger) *BestEffort {
	return &BestEffort{index: index, log: log.With("component", "memory")}
}

func (b *BestEffort) Enabled() bool {
	return b != nil && b.index != nil
}

// Upsert stores rec and reports whether the write went through.
func (b *BestEffort) Upsert(ctx context.Context, userID string, rec Record) bool {
	if !b.Enabled() {
		return false
	}
	if err := b.index.Upsert(ctx, userID, rec); err != nil {
		b.log.Warn("memory upsert failed", "entry_id", rec.EntryID, "user_id", userID, "error", err)
		return false
	}
	return true
}

// Fetch returns the stored vector for entryID; ok is false when the vector is
// absent or the index is unavailable.
func (b *BestEffort) Fetch(ctx context.Context, userID, entryID string) ([]float32, bool) {
	if !b.Enabled() {
		return nil, false
	}
	values, err := b.index.Fetch(ctx, userID, entryID)
	if err != nil {
		b.log.Warn("memory fetch failed", "entry_id", entryID, "user_id", userID, "error", err)
		return nil, false
	}
	if len(values) == 0 {
		return nil, false
	}
	return values, true
}

// Neighbors returns up to limit matches closest to vector, never including
// excludeID. ok is false when the index is unavailable or the query failed.
func (b *BestEffort) Neighbors(ctx context.Context, userID string, vector []float32, limit int, excludeID string) ([]Match, bool) {
	if !b.Enabled() || len(vector) == 0 || limit <= 0 {
		return nil, false
	}
	// One extra slot because the entry itself is usually its own nearest neighbour.
	matches, err := b.index.Query(ctx, userID, vector, limit+1)
	if err != nil {
		b.log.Warn("memory query failed", "user_id", userID, "error", err)
		return nil, false
	}
	out := make([]Match, 0, limit)
	for _, m := range matches {
		if m.EntryID == "" || m.EntryID == excludeID {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, true
}
