package core

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
	"github.com/dreamsync/dreamsync-backend/internal/memory"
	"github.com/dreamsync/dreamsync-backend/internal/metrics"
	"github.com/dreamsync/dreamsync-backend/internal/store"
)

const (
	MemoryRecallLimit   = 5
	defaultRecallBudget = 10 * time.Second
)

// EmbeddingGateway wraps an optional Embedder. It never returns an error:
// the boolean reports whether a vector was produced.
type EmbeddingGateway struct {
	embedder Embedder
	log      *logger.Logger
}

func NewEmbeddingGateway(embedder Embedder, log *logger.Logger) *EmbeddingGateway {
	return &EmbeddingGateway{embedder: embedder, log: log.With("component", "EmbeddingGateway")}
}

func (g *EmbeddingGateway) Embed(ctx context.Context, text string) ([]float32, bool) {
	if g == nil || g.embedder == nil {
		return nil, false
	}
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, errEmbeddingDisabled) {
			g.log.Debug("embedding skipped", "reason", err.Error())
		} else {
			g.log.Warn("embedding unavailable", "error", err)
		}
		return nil, false
	}
	if len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

// MemoryService retrieves summaries of a user's semantically related past
// entries. Every failure degrades to "no memory".
type MemoryService struct {
	gateway *EmbeddingGateway
	index   *memory.BestEffort
	entries EntryStore
	metrics *metrics.Pipeline
	log     *logger.Logger
	budget  time.Duration

	inflight singleflight.Group
}

func NewMemoryService(gateway *EmbeddingGateway, index *memory.BestEffort, entries EntryStore, m *metrics.Pipeline, log *logger.Logger) *MemoryService {
	return &MemoryService{
		gateway: gateway,
		index:   index,
		entries: entries,
		metrics: m,
		log:     log.With("service", "MemoryService"),
		budget:  defaultRecallBudget,
	}
}

// EntryVector returns the stored vector for entry, embedding and storing it
// first when the index has none. Concurrent calls for the same entry share
// one embedding request.
func (m *MemoryService) EntryVector(ctx context.Context, entry store.Entry) ([]float32, bool) {
	v, _, _ := m.inflight.Do(entry.UserID+"/"+entry.ID, func() (interface{}, error) {
		if vec, ok := m.index.Fetch(ctx, entry.UserID, entry.ID); ok {
			return vec, nil
		}
		vec, ok := m.gateway.Embed(ctx, StructuredEntryText(entry))
		if !ok {
			return []float32(nil), nil
		}
		m.index.Upsert(ctx, entry.UserID, recordFor(entry, vec))
		return vec, nil
	})
	vec, _ := v.([]float32)
	return vec, len(vec) > 0
}

// Index embeds entry and upserts it into the user's namespace. It reports
// whether the vector was stored.
func (m *MemoryService) Index(ctx context.Context, entry store.Entry) bool {
	if !m.index.Enabled() {
		return false
	}
	vec, ok := m.gateway.Embed(ctx, StructuredEntryText(entry))
	if !ok {
		return false
	}
	return m.index.Upsert(ctx, entry.UserID, recordFor(entry, vec))
}

// Recall returns up to MemoryRecallLimit one-line notes about the entries
// closest to entry, never including entry itself.
func (m *MemoryService) Recall(ctx context.Context, entry store.Entry) []string {
	if m == nil {
		return nil
	}
	if !m.index.Enabled() {
		m.metrics.Recall(metrics.RecallUnavailable)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.budget)
	defer cancel()

	vec, ok := m.EntryVector(ctx, entry)
	if !ok {
		m.metrics.Recall(metrics.RecallUnavailable)
		return nil
	}

	matches, ok := m.index.Neighbors(ctx, entry.UserID, vec, MemoryRecallLimit, entry.ID)
	if !ok {
		m.metrics.Recall(metrics.RecallUnavailable)
		return nil
	}
	if len(matches) == 0 {
		m.metrics.Recall(metrics.RecallEmpty)
		return nil
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.EntryID)
	}
	past, err := m.entries.FindOwnedEntries(ctx, entry.UserID, ids)
	if err != nil {
		m.log.Warn("memory retrieval failed, continuing without context", "entry_id", entry.ID, "error", err)
		m.metrics.Recall(metrics.RecallUnavailable)
		return nil
	}

	notes := make([]string, 0, len(past))
	for _, p := range past {
		if p.ID == entry.ID {
			continue
		}
		notes = append(notes, MemoryNote(p))
	}
	if len(notes) == 0 {
		m.metrics.Recall(metrics.RecallEmpty)
		return nil
	}
	m.metrics.Recall(metrics.RecallHit)
	return notes
}

func recordFor(entry store.Entry, vec []float32) memory.Record {
	return memory.Record{
		EntryID:   entry.ID,
		Values:    vec,
		CreatedAt: entry.CreatedAt,
		Mood:      deref(entry.Mood),
		Tags:      entry.Tags,
	}
}
