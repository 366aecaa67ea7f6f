package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
	"github.com/dreamsync/dreamsync-backend/internal/memory"
	"github.com/dreamsync/dreamsync-backend/internal/metrics"
	"github.com/dreamsync/dreamsync-backend/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// keywordEmbedder maps text onto a tiny vector space keyed by a few dream images.
type keywordEmbedder struct {
	err error

	mu    sync.Mutex
	calls int
}

var embedKeywords = []string{"train", "water", "flying", "teeth"}

func (k *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	k.mu.Lock()
	k.calls++
	k.mu.Unlock()
	if k.err != nil {
		return nil, k.err
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(embedKeywords)+1)
	for i, kw := range embedKeywords {
		if strings.Contains(lower, kw) {
			vec[i] = 1
		}
	}
	vec[len(embedKeywords)] = 0.1
	return vec, nil
}

func (k *keywordEmbedder) callCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls
}

func createEntry(t *testing.T, s *store.SQLiteStore, userID, content string, created time.Time) store.Entry {
	t.Helper()
	e := &store.Entry{UserID: userID, Content: content, CreatedAt: created, Tags: []string{}}
	require.NoError(t, s.CreateEntry(context.Background(), e))
	return *e
}

func newMemoryService(s *store.SQLiteStore, emb Embedder, m *metrics.Pipeline) *MemoryService {
	var index memory.Index
	if s != nil {
		index = s.MemoryIndex()
	}
	return NewMemoryService(
		NewEmbeddingGateway(emb, logger.Nop()),
		memory.NewBestEffort(index, logger.Nop()),
		s, m, logger.Nop())
}

func TestEmbeddingGateway(t *testing.T) {
	ctx := context.Background()

	_, ok := NewEmbeddingGateway(nil, logger.Nop()).Embed(ctx, "x")
	assert.False(t, ok)

	_, ok = NewEmbeddingGateway(&keywordEmbedder{err: errors.New("quota exceeded")}, logger.Nop()).Embed(ctx, "x")
	assert.False(t, ok)

	_, ok = NewEmbeddingGateway(&keywordEmbedder{err: errEmbeddingDisabled}, logger.Nop()).Embed(ctx, "x")
	assert.False(t, ok)

	vec, ok := NewEmbeddingGateway(&keywordEmbedder{}, logger.Nop()).Embed(ctx, "a train")
	require.True(t, ok)
	assert.Equal(t, float32(1), vec[0])
}

func TestMemoryService_RecallExcludesSelfAndOtherUsers(t *testing.T) {
	s := newTestStore(t)
	emb := &keywordEmbedder{}
	m := metrics.NewPipeline()
	svc := newMemoryService(s, emb, m)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)

	current := createEntry(t, s, "alice", "I was on a train that never arrived", base)
	past1 := createEntry(t, s, "alice", "A night train crossing a bridge over water", base.Add(-48*time.Hour))
	past2 := createEntry(t, s, "alice", "Flying above the city", base.Add(-24*time.Hour))
	bobs := createEntry(t, s, "bob", "Missing the last train home", base.Add(-time.Hour))
	for _, e := range []store.Entry{current, past1, past2, bobs} {
		require.True(t, svc.Index(ctx, e))
	}

	notes := svc.Recall(ctx, current)
	require.NotEmpty(t, notes)
	assert.Equal(t, "Dream: A night train crossing a bridge over water", notes[0])
	for _, n := range notes {
		assert.NotContains(t, n, "never arrived")
		assert.NotContains(t, n, "last train home")
	}
	assert.LessOrEqual(t, len(notes), MemoryRecallLimit)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MemoryRecall.WithLabelValues(metrics.RecallHit)))
}

func TestMemoryService_RecallOnlyEntry(t *testing.T) {
	s := newTestStore(t)
	m := metrics.NewPipeline()
	svc := newMemoryService(s, &keywordEmbedder{}, m)

	only := createEntry(t, s, "alice", "Teeth falling out", time.Now())
	assert.Empty(t, svc.Recall(context.Background(), only))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MemoryRecall.WithLabelValues(metrics.RecallEmpty)))
}

func TestMemoryService_EntryVectorEmbedsOnce(t *testing.T) {
	s := newTestStore(t)
	emb := &keywordEmbedder{}
	svc := newMemoryService(s, emb, nil)
	ctx := context.Background()

	e := createEntry(t, s, "alice", "Deep water", time.Now())
	v1, ok := svc.EntryVector(ctx, e)
	require.True(t, ok)
	v2, ok := svc.EntryVector(ctx, e)
	require.True(t, ok)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, emb.callCount())
}

func TestMemoryService_Degrades(t *testing.T) {
	ctx := context.Background()
	e := store.Entry{ID: "e1", UserID: "alice", Content: "water"}

	var nilSvc *MemoryService
	assert.Nil(t, nilSvc.Recall(ctx, e))

	m := metrics.NewPipeline()
	noIndex := newMemoryService(nil, &keywordEmbedder{}, m)
	assert.Nil(t, noIndex.Recall(ctx, e))
	assert.False(t, noIndex.Index(ctx, e))

	s := newTestStore(t)
	failing := newMemoryService(s, &keywordEmbedder{err: errors.New("503")}, m)
	assert.Nil(t, failing.Recall(ctx, e))
	assert.False(t, failing.Index(ctx, e))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MemoryRecall.WithLabelValues(metrics.RecallUnavailable)))
}
