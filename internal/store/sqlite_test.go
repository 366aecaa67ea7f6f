package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dreamsync/dreamsync-backend/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestEntry_CreateAndFindOwned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entry{UserID: "alice", Title: strPtr("Train"), Content: "I was on a train that never arrived", Mood: strPtr("Anxious"), Tags: []string{"travel", "delay"}}
	require.NoError(t, s.CreateEntry(ctx, e))
	require.NotEmpty(t, e.ID)

	got, err := s.FindOwnedEntry(ctx, e.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "I was on a train that never arrived", got.Content)
	assert.Equal(t, "Anxious", *got.Mood)
	assert.Equal(t, "Train", *got.Title)
	assert.Equal(t, []string{"travel", "delay"}, got.Tags)

	other, err := s.FindOwnedEntry(ctx, e.ID, "bob")
	require.NoError(t, err)
	assert.Nil(t, other)

	missing, err := s.FindOwnedEntry(ctx, "nope", "alice")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEntry_NullableFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entry{UserID: "alice", Content: "falling"}
	require.NoError(t, s.CreateEntry(ctx, e))

	got, err := s.FindOwnedEntry(ctx, e.ID, "alice")
	require.NoError(t, err)
	assert.Nil(t, got.Title)
	assert.Nil(t, got.Mood)
	assert.Empty(t, got.Tags)
}

func TestFindOwnedEntries_FiltersByOwnerAndKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &Entry{UserID: "alice", Content: "a"}
	b := &Entry{UserID: "alice", Content: "b"}
	c := &Entry{UserID: "bob", Content: "c"}
	for _, e := range []*Entry{a, b, c} {
		require.NoError(t, s.CreateEntry(ctx, e))
	}

	got, err := s.FindOwnedEntries(ctx, "alice", []string{b.ID, c.ID, "missing", a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)

	none, err := s.FindOwnedEntries(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := s.ListEntriesByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInterpretation_InsertFindUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entry{UserID: "alice", Content: "dream"}
	require.NoError(t, s.CreateEntry(ctx, e))

	none, err := s.FindInterpretationByEntryID(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	it, err := s.InsertInterpretation(ctx, e.ID, []byte(`{"summary":"one"}`))
	require.NoError(t, err)

	got, err := s.FindInterpretationByEntryID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, it.ID, got.ID)
	assert.Equal(t, `{"summary":"one"}`, got.Content)

	require.NoError(t, s.UpdateInterpretation(ctx, it.ID, []byte(`{"summary":"two"}`)))
	got, err = s.FindInterpretationByEntryID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"two"}`, got.Content)
	assert.Equal(t, it.ID, got.ID)

	assert.Error(t, s.UpdateInterpretation(ctx, "missing", []byte(`{}`)))
}

func TestInterpretation_UniquePerEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entry{UserID: "alice", Content: "dream"}
	require.NoError(t, s.CreateEntry(ctx, e))

	_, err := s.InsertInterpretation(ctx, e.ID, []byte(`{"summary":"first"}`))
	require.NoError(t, err)
	_, err = s.InsertInterpretation(ctx, e.ID, []byte(`{"summary":"second"}`))
	assert.True(t, errors.Is(err, ErrDuplicateInterpretation))

	n, err := s.CountInterpretations(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInterpretation_ConcurrentInsertsLeaveOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entry{UserID: "alice", Content: "dream"}
	require.NoError(t, s.CreateEntry(ctx, e))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted, duplicates := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertInterpretation(ctx, e.ID, []byte(`{}`))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				inserted++
			} else if errors.Is(err, ErrDuplicateInterpretation) {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	assert.Equal(t, workers-1, duplicates)
	n, err := s.CountInterpretations(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryIndex_UpsertFetchQuery(t *testing.T) {
	s := newTestStore(t)
	idx := s.MemoryIndex()
	ctx := context.Background()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, idx.Upsert(ctx, "alice", memory.Record{EntryID: "e1", Values: []float32{1, 0}, CreatedAt: created, Mood: "calm", Tags: []string{"sea"}}))
	require.NoError(t, idx.Upsert(ctx, "alice", memory.Record{EntryID: "e2", Values: []float32{0.8, 0.2}, CreatedAt: created}))
	require.NoError(t, idx.Upsert(ctx, "alice", memory.Record{EntryID: "e3", Values: []float32{0, 1}, CreatedAt: created}))
	require.NoError(t, idx.Upsert(ctx, "bob", memory.Record{EntryID: "b1", Values: []float32{1, 0}, CreatedAt: created}))

	got, err := idx.Fetch(ctx, "alice", "e1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got)

	// Namespaces are isolated.
	got, err = idx.Fetch(ctx, "bob", "e1")
	require.NoError(t, err)
	assert.Nil(t, got)

	matches, err := idx.Query(ctx, "alice", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "e1", matches[0].EntryID)
	assert.Equal(t, "e2", matches[1].EntryID)

	// Upsert replaces the vector in place.
	require.NoError(t, idx.Upsert(ctx, "alice", memory.Record{EntryID: "e3", Values: []float32{1, 0.01}, CreatedAt: created}))
	matches, err = idx.Query(ctx, "alice", []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "e2", matches[0].EntryID)

	assert.Error(t, idx.Upsert(ctx, "alice", memory.Record{EntryID: "empty"}))
}
