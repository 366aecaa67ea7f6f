package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
	"github.com/dreamsync/dreamsync-backend/internal/store"
)

const (
	indexTimeout    = 30 * time.Second
	reindexInterval = 40 * time.Millisecond // stays under the embedding rate limit (1500/min)
	maxTagsPerEntry = 20
)

type EntryInput struct {
	Title   *string  `json:"title"`
	Content string   `json:"content"`
	Mood    *string  `json:"mood"`
	Tags    []string `json:"tags"`
}

type EntryService struct {
	entries EntryStore
	memory  *MemoryService
	log     *logger.Logger
	wg      sync.WaitGroup
}

func NewEntryService(entries EntryStore, memory *MemoryService, log *logger.Logger) *EntryService {
	return &EntryService{
		entries: entries,
		memory:  memory,
		log:     log.With("service", "EntryService"),
	}
}

// CreateEntry stores a journal entry and indexes it for semantic memory in
// the background. Indexing failures are logged only.
func (s *EntryService) CreateEntry(ctx context.Context, userID string, in EntryInput) (*store.Entry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidEntry)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidEntry)
	}

	entry := &store.Entry{
		UserID:  userID,
		Title:   optional(in.Title),
		Content: content,
		Mood:    optional(in.Mood),
		Tags:    normalizeTags(in.Tags),
	}
	if err := s.entries.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	if s.memory != nil {
		s.wg.Add(1)
		go s.indexInBackground(*entry)
	}
	return entry, nil
}

func (s *EntryService) indexInBackground(entry store.Entry) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	if s.memory.Index(ctx, entry) {
		s.log.Debug("entry indexed", "entry_id", entry.ID)
	} else {
		s.log.Warn("entry not indexed for memory", "entry_id", entry.ID, "user_id", entry.UserID)
	}
}

// ListEntries returns userID's entries, newest first. A user with no entries
// gets an empty slice.
func (s *EntryService) ListEntries(ctx context.Context, userID string) ([]store.Entry, error) {
	entries, err := s.entries.ListEntriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	out := make([]store.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// GetEntry returns one entry owned by userID. A missing entry and another
// user's entry both yield ErrNotFound.
func (s *EntryService) GetEntry(ctx context.Context, userID, entryID string) (*store.Entry, error) {
	if userID == "" || entryID == "" {
		return nil, ErrNotFound
	}
	entry, err := s.entries.FindOwnedEntry(ctx, entryID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

// Wait blocks until every background indexing job has finished.
func (s *EntryService) Wait() {
	s.wg.Wait()
}

// Reindex embeds every entry of userID into the memory index, pacing calls to
// the embedding service. It returns the number of entries indexed.
func (s *EntryService) Reindex(ctx context.Context, userID string) (int, error) {
	return s.reindex(ctx, userID, reindexInterval)
}

func (s *EntryService) reindex(ctx context.Context, userID string, interval time.Duration) (int, error) {
	if s.memory == nil || !s.memory.index.Enabled() {
		return 0, fmt.Errorf("memory index is disabled")
	}
	entries, err := s.entries.ListEntriesByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list entries: %w", err)
	}
	if len(entries) == 0 {
		s.log.Info("no entries to reindex", "user_id", userID)
		return 0, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	count := 0
	for i, entry := range entries {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		case <-ticker.C:
		}

		if !s.memory.Index(ctx, entry) {
			s.log.Warn("failed to index entry, skipping", "entry_id", entry.ID, "position", i+1)
			continue
		}
		count++
		if count%10 == 0 || count == len(entries) {
			s.log.Info("reindex progress", "indexed", count, "total", len(entries))
		}
	}
	s.log.Info("reindex finished", "user_id", userID, "indexed", count, "total", len(entries))
	return count, nil
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// normalizeTags trims, lowercases and de-duplicates tags, keeping first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTagsPerEntry {
			break
		}
	}
	return out
}
