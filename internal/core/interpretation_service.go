package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreamsync/dreamsync-backend/internal/interpretation"
	"github.com/dreamsync/dreamsync-backend/internal/lock"
	"github.com/dreamsync/dreamsync-backend/internal/logger"
	"github.com/dreamsync/dreamsync-backend/internal/metrics"
	"github.com/dreamsync/dreamsync-backend/internal/store"
)

// EntryStore is the subset of the journal store the services read and write.
type EntryStore interface {
	CreateEntry(ctx context.Context, entry *store.Entry) error
	FindOwnedEntry(ctx context.Context, entryID, userID string) (*store.Entry, error)
	FindOwnedEntries(ctx context.Context, userID string, ids []string) ([]store.Entry, error)
	ListEntriesByUser(ctx context.Context, userID string) ([]store.Entry, error)
}

// InterpretationStore persists at most one interpretation per entry.
// InsertInterpretation fails with store.ErrDuplicateInterpretation when a row
// already exists.
type InterpretationStore interface {
	FindInterpretationByEntryID(ctx context.Context, entryID string) (*store.Interpretation, error)
	InsertInterpretation(ctx context.Context, entryID string, content []byte) (*store.Interpretation, error)
	UpdateInterpretation(ctx context.Context, id string, content []byte) error
}

type InterpretationServiceDeps struct {
	Entries         EntryStore
	Interpretations InterpretationStore
	Generator       Generator
	Memory          *MemoryService // nil disables recall
	Locker          lock.Locker    // nil disables the per-entry lock
	Metrics         *metrics.Pipeline
	Log             *logger.Logger
	PickLens        LensPicker
	Temperature     float32
	LockTimeout     time.Duration
}

// InterpretationService returns the single stored interpretation of an entry,
// generating and persisting one on first request.
type InterpretationService struct {
	entries         EntryStore
	interpretations InterpretationStore
	generator       Generator
	memory          *MemoryService
	locker          lock.Locker
	metrics         *metrics.Pipeline
	log             *logger.Logger
	pickLens        LensPicker
	temperature     float32
	lockTimeout     time.Duration
}

func NewInterpretationService(d InterpretationServiceDeps) *InterpretationService {
	if d.PickLens == nil {
		d.PickLens = RandomLens
	}
	if d.LockTimeout <= 0 {
		d.LockTimeout = 45 * time.Second
	}
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &InterpretationService{
		entries:         d.Entries,
		interpretations: d.Interpretations,
		generator:       d.Generator,
		memory:          d.Memory,
		locker:          d.Locker,
		metrics:         d.Metrics,
		log:             log.With("service", "InterpretationService"),
		pickLens:        d.PickLens,
		temperature:     d.Temperature,
		lockTimeout:     d.LockTimeout,
	}
}

// GetInterpretation returns the stored interpretation without generating one.
func (s *InterpretationService) GetInterpretation(ctx context.Context, userID, entryID string) (*interpretation.Payload, error) {
	if _, err := s.ownedEntry(ctx, userID, entryID); err != nil {
		return nil, err
	}
	existing, err := s.interpretations.FindInterpretationByEntryID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interpretation: %w", err)
	}
	if existing == nil {
		return nil, ErrNoInterpretation
	}
	payload, err := decodeStored(existing)
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// GenerateInterpretation returns the entry's interpretation, creating it if
// needed. With forceRegenerate the stored row is replaced in place. The only
// errors are ErrNotFound, ErrConfiguration and storage failures: every
// generation problem resolves to the fallback payload.
func (s *InterpretationService) GenerateInterpretation(ctx context.Context, userID, entryID string, forceRegenerate bool) (*interpretation.Payload, error) {
	entry, err := s.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	release := s.acquire(ctx, entryID)
	defer release()

	existing, err := s.interpretations.FindInterpretationByEntryID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interpretation: %w", err)
	}
	if existing != nil && !forceRegenerate {
		payload, err := decodeStored(existing)
		if err == nil {
			s.metrics.Outcome(metrics.OutcomeExisting)
			return &payload, nil
		}
		s.log.Warn("stored interpretation failed checks, regenerating", "entry_id", entryID, "error", err)
	}

	memoryNotes := s.memory.Recall(ctx, *entry)
	lens := s.pickLens()
	prompt := BuildPrompt(PromptInput{Entry: *entry, Lens: lens, Memory: memoryNotes})

	result, err := s.generator.Generate(ctx, prompt, GenerateOptions{Temperature: s.temperature})
	if err != nil {
		if !errors.Is(err, ErrConfiguration) {
			err = fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		s.log.Error("interpretation generation is not configured", "entry_id", entryID, "error", err)
		return nil, err
	}

	payload, outcome := s.resolve(entryID, result)

	content, err := payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode interpretation: %w", err)
	}

	if existing != nil {
		if err := s.interpretations.UpdateInterpretation(ctx, existing.ID, content); err != nil {
			return nil, fmt.Errorf("failed to update interpretation: %w", err)
		}
	} else if _, err := s.interpretations.InsertInterpretation(ctx, entryID, content); err != nil {
		if !errors.Is(err, store.ErrDuplicateInterpretation) {
			return nil, fmt.Errorf("failed to store interpretation: %w", err)
		}
		// Another writer got there first; its row is the answer.
		winner, err := s.interpretations.FindInterpretationByEntryID(ctx, entryID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload concurrent interpretation: %w", err)
		}
		if winner == nil {
			return nil, fmt.Errorf("interpretation for entry %s vanished after duplicate insert", entryID)
		}
		stored, err := decodeStored(winner)
		if err != nil {
			return nil, err
		}
		s.metrics.Outcome(metrics.OutcomeExisting)
		return &stored, nil
	}

	s.metrics.Outcome(outcome)
	s.log.Info("interpretation stored", "entry_id", entryID, "lens", string(lens), "memory_notes", len(memoryNotes), "outcome", outcome)
	return &payload, nil
}

// resolve turns a generation result into a payload that passed both the
// structure and the safety checks, substituting the fallback otherwise.
func (s *InterpretationService) resolve(entryID string, result GenerationResult) (interpretation.Payload, string) {
	if !result.OK() {
		s.log.Warn("generation failed, using fallback", "entry_id", entryID, "status", string(result.Status), "error", result.Err)
		s.metrics.GenerationFailure(string(result.Status))
		return interpretation.Fallback(), metrics.OutcomeFallback
	}

	payload, err := interpretation.Validate(result.JSON)
	if err != nil {
		s.log.Warn("generated interpretation has invalid structure, using fallback", "entry_id", entryID, "error", err)
		s.metrics.GenerationFailure("invalid_structure")
		return interpretation.Fallback(), metrics.OutcomeFallback
	}
	if err := interpretation.CheckSafety(payload); err != nil {
		s.log.Warn("generated interpretation rejected by safety gate, using fallback", "entry_id", entryID, "error", err)
		s.metrics.GenerationFailure("unsafe")
		return interpretation.Fallback(), metrics.OutcomeFallback
	}
	return payload, metrics.OutcomeGenerated
}

func (s *InterpretationService) ownedEntry(ctx context.Context, userID, entryID string) (*store.Entry, error) {
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

// acquire takes the per-entry lock. A lock backend failure is logged and the
// request continues; the unique constraint still keeps one row per entry.
func (s *InterpretationService) acquire(ctx context.Context, entryID string) func() {
	if s.locker == nil {
		return func() {}
	}
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	release, err := s.locker.Lock(lockCtx, "interpretation:"+entryID)
	if err != nil {
		s.log.Warn("per-entry lock unavailable, continuing without it", "entry_id", entryID, "error", err)
		return func() {}
	}
	return release
}

func decodeStored(it *store.Interpretation) (interpretation.Payload, error) {
	payload, err := interpretation.Validate([]byte(it.Content))
	if err != nil {
		return interpretation.Payload{}, fmt.Errorf("stored interpretation %s: %w", it.ID, err)
	}
	if err := interpretation.CheckSafety(payload); err != nil {
		return interpretation.Payload{}, fmt.Errorf("stored interpretation %s: %w", it.ID, err)
	}
	return payload, nil
}
