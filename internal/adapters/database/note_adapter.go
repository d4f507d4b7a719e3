package database

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/internal/domain/repositories"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/observability"
	apperrors "github.com/nkechi/allergyjournal/backend/pkg/errors"
)

// Store keys for the note collection and its metadata side record
const (
	notesKey    = "journal:notes"
	metadataKey = "journal:metadata"
)

// NoteAdapter implements NoteRepository over a durable key-value store.
//
// The whole collection is serialized under a single key; a mutex
// serializes read-modify-write cycles so concurrent callers cannot
// interleave partial updates.
type NoteAdapter struct {
	store providers.KeyValueStore
	mu    sync.Mutex
}

// NewNoteAdapter creates a new note repository adapter
func NewNoteAdapter(store providers.KeyValueStore) repositories.NoteRepository {
	return &NoteAdapter{store: store}
}

// SaveForProcessing persists a new entry with processing status set
func (a *NoteAdapter) SaveForProcessing(ctx context.Context, draft *entities.NoteDraft) (*entities.NoteEntry, error) {
	if draft == nil || draft.Text == "" {
		return nil, apperrors.NewValidationError("note text is required")
	}
	if draft.Source == "" {
		draft.Source = entities.NoteSourceManual
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	notes, err := a.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	entry := entities.NewNoteEntry(draft)
	notes = append([]*entities.NoteEntry{entry}, notes...)

	if err := a.persistAll(ctx, notes); err != nil {
		return nil, err
	}

	a.updateMetadata(ctx, notes)
	return entry, nil
}

// GetAll returns every stored entry sorted descending by timestamp
func (a *NoteAdapter) GetAll(ctx context.Context) ([]*entities.NoteEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	notes, err := a.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Timestamp.After(notes[j].Timestamp)
	})
	return notes, nil
}

// GetByID returns the entry with the given ID
func (a *NoteAdapter) GetByID(ctx context.Context, id string) (*entities.NoteEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	notes, err := a.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, note := range notes {
		if note.ID == id {
			return note, nil
		}
	}
	return nil, apperrors.NewNotFoundError("note not found: " + id)
}

// UpdateWithExtraction merges extraction results into the entry and
// moves it to complete
func (a *NoteAdapter) UpdateWithExtraction(ctx context.Context, id string, result *entities.ExtractionResult) error {
	return a.mutate(ctx, id, func(note *entities.NoteEntry) {
		now := time.Now().UTC()

		foods := result.Foods
		if foods == nil {
			foods = []entities.FoodMention{}
		}
		reactions := result.Reactions
		if reactions == nil {
			reactions = []entities.ReactionMention{}
		}

		note.Foods = foods
		note.Reactions = reactions
		note.ExtractionTimestamp = &now
		note.ProcessingStatus = entities.ProcessingStatusComplete
		note.ProcessingCompletedAt = &now
		note.ProcessingError = ""
	})
}

// MarkProcessingFailed moves the entry to failed with an error message
func (a *NoteAdapter) MarkProcessingFailed(ctx context.Context, id string, errorMessage string) error {
	return a.mutate(ctx, id, func(note *entities.NoteEntry) {
		now := time.Now().UTC()
		note.ProcessingStatus = entities.ProcessingStatusFailed
		note.ProcessingCompletedAt = &now
		note.ProcessingError = errorMessage
	})
}

// UpdateFields applies user-driven edits, preserving the entry's ID and
// original timestamp
func (a *NoteAdapter) UpdateFields(ctx context.Context, id string, patch *entities.NotePatch) error {
	if patch == nil {
		return apperrors.NewValidationError("patch is required")
	}
	return a.mutate(ctx, id, func(note *entities.NoteEntry) {
		if patch.Text != nil {
			note.Text = *patch.Text
		}
		if patch.Foods != nil {
			note.Foods = patch.Foods
		}
		if patch.Reactions != nil {
			note.Reactions = patch.Reactions
		}
	})
}

// Delete removes the entry with the given ID
func (a *NoteAdapter) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	notes, err := a.loadAll(ctx)
	if err != nil {
		return err
	}

	remaining := notes[:0]
	found := false
	for _, note := range notes {
		if note.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, note)
	}
	if !found {
		return apperrors.NewNotFoundError("note not found: " + id)
	}

	if err := a.persistAll(ctx, remaining); err != nil {
		return err
	}

	a.updateMetadata(ctx, remaining)
	return nil
}

// Metadata returns the best-effort collection summary record
func (a *NoteAdapter) Metadata(ctx context.Context) (*entities.JournalMetadata, error) {
	data, err := a.store.Get(ctx, metadataKey)
	if errors.Is(err, providers.ErrKeyNotFound) {
		return &entities.JournalMetadata{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read journal metadata", err)
	}

	var meta entities.JournalMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperrors.NewStorageError("failed to decode journal metadata", err)
	}
	return &meta, nil
}

// mutate runs fn against the entry with the given ID and persists the
// full collection
func (a *NoteAdapter) mutate(ctx context.Context, id string, fn func(*entities.NoteEntry)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	notes, err := a.loadAll(ctx)
	if err != nil {
		return err
	}

	var target *entities.NoteEntry
	for _, note := range notes {
		if note.ID == id {
			target = note
			break
		}
	}
	if target == nil {
		return apperrors.NewNotFoundError("note not found: " + id)
	}

	fn(target)

	if err := a.persistAll(ctx, notes); err != nil {
		return err
	}

	a.updateMetadata(ctx, notes)
	return nil
}

func (a *NoteAdapter) loadAll(ctx context.Context) ([]*entities.NoteEntry, error) {
	data, err := a.store.Get(ctx, notesKey)
	if errors.Is(err, providers.ErrKeyNotFound) {
		return []*entities.NoteEntry{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read note collection", err)
	}

	var notes []*entities.NoteEntry
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, apperrors.NewStorageError("failed to decode note collection", err)
	}
	return notes, nil
}

func (a *NoteAdapter) persistAll(ctx context.Context, notes []*entities.NoteEntry) error {
	data, err := json.Marshal(notes)
	if err != nil {
		return apperrors.NewStorageError("failed to encode note collection", err)
	}
	if err := a.store.Set(ctx, notesKey, data); err != nil {
		return apperrors.NewStorageError("failed to write note collection", err)
	}
	return nil
}

// updateMetadata refreshes the summary side record. Failures here are
// logged and never fail the primary operation.
func (a *NoteAdapter) updateMetadata(ctx context.Context, notes []*entities.NoteEntry) {
	meta := entities.JournalMetadata{
		EntryCount:  len(notes),
		LastUpdated: time.Now().UTC(),
	}
	for _, note := range notes {
		switch note.Source {
		case entities.NoteSourceVoice:
			meta.VoiceCount++
		case entities.NoteSourceManual:
			meta.ManualCount++
		}
	}

	data, err := json.Marshal(&meta)
	if err != nil {
		observability.GetLogger().Warn().Err(err).Msg("failed to encode journal metadata")
		return
	}
	if err := a.store.Set(ctx, metadataKey, data); err != nil {
		observability.GetLogger().Warn().Err(err).Msg("failed to update journal metadata")
	}
}
