package repositories

import (
	"context"

	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
)

// NoteRepository defines the interface for note entry persistence.
//
// The repository owns the authoritative note collection. Absent IDs
// surface as NOT_FOUND application errors and storage failures as
// STORAGE errors; neither ever panics across this boundary.
type NoteRepository interface {
	// SaveForProcessing persists a new entry with processing status set
	// and returns it with its assigned ID
	SaveForProcessing(ctx context.Context, draft *entities.NoteDraft) (*entities.NoteEntry, error)

	// GetAll returns every stored entry sorted descending by timestamp.
	// An empty or missing store yields an empty slice, not an error.
	GetAll(ctx context.Context) ([]*entities.NoteEntry, error)

	// GetByID returns the entry with the given ID
	GetByID(ctx context.Context, id string) (*entities.NoteEntry, error)

	// UpdateWithExtraction merges extraction results into the entry and
	// moves it to complete
	UpdateWithExtraction(ctx context.Context, id string, result *entities.ExtractionResult) error

	// MarkProcessingFailed moves the entry to failed with an error message
	MarkProcessingFailed(ctx context.Context, id string, errorMessage string) error

	// UpdateFields applies user-driven edits, preserving the entry's ID
	// and original timestamp
	UpdateFields(ctx context.Context, id string, patch *entities.NotePatch) error

	// Delete removes the entry with the given ID
	Delete(ctx context.Context, id string) error

	// Metadata returns the best-effort collection summary record
	Metadata(ctx context.Context) (*entities.JournalMetadata, error)
}
