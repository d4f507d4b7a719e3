package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
)

var (
	// ErrExtractionTimeout indicates the extraction call exceeded its deadline
	ErrExtractionTimeout = errors.New("extraction request timed out")

	// ErrExtractionFormat indicates the webhook response did not match
	// either of the supported shapes
	ErrExtractionFormat = errors.New("unexpected extraction response format")
)

// ExtractionHTTPError indicates the extraction webhook returned a non-2xx status
type ExtractionHTTPError struct {
	StatusCode int
	Status     string
}

func (e *ExtractionHTTPError) Error() string {
	return fmt.Sprintf("extraction request failed with status %d: %s", e.StatusCode, e.Status)
}

// ExtractionProvider defines the interface for the external structured
// extraction service. Extract never returns partial data: either a full
// result or an error.
type ExtractionProvider interface {
	Extract(ctx context.Context, note *entities.NoteEntry) (*entities.ExtractionResult, error)
}

// TranscriptionResult is the outcome of a voice transcription call
type TranscriptionResult struct {
	Text       string
	Confidence float64
	JobID      string
}

// TranscriptionProvider defines the interface for the external voice
// transcription service
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, audioURI string, durationSeconds float64) (*TranscriptionResult, error)
}
