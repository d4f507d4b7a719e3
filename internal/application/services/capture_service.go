package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/internal/domain/repositories"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/observability"
)

// Enqueuer accepts note IDs for background processing
type Enqueuer interface {
	Enqueue(id string)
}

// CaptureService runs the note capture flow: optimistic placeholder
// events, persistence, and handoff to the processing queue.
//
// The save is the one step whose failure is surfaced synchronously to
// the caller, so the UI can retract its placeholder.
type CaptureService struct {
	repo        repositories.NoteRepository
	queue       Enqueuer
	bus         providers.NoteEventBus
	transcriber providers.TranscriptionProvider
}

// NewCaptureService creates a new capture service. The transcriber may
// be nil when voice capture is not configured.
func NewCaptureService(
	repo repositories.NoteRepository,
	queue Enqueuer,
	bus providers.NoteEventBus,
	transcriber providers.TranscriptionProvider,
) *CaptureService {
	return &CaptureService{
		repo:        repo,
		queue:       queue,
		bus:         bus,
		transcriber: transcriber,
	}
}

// CaptureText captures a typed or pre-transcribed note and enqueues it
// for extraction
func (s *CaptureService) CaptureText(ctx context.Context, draft *entities.NoteDraft) (*entities.NoteEntry, error) {
	tempID := uuid.NewString()
	s.bus.Publish(entities.NewPlaceholderAddedEvent(tempID, draft.Source))
	return s.saveAndEnqueue(ctx, tempID, draft)
}

// CaptureVoice transcribes an audio reference and captures the result
// as a voice note
func (s *CaptureService) CaptureVoice(ctx context.Context, audioURI string, durationSeconds float64) (*entities.NoteEntry, error) {
	if s.transcriber == nil {
		return nil, fmt.Errorf("voice capture is not configured")
	}

	tempID := uuid.NewString()
	s.bus.Publish(entities.NewPlaceholderAddedEvent(tempID, entities.NoteSourceVoice))

	transcription, err := s.transcriber.Transcribe(ctx, audioURI, durationSeconds)
	if err != nil {
		s.bus.Publish(entities.NewPlaceholderRemovedEvent(tempID))
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	confidence := transcription.Confidence
	draft := &entities.NoteDraft{
		Text:               transcription.Text,
		Source:             entities.NoteSourceVoice,
		Confidence:         &confidence,
		AudioURI:           audioURI,
		DurationSeconds:    durationSeconds,
		TranscriptionJobID: transcription.JobID,
	}
	return s.saveAndEnqueue(ctx, tempID, draft)
}

func (s *CaptureService) saveAndEnqueue(ctx context.Context, tempID string, draft *entities.NoteDraft) (*entities.NoteEntry, error) {
	entry, err := s.repo.SaveForProcessing(ctx, draft)
	if err != nil {
		s.bus.Publish(entities.NewPlaceholderRemovedEvent(tempID))
		return nil, fmt.Errorf("failed to save note: %w", err)
	}

	s.bus.Publish(entities.NewPlaceholderHydratedEvent(tempID, entry))
	s.bus.Publish(entities.NewNoteSavedEvent(entry))

	s.queue.Enqueue(entry.ID)
	return entry, nil
}

// RequeueInFlight scans storage for entries still in processing status
// and re-enqueues them. The queue is in-memory, so this runs once at
// startup to recover notes whose extraction never finished. Entries
// already marked failed are left alone.
func (s *CaptureService) RequeueInFlight(ctx context.Context) (int, error) {
	entries, err := s.repo.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan for in-flight notes: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.ProcessingStatus != entities.ProcessingStatusProcessing {
			continue
		}
		s.queue.Enqueue(entry.ID)
		count++
	}

	if count > 0 {
		observability.GetLogger().Info().Int("count", count).Msg("re-enqueued in-flight notes")
	}
	return count, nil
}
