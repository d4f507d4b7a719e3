package entities

import "time"

// NoteEventType represents the type of note lifecycle event
type NoteEventType string

const (
	NoteEventTypePlaceholderAdded    NoteEventType = "placeholder_added"
	NoteEventTypePlaceholderHydrated NoteEventType = "placeholder_hydrated"
	NoteEventTypePlaceholderRemoved  NoteEventType = "placeholder_removed"
	NoteEventTypeNoteSaved           NoteEventType = "note_saved"
	NoteEventTypeExtractionCompleted NoteEventType = "extraction_completed"
	NoteEventTypeExtractionEmpty     NoteEventType = "extraction_empty"
)

// NoteEvent is a note lifecycle event delivered to in-process subscribers.
// TempID identifies the optimistic placeholder; EntryID is set once the
// note has a durable identity.
type NoteEvent struct {
	Type          NoteEventType `json:"type"`
	TempID        string        `json:"temp_id,omitempty"`
	EntryID       string        `json:"entry_id,omitempty"`
	Text          string        `json:"text,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	Source        NoteSource    `json:"source,omitempty"`
	FoodCount     int           `json:"food_count,omitempty"`
	ReactionCount int           `json:"reaction_count,omitempty"`
}

// NewPlaceholderAddedEvent creates an event announcing an optimistic placeholder
func NewPlaceholderAddedEvent(tempID string, source NoteSource) *NoteEvent {
	return &NoteEvent{
		Type:      NoteEventTypePlaceholderAdded,
		TempID:    tempID,
		Timestamp: time.Now().UTC(),
		Source:    source,
	}
}

// NewPlaceholderHydratedEvent creates an event reconciling a placeholder
// with its persisted entry
func NewPlaceholderHydratedEvent(tempID string, entry *NoteEntry) *NoteEvent {
	return &NoteEvent{
		Type:      NoteEventTypePlaceholderHydrated,
		TempID:    tempID,
		EntryID:   entry.ID,
		Text:      entry.Text,
		Timestamp: entry.Timestamp,
		Source:    entry.Source,
	}
}

// NewPlaceholderRemovedEvent creates an event retracting a placeholder
// whose save never landed
func NewPlaceholderRemovedEvent(tempID string) *NoteEvent {
	return &NoteEvent{
		Type:      NoteEventTypePlaceholderRemoved,
		TempID:    tempID,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoteSavedEvent creates an event announcing a persisted note
func NewNoteSavedEvent(entry *NoteEntry) *NoteEvent {
	return &NoteEvent{
		Type:      NoteEventTypeNoteSaved,
		EntryID:   entry.ID,
		Timestamp: time.Now().UTC(),
		Source:    entry.Source,
	}
}

// NewExtractionCompletedEvent creates an event announcing extraction results.
// An extraction that found no foods and no reactions is reported as
// extraction_empty.
func NewExtractionCompletedEvent(entryID string, result *ExtractionResult) *NoteEvent {
	eventType := NoteEventTypeExtractionCompleted
	if len(result.Foods) == 0 && len(result.Reactions) == 0 {
		eventType = NoteEventTypeExtractionEmpty
	}
	return &NoteEvent{
		Type:          eventType,
		EntryID:       entryID,
		Timestamp:     time.Now().UTC(),
		FoodCount:     len(result.Foods),
		ReactionCount: len(result.Reactions),
	}
}
