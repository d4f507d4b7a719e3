package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NoteSource represents how a note was captured
type NoteSource string

const (
	NoteSourceVoice  NoteSource = "voice"
	NoteSourceManual NoteSource = "manual"
)

// ProcessingStatus represents the extraction state of a note
type ProcessingStatus string

const (
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusComplete   ProcessingStatus = "complete"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

// FoodMention is a single food occurrence extracted from a note
type FoodMention struct {
	Name     string `json:"name"`
	MealType string `json:"meal_type"`
	Quantity string `json:"quantity,omitempty"`
	Timing   string `json:"timing,omitempty"`
}

// ReactionMention is a single allergic-reaction observation extracted from a note
type ReactionMention struct {
	Type                 string `json:"type"`
	Description          string `json:"description"`
	Location             string `json:"location,omitempty"`
	Severity             string `json:"severity,omitempty"`
	ReactionDelayMinutes *int   `json:"reaction_delay_minutes,omitempty"`
}

// ExtractionResult is the structured payload produced by the extraction webhook
type ExtractionResult struct {
	Foods     []FoodMention     `json:"foods"`
	Reactions []ReactionMention `json:"reactions"`
}

// NoteEntry is a single journaled observation.
//
// Foods and Reactions stay empty while ProcessingStatus is "processing";
// the background worker fills them in exactly once, moving the entry to
// "complete" or "failed". User edits never change ProcessingStatus.
type NoteEntry struct {
	ID                      string            `json:"id"`
	Timestamp               time.Time         `json:"timestamp"`
	Text                    string            `json:"text"`
	Source                  NoteSource        `json:"source"`
	Confidence              *float64          `json:"confidence,omitempty"`
	EditedFromTranscription bool              `json:"edited_from_transcription"`
	Foods                   []FoodMention     `json:"foods"`
	Reactions               []ReactionMention `json:"reactions"`
	ProcessingStatus        ProcessingStatus  `json:"processing_status"`
	ProcessingStartedAt     *time.Time        `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt   *time.Time        `json:"processing_completed_at,omitempty"`
	ProcessingError         string            `json:"processing_error,omitempty"`
	ExtractionTimestamp     *time.Time        `json:"extraction_timestamp,omitempty"`
	TranscriptionJobID      string            `json:"transcription_job_id,omitempty"`
	AudioURI                string            `json:"audio_uri,omitempty"`
	DurationSeconds         float64           `json:"duration_seconds,omitempty"`
}

// NoteDraft carries the capture-time fields for a new note
type NoteDraft struct {
	Text                    string
	Source                  NoteSource
	Confidence              *float64
	EditedFromTranscription bool
	AudioURI                string
	DurationSeconds         float64
	TranscriptionJobID      string
}

// NotePatch carries user-driven edits. Nil fields are left untouched;
// Foods/Reactions replace the stored sequences wholesale when set.
type NotePatch struct {
	Text      *string
	Foods     []FoodMention
	Reactions []ReactionMention
}

// JournalMetadata is a best-effort side record summarizing the collection
type JournalMetadata struct {
	EntryCount  int       `json:"entry_count"`
	VoiceCount  int       `json:"voice_count"`
	ManualCount int       `json:"manual_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewNoteEntry creates a note entry from a draft with a fresh unique ID
// and processing status set
func NewNoteEntry(draft *NoteDraft) *NoteEntry {
	now := time.Now().UTC()
	return &NoteEntry{
		ID:                      generateEntryID(),
		Timestamp:               now,
		Text:                    draft.Text,
		Source:                  draft.Source,
		Confidence:              draft.Confidence,
		EditedFromTranscription: draft.EditedFromTranscription,
		Foods:                   []FoodMention{},
		Reactions:               []ReactionMention{},
		ProcessingStatus:        ProcessingStatusProcessing,
		ProcessingStartedAt:     &now,
		TranscriptionJobID:      draft.TranscriptionJobID,
		AudioURI:                draft.AudioURI,
		DurationSeconds:         draft.DurationSeconds,
	}
}

// generateEntryID generates a unique entry ID
func generateEntryID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
