package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	apperrors "github.com/nkechi/allergyjournal/backend/pkg/errors"
)

const maxNoteTextLength = 5000

// CaptureService defines the capture operations used by the handler.
type CaptureService interface {
	CaptureText(ctx context.Context, draft *entities.NoteDraft) (*entities.NoteEntry, error)
	CaptureVoice(ctx context.Context, audioURI string, durationSeconds float64) (*entities.NoteEntry, error)
}

// NoteReader defines the note query/edit operations used by the handler.
type NoteReader interface {
	GetAll(ctx context.Context) ([]*entities.NoteEntry, error)
	UpdateFields(ctx context.Context, id string, patch *entities.NotePatch) error
	Delete(ctx context.Context, id string) error
	Metadata(ctx context.Context) (*entities.JournalMetadata, error)
}

// NoteHandler handles note capture, listing, edits and deletion.
type NoteHandler struct {
	capture CaptureService
	notes   NoteReader
}

// NewNoteHandler creates a new note handler.
func NewNoteHandler(capture CaptureService, notes NoteReader) *NoteHandler {
	return &NoteHandler{
		capture: capture,
		notes:   notes,
	}
}

type captureTextRequest struct {
	Text                    string `json:"text"`
	Source                  string `json:"source"`
	EditedFromTranscription bool   `json:"edited_from_transcription"`
}

type captureVoiceRequest struct {
	AudioURI        string  `json:"audio_uri"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type notePatchRequest struct {
	Text      *string                    `json:"text"`
	Foods     []entities.FoodMention     `json:"foods"`
	Reactions []entities.ReactionMention `json:"reactions"`
}

// CaptureText handles POST /api/notes
func (h *NoteHandler) CaptureText(w http.ResponseWriter, r *http.Request) {
	var payload captureTextRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	payload.Text = strings.TrimSpace(payload.Text)
	if payload.Text == "" {
		respondWithError(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(payload.Text) > maxNoteTextLength {
		respondWithError(w, http.StatusBadRequest, "text is too long")
		return
	}

	source := entities.NoteSource(payload.Source)
	if source == "" {
		source = entities.NoteSourceManual
	}
	if source != entities.NoteSourceManual && source != entities.NoteSourceVoice {
		respondWithError(w, http.StatusBadRequest, "source must be voice or manual")
		return
	}

	entry, err := h.capture.CaptureText(r.Context(), &entities.NoteDraft{
		Text:                    payload.Text,
		Source:                  source,
		EditedFromTranscription: payload.EditedFromTranscription,
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to save note")
		return
	}

	respondWithJSON(w, http.StatusCreated, entry)
}

// CaptureVoice handles POST /api/notes/voice
func (h *NoteHandler) CaptureVoice(w http.ResponseWriter, r *http.Request) {
	var payload captureVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if strings.TrimSpace(payload.AudioURI) == "" {
		respondWithError(w, http.StatusBadRequest, "audio_uri is required")
		return
	}

	entry, err := h.capture.CaptureVoice(r.Context(), payload.AudioURI, payload.DurationSeconds)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "failed to capture voice note")
		return
	}

	respondWithJSON(w, http.StatusCreated, entry)
}

// ListNotes handles GET /api/notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.notes.GetAll(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"notes": entries,
		"count": len(entries),
	})
}

// UpdateNote handles PATCH /api/notes/{id}
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "note id is required")
		return
	}

	var payload notePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	err := h.notes.UpdateFields(r.Context(), id, &entities.NotePatch{
		Text:      payload.Text,
		Foods:     payload.Foods,
		Reactions: payload.Reactions,
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			respondWithError(w, http.StatusNotFound, "note not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to update note")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteNote handles DELETE /api/notes/{id}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "note id is required")
		return
	}

	if err := h.notes.Delete(r.Context(), id); err != nil {
		if apperrors.IsNotFound(err) {
			respondWithError(w, http.StatusNotFound, "note not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to delete note")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetMetadata handles GET /api/notes/metadata
func (h *NoteHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.notes.Metadata(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to read journal metadata")
		return
	}

	respondWithJSON(w, http.StatusOK, meta)
}
