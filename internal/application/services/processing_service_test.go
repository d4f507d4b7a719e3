package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkechi/allergyjournal/backend/internal/application/services"
	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	apperrors "github.com/nkechi/allergyjournal/backend/pkg/errors"
)

// fakeNoteRepo is an in-memory NoteRepository with failure injection
type fakeNoteRepo struct {
	mu         sync.Mutex
	notes      map[string]*entities.NoteEntry
	order      []string
	saveErr    error
	getAllErr  error
	updateErr  error
	failedWith map[string]string
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{
		notes:      make(map[string]*entities.NoteEntry),
		failedWith: make(map[string]string),
	}
}

func (r *fakeNoteRepo) add(entry *entities.NoteEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[entry.ID] = entry
	r.order = append(r.order, entry.ID)
}

func (r *fakeNoteRepo) SaveForProcessing(ctx context.Context, draft *entities.NoteDraft) (*entities.NoteEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	entry := entities.NewNoteEntry(draft)
	r.notes[entry.ID] = entry
	r.order = append(r.order, entry.ID)
	return entry, nil
}

func (r *fakeNoteRepo) GetAll(ctx context.Context) ([]*entities.NoteEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getAllErr != nil {
		return nil, r.getAllErr
	}
	entries := make([]*entities.NoteEntry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.notes[id])
	}
	return entries, nil
}

func (r *fakeNoteRepo) GetByID(ctx context.Context, id string) (*entities.NoteEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.notes[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("note not found: " + id)
	}
	copied := *entry
	return &copied, nil
}

func (r *fakeNoteRepo) UpdateWithExtraction(ctx context.Context, id string, result *entities.ExtractionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	entry, ok := r.notes[id]
	if !ok {
		return apperrors.NewNotFoundError("note not found: " + id)
	}
	now := time.Now().UTC()
	entry.Foods = result.Foods
	entry.Reactions = result.Reactions
	entry.ProcessingStatus = entities.ProcessingStatusComplete
	entry.ProcessingCompletedAt = &now
	return nil
}

func (r *fakeNoteRepo) MarkProcessingFailed(ctx context.Context, id string, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.notes[id]
	if !ok {
		return apperrors.NewNotFoundError("note not found: " + id)
	}
	entry.ProcessingStatus = entities.ProcessingStatusFailed
	entry.ProcessingError = errorMessage
	r.failedWith[id] = errorMessage
	return nil
}

func (r *fakeNoteRepo) UpdateFields(ctx context.Context, id string, patch *entities.NotePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.notes[id]
	if !ok {
		return apperrors.NewNotFoundError("note not found: " + id)
	}
	if patch.Text != nil {
		entry.Text = *patch.Text
	}
	return nil
}

func (r *fakeNoteRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return apperrors.NewNotFoundError("note not found: " + id)
	}
	delete(r.notes, id)
	return nil
}

func (r *fakeNoteRepo) Metadata(ctx context.Context) (*entities.JournalMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &entities.JournalMetadata{EntryCount: len(r.notes)}, nil
}

func (r *fakeNoteRepo) status(id string) entities.ProcessingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes[id].ProcessingStatus
}

// stubExtractor counts calls and detects overlapping invocations
type stubExtractor struct {
	mu        sync.Mutex
	calls     int
	inFlight  int
	overlap   bool
	delay     time.Duration
	extractFn func(note *entities.NoteEntry) (*entities.ExtractionResult, error)
}

func (e *stubExtractor) Extract(ctx context.Context, note *entities.NoteEntry) (*entities.ExtractionResult, error) {
	e.mu.Lock()
	e.calls++
	e.inFlight++
	if e.inFlight > 1 {
		e.overlap = true
	}
	fn := e.extractFn
	e.mu.Unlock()

	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	if fn != nil {
		return fn(note)
	}
	return &entities.ExtractionResult{
		Foods:     []entities.FoodMention{{Name: "peanut", MealType: "snack"}},
		Reactions: []entities.ReactionMention{},
	}, nil
}

func (e *stubExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// recordingBus captures published events in order
type recordingBus struct {
	mu     sync.Mutex
	events []*entities.NoteEvent
}

func (b *recordingBus) Subscribe(handler func(*entities.NoteEvent)) func() {
	return func() {}
}

func (b *recordingBus) Publish(event *entities.NoteEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) Close() error {
	return nil
}

func (b *recordingBus) eventTypes() []entities.NoteEventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]entities.NoteEventType, 0, len(b.events))
	for _, event := range b.events {
		types = append(types, event.Type)
	}
	return types
}

func savedProcessingNote(repo *fakeNoteRepo, text string) *entities.NoteEntry {
	entry := entities.NewNoteEntry(&entities.NoteDraft{Text: text, Source: entities.NoteSourceManual})
	repo.add(entry)
	return entry
}

func waitIdle(t *testing.T, queue *services.ProcessingQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, queue.WaitIdle(ctx))
}

func TestProcessingQueue_CompletesNote(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{}
	bus := &recordingBus{}
	queue := services.NewProcessingQueue(repo, extractor, bus)
	defer queue.Close()

	entry := savedProcessingNote(repo, "peanut butter sandwich")
	queue.Enqueue(entry.ID)
	waitIdle(t, queue)

	assert.Equal(t, 1, extractor.callCount())
	assert.Equal(t, entities.ProcessingStatusComplete, repo.status(entry.ID))
	assert.Contains(t, bus.eventTypes(), entities.NoteEventTypeExtractionCompleted)
}

func TestProcessingQueue_DuplicateEnqueueIsNoOp(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{delay: 20 * time.Millisecond}
	queue := services.NewProcessingQueue(repo, extractor, &recordingBus{})
	defer queue.Close()

	blocker := savedProcessingNote(repo, "keeps the worker busy")
	entry := savedProcessingNote(repo, "enqueued twice")

	queue.Enqueue(blocker.ID)
	queue.Enqueue(entry.ID)
	queue.Enqueue(entry.ID)
	waitIdle(t, queue)

	assert.Equal(t, 2, extractor.callCount())
}

func TestProcessingQueue_SingleExtractionInFlight(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{delay: 10 * time.Millisecond}
	queue := services.NewProcessingQueue(repo, extractor, &recordingBus{})
	defer queue.Close()

	for i := 0; i < 5; i++ {
		entry := savedProcessingNote(repo, "note for concurrency check")
		queue.Enqueue(entry.ID)
	}
	waitIdle(t, queue)

	assert.Equal(t, 5, extractor.callCount())
	assert.False(t, extractor.overlap, "extraction calls must never overlap")
}

func TestProcessingQueue_ExtractionFailureMarksFailed(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{
		extractFn: func(note *entities.NoteEntry) (*entities.ExtractionResult, error) {
			return nil, errors.New("webhook exploded")
		},
	}
	queue := services.NewProcessingQueue(repo, extractor, &recordingBus{})
	defer queue.Close()

	entry := savedProcessingNote(repo, "doomed note")
	queue.Enqueue(entry.ID)
	waitIdle(t, queue)

	assert.Equal(t, entities.ProcessingStatusFailed, repo.status(entry.ID))
	assert.Contains(t, repo.failedWith[entry.ID], "webhook exploded")
}

func TestProcessingQueue_PersistFailureMarksFailed(t *testing.T) {
	repo := newFakeNoteRepo()
	repo.updateErr = errors.New("store rejected write")
	queue := services.NewProcessingQueue(repo, &stubExtractor{}, &recordingBus{})
	defer queue.Close()

	entry := savedProcessingNote(repo, "extraction ok, persist not")
	queue.Enqueue(entry.ID)
	waitIdle(t, queue)

	assert.Equal(t, entities.ProcessingStatusFailed, repo.status(entry.ID))
}

func TestProcessingQueue_UnknownNoteIsSkipped(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{}
	queue := services.NewProcessingQueue(repo, extractor, &recordingBus{})
	defer queue.Close()

	queue.Enqueue("deleted-before-processing")
	waitIdle(t, queue)

	assert.Equal(t, 0, extractor.callCount())
}

func TestProcessingQueue_NonProcessingStatusIsSkipped(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{}
	queue := services.NewProcessingQueue(repo, extractor, &recordingBus{})
	defer queue.Close()

	entry := savedProcessingNote(repo, "already done")
	require.NoError(t, repo.UpdateWithExtraction(context.Background(), entry.ID, &entities.ExtractionResult{}))

	queue.Enqueue(entry.ID)
	waitIdle(t, queue)

	assert.Equal(t, 0, extractor.callCount())
	assert.Equal(t, entities.ProcessingStatusComplete, repo.status(entry.ID))
}

func TestProcessingQueue_FailureDoesNotStopDrain(t *testing.T) {
	repo := newFakeNoteRepo()
	failing := savedProcessingNote(repo, "this one fails")
	healthy := savedProcessingNote(repo, "this one succeeds")

	extractor := &stubExtractor{
		extractFn: func(note *entities.NoteEntry) (*entities.ExtractionResult, error) {
			if note.ID == failing.ID {
				return nil, errors.New("transient upstream error")
			}
			return &entities.ExtractionResult{}, nil
		},
	}
	queue := services.NewProcessingQueue(repo, extractor, &recordingBus{})
	defer queue.Close()

	queue.Enqueue(failing.ID)
	queue.Enqueue(healthy.ID)
	waitIdle(t, queue)

	assert.Equal(t, entities.ProcessingStatusFailed, repo.status(failing.ID))
	assert.Equal(t, entities.ProcessingStatusComplete, repo.status(healthy.ID))
}

func TestProcessingQueue_EmptyExtractionPublishesEmptyEvent(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{
		extractFn: func(note *entities.NoteEntry) (*entities.ExtractionResult, error) {
			return &entities.ExtractionResult{}, nil
		},
	}
	bus := &recordingBus{}
	queue := services.NewProcessingQueue(repo, extractor, bus)
	defer queue.Close()

	entry := savedProcessingNote(repo, "slept well, nothing else")
	queue.Enqueue(entry.ID)
	waitIdle(t, queue)

	assert.Contains(t, bus.eventTypes(), entities.NoteEventTypeExtractionEmpty)
}

func TestProcessingQueue_EnqueueAfterCloseIsIgnored(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{}
	queue := services.NewProcessingQueue(repo, extractor, &recordingBus{})
	require.NoError(t, queue.Close())

	entry := savedProcessingNote(repo, "arrives too late")
	queue.Enqueue(entry.ID)

	assert.Equal(t, 0, queue.Pending())
	assert.Equal(t, 0, extractor.callCount())
}

func TestProcessingQueue_WaitIdleRespectsContext(t *testing.T) {
	repo := newFakeNoteRepo()
	extractor := &stubExtractor{delay: 200 * time.Millisecond}
	queue := services.NewProcessingQueue(repo, extractor, &recordingBus{})
	defer queue.Close()

	entry := savedProcessingNote(repo, "slow extraction")
	queue.Enqueue(entry.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, queue.WaitIdle(ctx), context.DeadlineExceeded)

	waitIdle(t, queue)
}
