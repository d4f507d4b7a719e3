package services

import (
	"context"
	"sync"

	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/internal/domain/repositories"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/observability"
	apperrors "github.com/nkechi/allergyjournal/backend/pkg/errors"
)

// ProcessingQueue drains pending note IDs through the extraction
// pipeline, strictly one at a time.
//
// The pending set has membership semantics: enqueuing an ID that is
// already pending is a no-op. At most one drain goroutine exists per
// queue, so at most one extraction call is in flight at any instant.
// The queue is in-memory only; notes left in processing status across
// a restart are recovered by CaptureService.RequeueInFlight.
type ProcessingQueue struct {
	repo      repositories.NoteRepository
	extractor providers.ExtractionProvider
	bus       providers.NoteEventBus
	metrics   *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  []string
	members  map[string]struct{}
	draining bool
	closed   bool
	idle     chan struct{}
}

// NewProcessingQueue creates a new processing queue in the idle state
func NewProcessingQueue(
	repo repositories.NoteRepository,
	extractor providers.ExtractionProvider,
	bus providers.NoteEventBus,
) *ProcessingQueue {
	ctx, cancel := context.WithCancel(context.Background())

	idle := make(chan struct{})
	close(idle)

	return &ProcessingQueue{
		repo:      repo,
		extractor: extractor,
		bus:       bus,
		ctx:       ctx,
		cancel:    cancel,
		members:   make(map[string]struct{}),
		idle:      idle,
	}
}

// SetMetrics configures queue metrics recording
func (q *ProcessingQueue) SetMetrics(metrics *observability.Metrics) {
	q.metrics = metrics
}

// Enqueue adds a note ID to the pending set and starts a drain if the
// queue is idle. It returns immediately; callers fire and forget.
func (q *ProcessingQueue) Enqueue(id string) {
	if id == "" {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		observability.GetLogger().Warn().Str("note_id", id).Msg("enqueue on closed processing queue")
		return
	}
	if _, exists := q.members[id]; exists {
		q.mu.Unlock()
		return
	}
	q.members[id] = struct{}{}
	q.pending = append(q.pending, id)

	start := false
	if !q.draining {
		q.draining = true
		q.idle = make(chan struct{})
		start = true
	}
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.NotesEnqueued.Add(q.ctx, 1)
		q.metrics.QueueDepth.Add(q.ctx, 1)
	}

	if start {
		go q.drain()
	}
}

// Pending returns the number of note IDs currently waiting
func (q *ProcessingQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// WaitIdle blocks until the queue returns to the idle state or ctx is done
func (q *ProcessingQueue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	ch := q.idle
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker. Pending IDs are abandoned; they remain in
// processing status in storage and are picked up by the startup requeue
// scan.
func (q *ProcessingQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	return nil
}

// drain processes pending IDs until none remain. Only one drain
// goroutine exists at a time.
func (q *ProcessingQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.ctx.Err() != nil {
			q.draining = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		id := q.pending[0]
		q.pending = q.pending[1:]
		delete(q.members, id)
		q.mu.Unlock()

		if q.metrics != nil {
			q.metrics.QueueDepth.Add(q.ctx, -1)
		}

		q.processOne(q.ctx, id)
	}
}

// processOne runs one note through fetch, extraction and persistence.
// Every failure is converted into a failed status on the entry; nothing
// escapes to abort the drain loop for the remaining IDs.
func (q *ProcessingQueue) processOne(ctx context.Context, id string) {
	logger := observability.GetLogger()

	note, err := q.repo.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// Deleted or never saved; not retryable
			logger.Debug().Str("note_id", id).Msg("skipping unknown note")
			return
		}
		q.recordFailure(ctx, id, err)
		return
	}

	// Guards against a duplicate enqueue racing a prior completion
	if note.ProcessingStatus != entities.ProcessingStatusProcessing {
		logger.Debug().
			Str("note_id", id).
			Str("status", string(note.ProcessingStatus)).
			Msg("skipping note not in processing status")
		return
	}

	result, err := q.extractor.Extract(ctx, note)
	if err != nil {
		q.recordFailure(ctx, id, err)
		return
	}

	if err := q.repo.UpdateWithExtraction(ctx, id, result); err != nil {
		q.recordFailure(ctx, id, err)
		return
	}

	if q.metrics != nil {
		q.metrics.NotesProcessed.Add(ctx, 1)
	}
	q.bus.Publish(entities.NewExtractionCompletedEvent(id, result))
}

// recordFailure marks the entry failed. Its own failure is logged and
// goes no further; the next app start will not retry failed notes.
func (q *ProcessingQueue) recordFailure(ctx context.Context, id string, cause error) {
	logger := observability.GetLogger()
	logger.Error().Err(cause).Str("note_id", id).Msg("note processing failed")

	if q.metrics != nil {
		q.metrics.NotesFailed.Add(ctx, 1)
	}

	if err := q.repo.MarkProcessingFailed(ctx, id, cause.Error()); err != nil {
		logger.Error().Err(err).Str("note_id", id).Msg("failed to record processing failure")
	}
}
