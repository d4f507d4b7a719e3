package events

import (
	"context"
	"sync"

	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/observability"
)

// InProcessEventBus implements NoteEventBus with synchronous in-process
// delivery.
//
// Publish invokes every current subscriber in subscription order on the
// calling goroutine. A subscriber that panics is recovered and logged
// without affecting the rest. Events are additionally forwarded to the
// analytics collaborator, best-effort.
type InProcessEventBus struct {
	mu        sync.Mutex
	subs      []*subscription
	nextID    int
	closed    bool
	analytics providers.AnalyticsProvider
}

type subscription struct {
	id      int
	handler func(*entities.NoteEvent)
}

// NewInProcessEventBus creates a new in-process note event bus. The
// analytics provider may be nil.
func NewInProcessEventBus(analytics providers.AnalyticsProvider) providers.NoteEventBus {
	return &InProcessEventBus{analytics: analytics}
}

// Subscribe registers a handler and returns its unsubscribe function
func (b *InProcessEventBus) Subscribe(handler func(*entities.NoteEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to every current subscriber in subscription
// order
func (b *InProcessEventBus) Publish(event *entities.NoteEvent) {
	if event == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}

	if b.analytics != nil {
		b.analytics.Capture(context.Background(), "note_"+string(event.Type), map[string]interface{}{
			"temp_id":        event.TempID,
			"entry_id":       event.EntryID,
			"source":         string(event.Source),
			"food_count":     event.FoodCount,
			"reaction_count": event.ReactionCount,
		})
	}
}

// deliver invokes one subscriber, containing any panic
func (b *InProcessEventBus) deliver(sub *subscription, event *entities.NoteEvent) {
	defer func() {
		if r := recover(); r != nil {
			observability.GetLogger().Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("note event subscriber panicked")
		}
	}()
	sub.handler(event)
}

// Close drops all subscribers; further publishes are no-ops
func (b *InProcessEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
	return nil
}
