package providers

import (
	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
)

// NoteEventBus defines the interface for the in-process note lifecycle
// event bus.
//
// Delivery is synchronous, in subscription order, best-effort: a
// subscriber that panics must not prevent delivery to the rest. There
// is no persistence and no replay.
type NoteEventBus interface {
	// Subscribe registers a handler and returns its unsubscribe function
	Subscribe(handler func(*entities.NoteEvent)) (unsubscribe func())

	// Publish delivers an event to every current subscriber
	Publish(event *entities.NoteEvent)

	// Close drops all subscribers; further publishes are no-ops
	Close() error
}
