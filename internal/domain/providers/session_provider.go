package providers

import "context"

// SessionProvider supplies the current user identity. It is used only
// for namespacing the cached-summary feature; the note pipeline itself
// is not user-scoped.
type SessionProvider interface {
	CurrentUserID(ctx context.Context) (string, error)
}
