package providers

import "context"

// AnalyticsProvider defines the interface for the external analytics
// collaborator. Capture is best-effort and never awaited for
// correctness; implementations must swallow their own failures.
type AnalyticsProvider interface {
	Capture(ctx context.Context, eventName string, payload map[string]interface{})
}
