package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/observability"
	"github.com/nkechi/allergyjournal/backend/pkg/config"
	"github.com/nkechi/allergyjournal/backend/pkg/retry"
)

// HTTPAdapter implements AnalyticsProvider against a capture-style HTTP
// endpoint. Capture returns immediately; delivery happens on a
// background goroutine with bounded retry, and every failure is
// swallowed after a debug log.
type HTTPAdapter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewHTTPAdapter creates a new analytics adapter
func NewHTTPAdapter(cfg *config.AnalyticsConfig) providers.AnalyticsProvider {
	return &HTTPAdapter{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryCfg: retry.Config{
			MaxAttempts:     3,
			InitialDelay:    500 * time.Millisecond,
			MaxDelay:        5 * time.Second,
			BackoffFactor:   2.0,
			MaxTotalTimeout: 30 * time.Second,
		},
	}
}

type captureRequest struct {
	APIKey     string                 `json:"api_key"`
	Event      string                 `json:"event"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  string                 `json:"timestamp"`
}

// Capture records an analytics event, fire-and-forget
func (a *HTTPAdapter) Capture(ctx context.Context, eventName string, payload map[string]interface{}) {
	if a.endpoint == "" {
		return
	}

	body, err := json.Marshal(captureRequest{
		APIKey:     a.apiKey,
		Event:      eventName,
		Properties: payload,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		observability.GetLogger().Debug().Err(err).Str("event", eventName).Msg("failed to encode analytics event")
		return
	}

	// Deliberately detached from the caller's context: analytics must
	// never block or fail the operation that emitted the event.
	go func() {
		err := retry.Do(context.Background(), a.retryCfg, func() error {
			return a.send(body)
		})
		if err != nil {
			observability.GetLogger().Debug().Err(err).Str("event", eventName).Msg("dropped analytics event")
		}
	}()
}

func (a *HTTPAdapter) send(body []byte) error {
	req, err := http.NewRequest(http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}
