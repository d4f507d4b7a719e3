package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultTimeout = 60 * time.Second

// Client calls the external LLM-backed extraction webhook.
type Client struct {
	webhookURL string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a new extraction client.
func NewClient(cfg *config.ExtractionConfig) (*Client, error) {
	if cfg == nil || cfg.WebhookURL == "" {
		return nil, errors.New("extraction webhook url is required")
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		webhookURL: cfg.WebhookURL,
		timeout:    timeout,
		// The deadline lives on the per-request context, not here, so a
		// late response is discarded rather than resurrecting a call
		// that already failed.
		httpClient: &http.Client{},
	}, nil
}

type extractionRequest struct {
	Text                    string   `json:"text"`
	Timestamp               string   `json:"timestamp"`
	Source                  string   `json:"source"`
	Confidence              *float64 `json:"confidence,omitempty"`
	EditedFromTranscription bool     `json:"editedFromTranscription"`
	AudioURI                string   `json:"audioUri,omitempty"`
	Duration                float64  `json:"duration,omitempty"`
	TranscriptionJobID      string   `json:"transcriptionJobId,omitempty"`
}

type foodPayload struct {
	Name     string `json:"name"`
	MealType string `json:"mealType"`
	Quantity string `json:"quantity"`
	Timing   string `json:"timing"`
}

type reactionPayload struct {
	Type                 string `json:"type"`
	Description          string `json:"description"`
	Location             string `json:"location"`
	Severity             string `json:"severity"`
	ReactionDelayMinutes *int   `json:"reactionDelayMinutes"`
}

type extractedData struct {
	Foods     []foodPayload     `json:"foods"`
	Reactions []reactionPayload `json:"reactions"`
}

// responseEnvelope is the flat webhook response shape
type responseEnvelope struct {
	Status        string         `json:"status"`
	ExtractedData *extractedData `json:"extractedData"`
}

// wrappedEnvelope is the alternative shape: a one-element array whose
// element wraps the envelope in a "values" field
type wrappedEnvelope struct {
	Values responseEnvelope `json:"values"`
}

// Extract sends the note to the extraction webhook and returns the
// normalized structured result. It fails with ErrExtractionTimeout on
// deadline, ExtractionHTTPError on non-2xx, and ErrExtractionFormat on
// any response that does not match the two supported shapes.
func (c *Client) Extract(ctx context.Context, note *entities.NoteEntry) (*entities.ExtractionResult, error) {
	if note == nil {
		return nil, errors.New("note is required")
	}

	payload := extractionRequest{
		Text:                    note.Text,
		Timestamp:               note.Timestamp.Format(time.RFC3339),
		Source:                  string(note.Source),
		Confidence:              note.Confidence,
		EditedFromTranscription: note.EditedFromTranscription,
		AudioURI:                note.AudioURI,
		Duration:                note.DurationSeconds,
		TranscriptionJobID:      note.TranscriptionJobID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			recordExtractionMetric(ctx, 0, time.Since(start), err)
			return nil, fmt.Errorf("%w after %s", providers.ErrExtractionTimeout, c.timeout)
		}
		recordExtractionMetric(ctx, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordExtractionMetric(ctx, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		return nil, &providers.ExtractionHTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		recordExtractionMetric(ctx, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	envelope, err := normalizeResponse(raw)
	if err != nil {
		recordExtractionMetric(ctx, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	recordExtractionMetric(ctx, resp.StatusCode, time.Since(start), nil)
	return toExtractionResult(envelope.ExtractedData), nil
}

// normalizeResponse unwraps the two supported webhook response shapes.
func normalizeResponse(raw []byte) (*responseEnvelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", providers.ErrExtractionFormat)
	}

	var envelope responseEnvelope
	if trimmed[0] == '[' {
		var wrapped []wrappedEnvelope
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", providers.ErrExtractionFormat, err)
		}
		if len(wrapped) != 1 {
			return nil, fmt.Errorf("%w: expected one wrapped element, got %d", providers.ErrExtractionFormat, len(wrapped))
		}
		envelope = wrapped[0].Values
	} else {
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", providers.ErrExtractionFormat, err)
		}
	}

	if envelope.Status != "success" {
		return nil, fmt.Errorf("%w: status %q", providers.ErrExtractionFormat, envelope.Status)
	}
	if envelope.ExtractedData == nil {
		return nil, fmt.Errorf("%w: missing extractedData", providers.ErrExtractionFormat)
	}

	return &envelope, nil
}

func toExtractionResult(data *extractedData) *entities.ExtractionResult {
	result := &entities.ExtractionResult{
		Foods:     make([]entities.FoodMention, 0, len(data.Foods)),
		Reactions: make([]entities.ReactionMention, 0, len(data.Reactions)),
	}
	for _, f := range data.Foods {
		result.Foods = append(result.Foods, entities.FoodMention{
			Name:     f.Name,
			MealType: f.MealType,
			Quantity: f.Quantity,
			Timing:   f.Timing,
		})
	}
	for _, r := range data.Reactions {
		result.Reactions = append(result.Reactions, entities.ReactionMention{
			Type:                 r.Type,
			Description:          r.Description,
			Location:             r.Location,
			Severity:             r.Severity,
			ReactionDelayMinutes: r.ReactionDelayMinutes,
		})
	}
	return result
}

type extractionMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

var extractionMetricsInit = false
var extractionMetricsInst extractionMetrics

func ensureExtractionMetrics() {
	if extractionMetricsInit {
		return
	}
	meter := otel.Meter("github.com/nkechi/allergyjournal/backend/extraction")

	requestCount, err := meter.Int64Counter(
		"ai.extraction.request.count",
		metric.WithDescription("Number of extraction webhook requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.extraction.request.duration",
		metric.WithDescription("Extraction webhook request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.extraction.request.errors",
		metric.WithDescription("Number of extraction webhook request errors"),
	)
	if err != nil {
		return
	}

	extractionMetricsInst = extractionMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
	}
	extractionMetricsInit = true
}

func recordExtractionMetric(ctx context.Context, statusCode int, duration time.Duration, err error) {
	ensureExtractionMetrics()
	if !extractionMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "extraction-webhook"),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	extractionMetricsInst.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	extractionMetricsInst.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		extractionMetricsInst.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
