package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/pkg/config"
)

const defaultTimeout = 30 * time.Second

// Client calls the external voice transcription webhook.
type Client struct {
	webhookURL string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a new transcription client.
func NewClient(cfg *config.TranscriptionConfig) (*Client, error) {
	if cfg == nil || cfg.WebhookURL == "" {
		return nil, errors.New("transcription webhook url is required")
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		webhookURL: cfg.WebhookURL,
		timeout:    timeout,
		httpClient: &http.Client{},
	}, nil
}

type transcriptionRequest struct {
	AudioURI        string  `json:"audioUri"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type transcriptionResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	JobID      string  `json:"jobId"`
}

// Transcribe sends an audio reference to the transcription webhook and
// returns the recognized text with its confidence.
func (c *Client) Transcribe(ctx context.Context, audioURI string, durationSeconds float64) (*providers.TranscriptionResult, error) {
	if audioURI == "" {
		return nil, errors.New("audio uri is required")
	}

	body, err := json.Marshal(transcriptionRequest{
		AudioURI:        audioURI,
		DurationSeconds: durationSeconds,
	})
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

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("transcription request timed out after %s: %w", c.timeout, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcription request failed with status %d", resp.StatusCode)
	}

	var decoded transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to parse transcription response: %w", err)
	}

	if decoded.Text == "" {
		return nil, errors.New("transcription response missing text")
	}

	return &providers.TranscriptionResult{
		Text:       decoded.Text,
		Confidence: decoded.Confidence,
		JobID:      decoded.JobID,
	}, nil
}
