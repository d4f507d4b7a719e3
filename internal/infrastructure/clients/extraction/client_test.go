package extraction_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/clients/extraction"
	"github.com/nkechi/allergyjournal/backend/pkg/config"
)

func newTestClient(t *testing.T, url string, timeoutSeconds int) *extraction.Client {
	t.Helper()
	client, err := extraction.NewClient(&config.ExtractionConfig{
		WebhookURL:     url,
		TimeoutSeconds: timeoutSeconds,
	})
	require.NoError(t, err)
	return client
}

func testNote() *entities.NoteEntry {
	return entities.NewNoteEntry(&entities.NoteDraft{
		Text:   "ate peanuts, throat felt tight after twenty minutes",
		Source: entities.NoteSourceManual,
	})
}

func TestNewClient_RequiresWebhookURL(t *testing.T) {
	_, err := extraction.NewClient(&config.ExtractionConfig{})
	require.Error(t, err)
}

func TestExtract_FlatResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ate peanuts, throat felt tight after twenty minutes", payload["text"])
		assert.Equal(t, "manual", payload["source"])
		assert.Contains(t, payload, "timestamp")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "success",
			"extractedData": {
				"foods": [{"name": "peanuts", "mealType": "snack", "quantity": "a handful"}],
				"reactions": [{"type": "throat tightness", "description": "tight throat", "severity": "moderate", "reactionDelayMinutes": 20}]
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	result, err := client.Extract(context.Background(), testNote())
	require.NoError(t, err)

	require.Len(t, result.Foods, 1)
	assert.Equal(t, "peanuts", result.Foods[0].Name)
	assert.Equal(t, "snack", result.Foods[0].MealType)
	require.Len(t, result.Reactions, 1)
	assert.Equal(t, "throat tightness", result.Reactions[0].Type)
	require.NotNil(t, result.Reactions[0].ReactionDelayMinutes)
	assert.Equal(t, 20, *result.Reactions[0].ReactionDelayMinutes)
}

func TestExtract_WrappedArrayResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{
			"values": {
				"status": "success",
				"extractedData": {
					"foods": [{"name": "milk", "mealType": "breakfast"}],
					"reactions": []
				}
			}
		}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	result, err := client.Extract(context.Background(), testNote())
	require.NoError(t, err)

	require.Len(t, result.Foods, 1)
	assert.Equal(t, "milk", result.Foods[0].Name)
	assert.Empty(t, result.Reactions)
}

func TestExtract_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "success", "extractedData": {"foods": [], "reactions": []}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	result, err := client.Extract(context.Background(), testNote())
	require.NoError(t, err)
	assert.Empty(t, result.Foods)
	assert.Empty(t, result.Reactions)
}

func TestExtract_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "extractedData": {"foods": [], "reactions": []}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	_, err := client.Extract(context.Background(), testNote())
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrExtractionFormat)
}

func TestExtract_MissingExtractedData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "success"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	_, err := client.Extract(context.Background(), testNote())
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrExtractionFormat)
}

func TestExtract_MultiElementArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"values": {"status": "success"}}, {"values": {"status": "success"}}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	_, err := client.Extract(context.Background(), testNote())
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrExtractionFormat)
}

func TestExtract_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	_, err := client.Extract(context.Background(), testNote())
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrExtractionFormat)
}

func TestExtract_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	_, err := client.Extract(context.Background(), testNote())
	require.Error(t, err)

	var httpErr *providers.ExtractionHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestExtract_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, err := extraction.NewClient(&config.ExtractionConfig{
		WebhookURL:     server.URL,
		TimeoutSeconds: 1,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Extract(context.Background(), testNote())
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrExtractionTimeout)
	assert.Less(t, time.Since(start), 3*time.Second)
}
