package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkechi/allergyjournal/backend/internal/application/services"
	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	apperrors "github.com/nkechi/allergyjournal/backend/pkg/errors"
)

// fakeCache is an in-memory CacheProvider
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("cache miss: " + key)
	}
	return value, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

// fakeSession returns a fixed user ID
type fakeSession struct {
	userID string
}

func (s *fakeSession) CurrentUserID(ctx context.Context) (string, error) {
	return s.userID, nil
}

func TestDailySummary_ComputesCounts(t *testing.T) {
	repo := newFakeNoteRepo()
	ctx := context.Background()

	voiceDraft := &entities.NoteDraft{Text: "spoken note", Source: entities.NoteSourceVoice}
	voice, err := repo.SaveForProcessing(ctx, voiceDraft)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateWithExtraction(ctx, voice.ID, &entities.ExtractionResult{
		Foods: []entities.FoodMention{
			{Name: " Peanuts ", MealType: "snack"},
			{Name: "milk", MealType: "breakfast"},
		},
		Reactions: []entities.ReactionMention{
			{Type: "Hives", Description: "welts on arms"},
		},
	}))

	manual, err := repo.SaveForProcessing(ctx, &entities.NoteDraft{Text: "typed note", Source: entities.NoteSourceManual})
	require.NoError(t, err)
	require.NoError(t, repo.MarkProcessingFailed(ctx, manual.ID, "webhook down"))

	_, err = repo.SaveForProcessing(ctx, &entities.NoteDraft{Text: "still pending", Source: entities.NoteSourceManual})
	require.NoError(t, err)

	service := services.NewSummaryService(repo, nil, nil)
	summary, err := service.DailySummary(ctx, time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.EntryCount)
	assert.Equal(t, 1, summary.VoiceCount)
	assert.Equal(t, 2, summary.ManualCount)
	assert.Equal(t, 1, summary.PendingCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 1, summary.FoodCounts["peanuts"])
	assert.Equal(t, 1, summary.FoodCounts["milk"])
	assert.Equal(t, 1, summary.ReactionCounts["hives"])
}

func TestDailySummary_IgnoresOtherDays(t *testing.T) {
	repo := newFakeNoteRepo()
	old := entities.NewNoteEntry(&entities.NoteDraft{Text: "from last week", Source: entities.NoteSourceManual})
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -7)
	repo.add(old)

	service := services.NewSummaryService(repo, nil, nil)
	summary, err := service.DailySummary(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.EntryCount)
}

func TestDailySummary_ServesFromCache(t *testing.T) {
	repo := newFakeNoteRepo()
	cache := newFakeCache()
	session := &fakeSession{userID: "user-7"}
	service := services.NewSummaryService(repo, cache, session)
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	cached := &services.DailySummary{Date: "2026-08-24", EntryCount: 99}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), "summary:user-7:2026-08-24", data, 60))

	summary, err := service.DailySummary(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 99, summary.EntryCount)
}

func TestDailySummary_PopulatesCacheOnMiss(t *testing.T) {
	repo := newFakeNoteRepo()
	cache := newFakeCache()
	service := services.NewSummaryService(repo, cache, nil)

	_, err := service.DailySummary(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Anonymous key namespace when no session is configured
	date := time.Now().UTC().Format("2006-01-02")
	exists, err := cache.Exists(context.Background(), "summary:anonymous:"+date)
	require.NoError(t, err)
	assert.True(t, exists)
}
