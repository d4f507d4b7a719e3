package services

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nkechi/allergyjournal/backend/internal/domain/entities"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/internal/domain/repositories"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/observability"
)

const summaryCacheTTLSeconds = 3600

// DailySummary aggregates one day of journal activity
type DailySummary struct {
	Date           string         `json:"date"`
	EntryCount     int            `json:"entry_count"`
	VoiceCount     int            `json:"voice_count"`
	ManualCount    int            `json:"manual_count"`
	PendingCount   int            `json:"pending_count"`
	FailedCount    int            `json:"failed_count"`
	FoodCounts     map[string]int `json:"food_counts"`
	ReactionCounts map[string]int `json:"reaction_counts"`
}

// SummaryService computes per-day journal summaries with a per-user
// cache. The user identity only namespaces the cache key; the journal
// itself is not user-scoped.
type SummaryService struct {
	repo    repositories.NoteRepository
	cache   providers.CacheProvider
	session providers.SessionProvider
}

// NewSummaryService creates a new summary service. Cache and session
// may be nil; summaries are then recomputed on every call.
func NewSummaryService(
	repo repositories.NoteRepository,
	cache providers.CacheProvider,
	session providers.SessionProvider,
) *SummaryService {
	return &SummaryService{
		repo:    repo,
		cache:   cache,
		session: session,
	}
}

// DailySummary returns the summary for the given day, serving from
// cache when possible. Cache failures degrade to recomputation.
func (s *SummaryService) DailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	date := day.UTC().Format("2006-01-02")
	key := s.cacheKey(ctx, date)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cached DailySummary
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		}
	}

	entries, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := &DailySummary{
		Date:           date,
		FoodCounts:     make(map[string]int),
		ReactionCounts: make(map[string]int),
	}

	for _, entry := range entries {
		if entry.Timestamp.UTC().Format("2006-01-02") != date {
			continue
		}
		summary.EntryCount++

		switch entry.Source {
		case entities.NoteSourceVoice:
			summary.VoiceCount++
		case entities.NoteSourceManual:
			summary.ManualCount++
		}

		switch entry.ProcessingStatus {
		case entities.ProcessingStatusProcessing:
			summary.PendingCount++
		case entities.ProcessingStatusFailed:
			summary.FailedCount++
		}

		for _, food := range entry.Foods {
			name := strings.ToLower(strings.TrimSpace(food.Name))
			if name != "" {
				summary.FoodCounts[name]++
			}
		}
		for _, reaction := range entry.Reactions {
			kind := strings.ToLower(strings.TrimSpace(reaction.Type))
			if kind != "" {
				summary.ReactionCounts[kind]++
			}
		}
	}

	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, key, data, summaryCacheTTLSeconds); err != nil {
				observability.GetLogger().Debug().Err(err).Str("key", key).Msg("failed to cache daily summary")
			}
		}
	}

	return summary, nil
}

func (s *SummaryService) cacheKey(ctx context.Context, date string) string {
	userID := "anonymous"
	if s.session != nil {
		if id, err := s.session.CurrentUserID(ctx); err == nil && id != "" {
			userID = id
		}
	}
	return "summary:" + userID + ":" + date
}
