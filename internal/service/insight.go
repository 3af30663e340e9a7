package service

import (
	"context"
	"fmt"

	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

const defaultSimilarLimit = 5

type InsightService interface {
	ListByProfile(ctx context.Context, userID, profileID int64, filter store.InsightFilter) ([]model.Insight, error)
	Get(ctx context.Context, userID, insightID int64) (*model.Insight, error)
	// Similar ranks the profile's other insights by embedding distance.
	// An insight stored without an embedding has no neighbours.
	Similar(ctx context.Context, userID, insightID int64, limit int) ([]model.SimilarInsight, error)
}

type insightService struct {
	profileStore store.ProfileStore
	insightStore store.InsightStore
}

func NewInsightService(profileStore store.ProfileStore, insightStore store.InsightStore) InsightService {
	return &insightService{profileStore: profileStore, insightStore: insightStore}
}

func (s *insightService) ListByProfile(ctx context.Context, userID, profileID int64, filter store.InsightFilter) ([]model.Insight, error) {
	if _, err := ownedProfile(ctx, s.profileStore, userID, profileID); err != nil {
		return nil, err
	}
	if filter.Flag != nil && !filter.Flag.Valid() {
		return nil, invalid("unknown flag %q", *filter.Flag)
	}
	insights, err := s.insightStore.ListByProfile(ctx, profileID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing insights: %w", err)
	}
	return insights, nil
}

func (s *insightService) Get(ctx context.Context, userID, insightID int64) (*model.Insight, error) {
	insight, err := s.insightStore.GetByID(ctx, insightID)
	if err != nil {
		return nil, fmt.Errorf("getting insight: %w", err)
	}
	if _, err := ownedProfile(ctx, s.profileStore, userID, insight.ProfileID); err != nil {
		return nil, err
	}
	return insight, nil
}

func (s *insightService) Similar(ctx context.Context, userID, insightID int64, limit int) ([]model.SimilarInsight, error) {
	insight, err := s.Get(ctx, userID, insightID)
	if err != nil {
		return nil, err
	}
	if len(insight.Embedding) == 0 {
		return []model.SimilarInsight{}, nil
	}
	if limit <= 0 {
		limit = defaultSimilarLimit
	}

	similar, err := s.insightStore.Similar(ctx, insight.ProfileID, insight.Embedding, insight.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching similar insights: %w", err)
	}
	return similar, nil
}
