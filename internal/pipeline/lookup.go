package pipeline

import (
	"context"
	"errors"
	"fmt"

	"cognito.app/sentinel/internal/model"
)

// ErrOrphaned is returned when an entity has no monitoring profile to run against.
var ErrOrphaned = errors.New("no owning profile")

// ScrapeSourceByID loads a source and its profile and runs ScrapeSource.
func (s *Stages) ScrapeSourceByID(ctx context.Context, sourceID int64) (*ScrapeResult, error) {
	source, err := s.stores.Sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("loading source: %w", err)
	}
	var keywords []string
	if source.ProfileID != nil {
		profile, err := s.stores.Profiles.GetByID(ctx, *source.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
		keywords = profile.Keywords
	}
	return s.ScrapeSource(ctx, source, keywords)
}

// ProcessContentByID enriches stored raw content for the profile that owns it.
func (s *Stages) ProcessContentByID(ctx context.Context, contentID int64) (*model.Insight, error) {
	content, err := s.stores.Contents.GetByID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}
	if content.ProfileID == nil {
		return nil, fmt.Errorf("content %d: %w", contentID, ErrOrphaned)
	}
	profile, err := s.stores.Profiles.GetByID(ctx, *content.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return s.ProcessContent(ctx, content, profile)
}

// EvaluateInsightByID runs the alert rules for a stored insight.
func (s *Stages) EvaluateInsightByID(ctx context.Context, insightID int64) (*EvaluateResult, error) {
	insight, err := s.stores.Insights.GetByID(ctx, insightID)
	if err != nil {
		return nil, fmt.Errorf("loading insight: %w", err)
	}
	profile, err := s.stores.Profiles.GetByID(ctx, insight.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return s.EvaluateInsight(ctx, insight, profile)
}
