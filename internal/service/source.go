package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cognito.app/sentinel/common/id"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

type SourceInput struct {
	URL              string
	SourceType       model.SourceType // empty classifies from the hostname
	CredibilityScore *float64
}

type SourceUpdate struct {
	SourceType       *model.SourceType
	CredibilityScore *float64
	// Status set back to active makes the source due immediately.
	Status *model.SourceStatus
}

type SourceService interface {
	ListByProfile(ctx context.Context, userID, profileID int64) ([]model.DataSource, error)
	Create(ctx context.Context, userID, profileID int64, in SourceInput) (*model.DataSource, error)
	Update(ctx context.Context, userID, sourceID int64, in SourceUpdate) (*model.DataSource, error)
	Delete(ctx context.Context, userID, sourceID int64) error
}

// ErrSourceExists is returned when the profile already monitors the URL.
var ErrSourceExists = errors.New("source already exists")

type sourceService struct {
	profileStore store.ProfileStore
	sourceStore  store.SourceStore
}

func NewSourceService(profileStore store.ProfileStore, sourceStore store.SourceStore) SourceService {
	return &sourceService{profileStore: profileStore, sourceStore: sourceStore}
}

func (s *sourceService) ListByProfile(ctx context.Context, userID, profileID int64) ([]model.DataSource, error) {
	if _, err := ownedProfile(ctx, s.profileStore, userID, profileID); err != nil {
		return nil, err
	}
	sources, err := s.sourceStore.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return sources, nil
}

func (s *sourceService) Create(ctx context.Context, userID, profileID int64, in SourceInput) (*model.DataSource, error) {
	if _, err := ownedProfile(ctx, s.profileStore, userID, profileID); err != nil {
		return nil, err
	}

	rawURL := strings.TrimSpace(in.URL)
	if err := validateURL("url", rawURL); err != nil {
		return nil, err
	}
	sourceType := in.SourceType
	if sourceType == "" {
		sourceType = model.ClassifySourceType(rawURL)
	} else if !sourceType.Valid() {
		return nil, invalid("unknown source type %q", sourceType)
	}
	credibility := model.DiscoveredCredibility
	if in.CredibilityScore != nil {
		if err := validateCredibility(*in.CredibilityScore); err != nil {
			return nil, err
		}
		credibility = *in.CredibilityScore
	}

	source := &model.DataSource{
		ID:               id.New(),
		ProfileID:        &profileID,
		URL:              rawURL,
		SourceType:       sourceType,
		CredibilityScore: credibility,
		Status:           model.SourceStatusActive,
	}
	if err := s.sourceStore.Create(ctx, source); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSourceExists
		}
		return nil, fmt.Errorf("creating source: %w", err)
	}

	slog.InfoContext(ctx, "source added",
		"source_id", source.ID,
		"profile_id", profileID,
		"source_type", source.SourceType)
	return source, nil
}

func (s *sourceService) Update(ctx context.Context, userID, sourceID int64, in SourceUpdate) (*model.DataSource, error) {
	source, err := s.ownedSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}

	if in.SourceType != nil {
		if !in.SourceType.Valid() {
			return nil, invalid("unknown source type %q", *in.SourceType)
		}
		source.SourceType = *in.SourceType
	}
	if in.CredibilityScore != nil {
		if err := validateCredibility(*in.CredibilityScore); err != nil {
			return nil, err
		}
		source.CredibilityScore = *in.CredibilityScore
	}
	if in.Status != nil {
		switch *in.Status {
		case model.SourceStatusActive:
			if source.Status != model.SourceStatusActive {
				source.NextScrapeDueAt = nil
			}
		case model.SourceStatusRequiresAttention, model.SourceStatusUnreachable:
		default:
			return nil, invalid("unknown source status %q", *in.Status)
		}
		source.Status = *in.Status
	}

	if err := s.sourceStore.Update(ctx, source); err != nil {
		return nil, fmt.Errorf("updating source: %w", err)
	}
	return source, nil
}

func (s *sourceService) Delete(ctx context.Context, userID, sourceID int64) error {
	if _, err := s.ownedSource(ctx, userID, sourceID); err != nil {
		return err
	}
	if err := s.sourceStore.Delete(ctx, sourceID); err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	return nil
}

func (s *sourceService) ownedSource(ctx context.Context, userID, sourceID int64) (*model.DataSource, error) {
	source, err := s.sourceStore.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("getting source: %w", err)
	}
	if source.ProfileID == nil {
		return nil, ErrForbidden
	}
	if _, err := ownedProfile(ctx, s.profileStore, userID, *source.ProfileID); err != nil {
		return nil, err
	}
	return source, nil
}

func validateCredibility(v float64) error {
	if v < 0 || v > 1 {
		return invalid("credibility_score must be between 0 and 1")
	}
	return nil
}
