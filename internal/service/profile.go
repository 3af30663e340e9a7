package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"cognito.app/sentinel/common/id"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

type ProfileInput struct {
	Name                    string
	TargetEntityDescription string
	Keywords                []string
	IndustryTags            []string
	SourceConfig            model.SourceConfig
	AlertConfig             model.AlertConfig
	// Status is honoured on update only; empty keeps the current status.
	Status model.ProfileStatus
}

type ProfileService interface {
	List(ctx context.Context, userID int64) ([]model.MonitoringProfile, error)
	Get(ctx context.Context, userID, profileID int64) (*model.MonitoringProfile, error)
	// Create stores the profile and registers its seed URLs as sources in one transaction.
	Create(ctx context.Context, userID int64, in ProfileInput) (*model.MonitoringProfile, error)
	Update(ctx context.Context, userID, profileID int64, in ProfileInput) (*model.MonitoringProfile, error)
	Delete(ctx context.Context, userID, profileID int64) error
}

type profileService struct {
	profileStore store.ProfileStore
	txRunner     TxRunner
}

func NewProfileService(profileStore store.ProfileStore, txRunner TxRunner) ProfileService {
	return &profileService{profileStore: profileStore, txRunner: txRunner}
}

// ownedProfile loads a profile and checks it belongs to userID.
func ownedProfile(ctx context.Context, profiles store.ProfileStore, userID, profileID int64) (*model.MonitoringProfile, error) {
	profile, err := profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	if profile.UserID != userID {
		return nil, ErrForbidden
	}
	return profile, nil
}

func (s *profileService) List(ctx context.Context, userID int64) ([]model.MonitoringProfile, error) {
	profiles, err := s.profileStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return profiles, nil
}

func (s *profileService) Get(ctx context.Context, userID, profileID int64) (*model.MonitoringProfile, error) {
	return ownedProfile(ctx, s.profileStore, userID, profileID)
}

func (s *profileService) Create(ctx context.Context, userID int64, in ProfileInput) (*model.MonitoringProfile, error) {
	profile := &model.MonitoringProfile{
		ID:     id.New(),
		UserID: userID,
		Status: model.ProfileStatusActive,
	}
	if err := applyProfileInput(profile, in); err != nil {
		return nil, err
	}

	err := s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Profiles().Create(ctx, profile); err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}
		return addSeedSources(ctx, stores.Sources(), profile, nil)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create profile", "error", err, "user_id", userID)
		return nil, err
	}

	slog.InfoContext(ctx, "profile created",
		"profile_id", profile.ID,
		"user_id", userID,
		"seed_urls", len(profile.SourceConfig.SeedURLs))
	return profile, nil
}

func (s *profileService) Update(ctx context.Context, userID, profileID int64, in ProfileInput) (*model.MonitoringProfile, error) {
	var profile *model.MonitoringProfile

	err := s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		var err error
		profile, err = ownedProfile(ctx, stores.Profiles(), userID, profileID)
		if err != nil {
			return err
		}
		if err := applyProfileInput(profile, in); err != nil {
			return err
		}
		if err := stores.Profiles().Update(ctx, profile); err != nil {
			return fmt.Errorf("updating profile: %w", err)
		}

		existing, err := stores.Sources().ListByProfile(ctx, profile.ID)
		if err != nil {
			return fmt.Errorf("listing sources: %w", err)
		}
		return addSeedSources(ctx, stores.Sources(), profile, existing)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *profileService) Delete(ctx context.Context, userID, profileID int64) error {
	if _, err := ownedProfile(ctx, s.profileStore, userID, profileID); err != nil {
		return err
	}
	if err := s.profileStore.Delete(ctx, profileID); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	slog.InfoContext(ctx, "profile deleted", "profile_id", profileID)
	return nil
}

func applyProfileInput(profile *model.MonitoringProfile, in ProfileInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return invalid("name is required")
	}

	sourceCfg, err := normalizeSourceConfig(in.SourceConfig)
	if err != nil {
		return err
	}
	alertCfg, err := normalizeAlertConfig(in.AlertConfig)
	if err != nil {
		return err
	}

	switch in.Status {
	case "":
	case model.ProfileStatusActive, model.ProfileStatusPaused:
		profile.Status = in.Status
	default:
		return invalid("status must be active or paused")
	}

	profile.Name = name
	profile.TargetEntityDescription = strings.TrimSpace(in.TargetEntityDescription)
	profile.Keywords = cleanList(in.Keywords)
	profile.IndustryTags = cleanList(in.IndustryTags)
	profile.SourceConfig = sourceCfg
	profile.AlertConfig = alertCfg
	return nil
}

// addSeedSources registers seed URLs that are not sources of the profile yet.
// Seeds are due immediately.
func addSeedSources(ctx context.Context, sources store.SourceStore, profile *model.MonitoringProfile, existing []model.DataSource) error {
	known := lo.SliceToMap(existing, func(s model.DataSource) (string, struct{}) {
		return model.NormalizeURL(s.URL), struct{}{}
	})

	for _, seed := range profile.SourceConfig.SeedURLs {
		if _, ok := known[model.NormalizeURL(seed)]; ok {
			continue
		}
		source := &model.DataSource{
			ID:               id.New(),
			ProfileID:        &profile.ID,
			URL:              seed,
			SourceType:       model.ClassifySourceType(seed),
			CredibilityScore: model.DiscoveredCredibility,
			Status:           model.SourceStatusActive,
		}
		if err := sources.Create(ctx, source); err != nil {
			return fmt.Errorf("creating seed source %s: %w", seed, err)
		}
		known[model.NormalizeURL(seed)] = struct{}{}
	}
	return nil
}
