package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

const dashboardRecent = 5

// Dashboard is the landing view of one profile.
type Dashboard struct {
	Profile        *model.MonitoringProfile `json:"profile"`
	NewAlerts      map[model.Severity]int   `json:"newAlertsBySeverity"`
	RecentAlerts   []model.Alert            `json:"recentAlerts"`
	RecentInsights []model.Insight          `json:"recentInsights"`
}

type DashboardService interface {
	Get(ctx context.Context, userID, profileID int64) (*Dashboard, error)
}

type dashboardService struct {
	profileStore store.ProfileStore
	alertStore   store.AlertStore
	insightStore store.InsightStore
}

func NewDashboardService(profileStore store.ProfileStore, alertStore store.AlertStore, insightStore store.InsightStore) DashboardService {
	return &dashboardService{
		profileStore: profileStore,
		alertStore:   alertStore,
		insightStore: insightStore,
	}
}

func (s *dashboardService) Get(ctx context.Context, userID, profileID int64) (*Dashboard, error) {
	profile, err := ownedProfile(ctx, s.profileStore, userID, profileID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Profile: profile}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.alertStore.CountNewBySeverity(gctx, profileID)
		if err != nil {
			return fmt.Errorf("counting alerts: %w", err)
		}
		d.NewAlerts = make(map[model.Severity]int, len(model.Severities))
		for _, sev := range model.Severities {
			d.NewAlerts[sev] = counts[sev]
		}
		return nil
	})
	g.Go(func() error {
		alerts, err := s.alertStore.ListByProfile(gctx, profileID, store.AlertFilter{Limit: dashboardRecent})
		if err != nil {
			return fmt.Errorf("listing recent alerts: %w", err)
		}
		d.RecentAlerts = nonNilSlice(alerts)
		return nil
	})
	g.Go(func() error {
		insights, err := s.insightStore.ListByProfile(gctx, profileID, store.InsightFilter{Limit: dashboardRecent})
		if err != nil {
			return fmt.Errorf("listing recent insights: %w", err)
		}
		d.RecentInsights = nonNilSlice(insights)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
