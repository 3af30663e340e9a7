package service

import (
	"context"
	"fmt"
	"log/slog"

	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

type AlertService interface {
	ListByProfile(ctx context.Context, userID, profileID int64, filter store.AlertFilter) ([]model.Alert, error)
	Get(ctx context.Context, userID, alertID int64) (*model.Alert, error)
	UpdateStatus(ctx context.Context, userID, alertID int64, status model.AlertStatus, notes *string) (*model.Alert, error)
}

type alertService struct {
	profileStore store.ProfileStore
	alertStore   store.AlertStore
}

func NewAlertService(profileStore store.ProfileStore, alertStore store.AlertStore) AlertService {
	return &alertService{profileStore: profileStore, alertStore: alertStore}
}

func (s *alertService) ListByProfile(ctx context.Context, userID, profileID int64, filter store.AlertFilter) ([]model.Alert, error) {
	if _, err := ownedProfile(ctx, s.profileStore, userID, profileID); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, invalid("unknown status %q", *filter.Status)
	}
	alerts, err := s.alertStore.ListByProfile(ctx, profileID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	return alerts, nil
}

func (s *alertService) Get(ctx context.Context, userID, alertID int64) (*model.Alert, error) {
	alert, err := s.alertStore.GetByID(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("getting alert: %w", err)
	}
	if _, err := ownedProfile(ctx, s.profileStore, userID, alert.ProfileID); err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *alertService) UpdateStatus(ctx context.Context, userID, alertID int64, status model.AlertStatus, notes *string) (*model.Alert, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	if _, err := s.Get(ctx, userID, alertID); err != nil {
		return nil, err
	}

	alert, err := s.alertStore.UpdateStatus(ctx, alertID, status, notes)
	if err != nil {
		return nil, fmt.Errorf("updating alert status: %w", err)
	}
	slog.InfoContext(ctx, "alert status updated", "alert_id", alertID, "status", status)
	return alert, nil
}
