package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"calmpath.app/memorycare/internal/mood"
	"calmpath.app/memorycare/internal/store"
)

// AlertNotifier forwards a newly created alert outside the system.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, patient store.Patient, alert store.Alert) error
}

type AlertService struct {
	repo     store.Repository
	notifier AlertNotifier
	logger   zerolog.Logger
}

// NewAlertService creates the alert service. notifier may be nil.
func NewAlertService(repo store.Repository, notifier AlertNotifier, logger zerolog.Logger) *AlertService {
	return &AlertService{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With().Str("component", "alerts").Logger(),
	}
}

func (s *AlertService) raise(ctx context.Context, patient *store.Patient, alertType store.AlertType, message string) (*store.Alert, error) {
	alert, err := s.repo.CreateAlert(ctx, patient.ID, alertType, message)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", patient.ID).Str("type", string(alertType)).Int64("alert_id", alert.ID).Msg("Alert raised")

	if s.notifier != nil {
		if err := s.notifier.NotifyAlert(ctx, *patient, *alert); err != nil {
			s.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("Failed to forward alert")
		}
	}
	return alert, nil
}

func (s *AlertService) ListUnread(ctx context.Context) ([]store.Alert, error) {
	alerts, err := s.repo.GetUnreadAlerts(ctx)
	if err != nil {
		return nil, persistenceErr("list unread alerts", err)
	}
	return alerts, nil
}

func (s *AlertService) MarkRead(ctx context.Context, alertID int64) error {
	if err := s.repo.MarkAlertRead(ctx, alertID); err != nil {
		return persistenceErr("mark alert read", err)
	}
	return nil
}

func staffStatusAlertMessage(name string, status mood.Status) string {
	return fmt.Sprintf("%s's status changed to %s", name, status.Label())
}

func conversationStatusAlertMessage(name string, status mood.Status) string {
	return fmt.Sprintf("%s's mood detected as %s during AI conversation", name, status)
}

// transitionStatus moves patient to next when it differs from the current
// status: the status is updated, a mood log entry is appended and, for
// anxious, a status_change alert is raised. It reports whether anything changed.
func transitionStatus(ctx context.Context, repo store.Repository, alerts *AlertService, patient *store.Patient, next mood.Status, loggedBy, alertMessage string) (*store.Patient, bool, error) {
	if next == patient.Status {
		return patient, false, nil
	}

	updated, err := repo.UpdatePatientStatus(ctx, patient.ID, next)
	if err != nil {
		return nil, false, persistenceErr("update patient status", err)
	}
	if updated == nil {
		return nil, false, fmt.Errorf("patient %d: %w", patient.ID, ErrNotFound)
	}

	if _, err := repo.CreateMoodLog(ctx, patient.ID, next, loggedBy); err != nil {
		return nil, false, persistenceErr("create mood log", err)
	}

	if next == mood.Anxious {
		if _, err := alerts.raise(ctx, updated, store.AlertStatusChange, alertMessage); err != nil {
			return nil, false, persistenceErr("create status alert", err)
		}
	}
	return updated, true, nil
}
