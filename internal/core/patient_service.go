package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"calmpath.app/memorycare/internal/mood"
	"calmpath.app/memorycare/internal/store"
)

const DefaultMoodHistoryDays = 7

type PatientService struct {
	repo   store.Repository
	alerts *AlertService
	logger zerolog.Logger
}

func NewPatientService(repo store.Repository, alerts *AlertService, logger zerolog.Logger) *PatientService {
	return &PatientService{
		repo:   repo,
		alerts: alerts,
		logger: logger.With().Str("component", "patients").Logger(),
	}
}

type CreatePatientInput struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Room   string `json:"room"`
	Status string `json:"status,omitempty"`
}

func (s *PatientService) ListPatients(ctx context.Context) ([]store.Patient, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, persistenceErr("list patients", err)
	}
	return patients, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id int64) (*store.Patient, error) {
	patient, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, persistenceErr("get patient", err)
	}
	if patient == nil {
		return nil, fmt.Errorf("patient %d: %w", id, ErrNotFound)
	}
	return patient, nil
}

func (s *PatientService) CreatePatient(ctx context.Context, in CreatePatientInput) (*store.Patient, error) {
	name := strings.TrimSpace(in.Name)
	room := strings.TrimSpace(in.Room)
	if name == "" || room == "" {
		return nil, fmt.Errorf("%w: name and room are required", ErrInvalidInput)
	}
	if in.Age <= 0 {
		return nil, fmt.Errorf("%w: age must be positive", ErrInvalidInput)
	}

	status := mood.OK
	if in.Status != "" {
		parsed, err := mood.ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	patient, err := s.repo.CreatePatient(ctx, name, in.Age, room, status)
	if err != nil {
		return nil, persistenceErr("create patient", err)
	}
	s.logger.Info().Int64("patient_id", patient.ID).Msg("Patient created")
	return patient, nil
}

// SetStatus is the staff-initiated status change. It applies the same
// transition rule as the conversation pipeline; an unchanged status is a no-op.
func (s *PatientService) SetStatus(ctx context.Context, id int64, rawStatus, staffID string) (*store.Patient, error) {
	next, err := mood.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	patient, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	loggedBy := staffID
	if loggedBy == "" {
		loggedBy = store.SystemActor
	}
	updated, changed, err := transitionStatus(ctx, s.repo, s.alerts, patient, next, loggedBy, staffStatusAlertMessage(patient.Name, next))
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info().Int64("patient_id", id).Str("to", next.String()).Str("by", loggedBy).Msg("Patient status set")
	}
	return updated, nil
}

func (s *PatientService) RecordInteraction(ctx context.Context, id int64) (*store.Patient, error) {
	patient, err := s.repo.UpdatePatientInteraction(ctx, id)
	if err != nil {
		return nil, persistenceErr("update patient interaction", err)
	}
	if patient == nil {
		return nil, fmt.Errorf("patient %d: %w", id, ErrNotFound)
	}
	return patient, nil
}

func (s *PatientService) AddNote(ctx context.Context, patientID int64, staffID, content string) (*store.StaffNote, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: note content is required", ErrInvalidInput)
	}
	if err := requirePatient(ctx, s.repo, patientID); err != nil {
		return nil, err
	}
	note, err := s.repo.CreateStaffNote(ctx, patientID, staffID, content)
	if err != nil {
		return nil, persistenceErr("create staff note", err)
	}
	return note, nil
}

func (s *PatientService) ListNotes(ctx context.Context, patientID int64) ([]store.StaffNote, error) {
	if err := requirePatient(ctx, s.repo, patientID); err != nil {
		return nil, err
	}
	notes, err := s.repo.GetPatientNotes(ctx, patientID)
	if err != nil {
		return nil, persistenceErr("list staff notes", err)
	}
	return notes, nil
}

// MoodHistory returns entries logged in the last days days, newest first.
// A non-positive days uses DefaultMoodHistoryDays.
func (s *PatientService) MoodHistory(ctx context.Context, patientID int64, days int) ([]store.MoodLog, error) {
	if days <= 0 {
		days = DefaultMoodHistoryDays
	}
	if err := requirePatient(ctx, s.repo, patientID); err != nil {
		return nil, err
	}
	since := time.Now().AddDate(0, 0, -days)
	logs, err := s.repo.GetPatientMoodHistory(ctx, patientID, since)
	if err != nil {
		return nil, persistenceErr("get mood history", err)
	}
	return logs, nil
}

func (s *PatientService) AddPhoto(ctx context.Context, photo *store.Photo) error {
	if err := requirePatient(ctx, s.repo, photo.PatientID); err != nil {
		return err
	}
	photo.Description = strings.TrimSpace(photo.Description)
	photo.Category = strings.TrimSpace(photo.Category)
	if err := s.repo.CreatePhoto(ctx, photo); err != nil {
		return persistenceErr("create photo", err)
	}
	return nil
}

func (s *PatientService) ListPhotos(ctx context.Context, patientID int64) ([]store.Photo, error) {
	if err := requirePatient(ctx, s.repo, patientID); err != nil {
		return nil, err
	}
	photos, err := s.repo.GetPhotos(ctx, patientID)
	if err != nil {
		return nil, persistenceErr("list photos", err)
	}
	return photos, nil
}

// DeletePhoto removes the photo row and returns it so the caller can clean up the file.
func (s *PatientService) DeletePhoto(ctx context.Context, photoID int64) (*store.Photo, error) {
	photo, err := s.repo.GetPhoto(ctx, photoID)
	if err != nil {
		return nil, persistenceErr("get photo", err)
	}
	if photo == nil {
		return nil, fmt.Errorf("photo %d: %w", photoID, ErrNotFound)
	}
	if err := s.repo.DeletePhoto(ctx, photoID); err != nil {
		return nil, persistenceErr("delete photo", err)
	}
	return photo, nil
}

func (s *PatientService) StatusCounts(ctx context.Context) ([]store.StatusCount, error) {
	counts, err := s.repo.GetPatientStatusCounts(ctx)
	if err != nil {
		return nil, persistenceErr("get status counts", err)
	}
	return counts, nil
}
