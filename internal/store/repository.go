package store

import (
	"context"
	"fmt"
	"time"

	"calmpath.app/memorycare/internal/mood"
)

// SystemActor tags mood log entries that were not made by a staff member.
const SystemActor = "system"

// Repository is the persistence boundary used by the services. Lookups of a
// single row return (nil, nil) when the row does not exist.
type Repository interface {
	CreateUser(ctx context.Context, externalUserID, passwordHash string) (*User, error)
	GetUserByExternalID(ctx context.Context, externalUserID string) (*User, error)

	ListPatients(ctx context.Context) ([]Patient, error)
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	CreatePatient(ctx context.Context, name string, age int, room string, status mood.Status) (*Patient, error)
	UpdatePatientStatus(ctx context.Context, id int64, status mood.Status) (*Patient, error)
	UpdatePatientInteraction(ctx context.Context, id int64) (*Patient, error)
	GetPatientsInactiveSince(ctx context.Context, threshold time.Time) ([]Patient, error)
	GetPatientStatusCounts(ctx context.Context) ([]StatusCount, error)

	CreateStaffNote(ctx context.Context, patientID int64, staffID, content string) (*StaffNote, error)
	GetPatientNotes(ctx context.Context, patientID int64) ([]StaffNote, error)
	GetRecentNotes(ctx context.Context, patientID int64, limit int) ([]StaffNote, error)

	CreateMoodLog(ctx context.Context, patientID int64, status mood.Status, loggedBy string) (*MoodLog, error)
	GetPatientMoodHistory(ctx context.Context, patientID int64, since time.Time) ([]MoodLog, error)

	CreateConversation(ctx context.Context, patientID int64, staffID *string, transcript string, sentiment mood.Sentiment) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetPatientConversations(ctx context.Context, patientID int64) ([]Conversation, error)

	CreatePhoto(ctx context.Context, photo *Photo) error
	GetPhoto(ctx context.Context, id int64) (*Photo, error)
	GetPhotos(ctx context.Context, patientID int64) ([]Photo, error)
	DeletePhoto(ctx context.Context, id int64) error

	CreateAlert(ctx context.Context, patientID int64, alertType AlertType, message string) (*Alert, error)
	GetUnreadAlerts(ctx context.Context) ([]Alert, error)
	MarkAlertRead(ctx context.Context, id int64) error

	Close() error
}

// parseStoredStatus validates a status read back from storage.
func parseStoredStatus(raw string) (mood.Status, error) {
	s := mood.Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("stored status %q: %w", raw, mood.ErrInvalidStatus)
	}
	return s, nil
}
