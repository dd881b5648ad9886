package store

import (
	"time"

	"calmpath.app/memorycare/internal/mood"
)

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

type Patient struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Age             int         `json:"age"`
	Room            string      `json:"room"`
	Status          mood.Status `json:"status"`
	LastInteraction *time.Time  `json:"last_interaction"` // nil means never interacted
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type StaffNote struct {
	ID        int64     `json:"id"`
	PatientID int64     `json:"patient_id"`
	StaffID   string    `json:"staff_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type MoodLog struct {
	ID        int64       `json:"id"`
	PatientID int64       `json:"patient_id"`
	Status    mood.Status `json:"status"`
	LoggedBy  string      `json:"logged_by"` // "system" or a staff id
	CreatedAt time.Time   `json:"created_at"`
}

// Conversation is one orchestrated exchange. It is never updated after insert.
type Conversation struct {
	ID         string         `json:"id"` // Using UUID for external ID
	PatientID  int64          `json:"patient_id"`
	StaffID    *string        `json:"staff_id"` // Nullable
	Transcript string         `json:"transcript"`
	Sentiment  mood.Sentiment `json:"sentiment"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Photo struct {
	ID          int64     `json:"id"`
	PatientID   int64     `json:"patient_id"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type AlertType string

const (
	AlertStatusChange AlertType = "status_change"
	AlertNoActivity   AlertType = "no_activity"
)

type Alert struct {
	ID        int64     `json:"id"`
	PatientID int64     `json:"patient_id"`
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type StatusCount struct {
	Status mood.Status `json:"status"`
	Count  int         `json:"count"`
}
