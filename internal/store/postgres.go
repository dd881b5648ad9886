package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calmpath.app/memorycare/internal/mood"
)

// PostgresStore is the Repository used when DATABASE_DRIVER=postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, databaseURL string, maxConns, minConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id BIGSERIAL PRIMARY KEY,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE TABLE IF NOT EXISTS patients (
        id BIGSERIAL PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        age INTEGER NOT NULL,
        room VARCHAR(50) NOT NULL,
        status VARCHAR(20) NOT NULL DEFAULT 'ok' CHECK (status IN ('good', 'ok', 'anxious')),
        last_interaction TIMESTAMPTZ,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE TABLE IF NOT EXISTS staff_notes (
        id BIGSERIAL PRIMARY KEY,
        patient_id BIGINT NOT NULL REFERENCES patients (id),
        staff_id TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE TABLE IF NOT EXISTS mood_logs (
        id BIGSERIAL PRIMARY KEY,
        patient_id BIGINT NOT NULL REFERENCES patients (id),
        status VARCHAR(20) NOT NULL CHECK (status IN ('good', 'ok', 'anxious')),
        logged_by TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id UUID PRIMARY KEY,
        patient_id BIGINT NOT NULL REFERENCES patients (id),
        staff_id TEXT,
        transcript TEXT NOT NULL,
        sentiment VARCHAR(20) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE TABLE IF NOT EXISTS therapeutic_photos (
        id BIGSERIAL PRIMARY KEY,
        patient_id BIGINT NOT NULL REFERENCES patients (id),
        url VARCHAR(500) NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        category VARCHAR(50) NOT NULL DEFAULT '',
        uploaded_by TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE TABLE IF NOT EXISTS alerts (
        id BIGSERIAL PRIMARY KEY,
        patient_id BIGINT NOT NULL REFERENCES patients (id),
        type VARCHAR(50) NOT NULL CHECK (type IN ('status_change', 'no_activity')),
        message TEXT NOT NULL,
        is_read BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE INDEX IF NOT EXISTS idx_staff_notes_patient ON staff_notes (patient_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_mood_logs_patient ON mood_logs (patient_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_alerts_unread ON alerts (is_read, patient_id);
    `
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// User methods
func (s *PostgresStore) CreateUser(ctx context.Context, externalUserID, passwordHash string) (*User, error) {
	u := User{ExternalUserID: externalUserID, PasswordHash: passwordHash}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO users (external_user_id, password_hash) VALUES ($1, $2) RETURNING id, created_at",
		externalUserID, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByExternalID(ctx context.Context, externalUserID string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		"SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = $1",
		externalUserID).Scan(&u.ID, &u.ExternalUserID, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// Patient methods
func scanPgPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Room, &status, &p.LastInteraction, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := parseStoredStatus(status)
	if err != nil {
		return nil, err
	}
	p.Status = parsed
	return &p, nil
}

func (s *PostgresStore) queryPatients(ctx context.Context, query string, args ...any) ([]Patient, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPgPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient row: %w", err)
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

func (s *PostgresStore) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.queryPatients(ctx, "SELECT "+patientColumns+" FROM patients ORDER BY name ASC, id ASC")
}

func (s *PostgresStore) singlePatient(ctx context.Context, query string, args ...any) (*Patient, error) {
	p, err := scanPgPatient(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.singlePatient(ctx, "SELECT "+patientColumns+" FROM patients WHERE id = $1", id)
}

func (s *PostgresStore) CreatePatient(ctx context.Context, name string, age int, room string, status mood.Status) (*Patient, error) {
	return s.singlePatient(ctx,
		"INSERT INTO patients (name, age, room, status, last_interaction) VALUES ($1, $2, $3, $4, now()) RETURNING "+patientColumns,
		name, age, room, string(status))
}

func (s *PostgresStore) UpdatePatientStatus(ctx context.Context, id int64, status mood.Status) (*Patient, error) {
	return s.singlePatient(ctx,
		"UPDATE patients SET status = $1, updated_at = now() WHERE id = $2 RETURNING "+patientColumns,
		string(status), id)
}

func (s *PostgresStore) UpdatePatientInteraction(ctx context.Context, id int64) (*Patient, error) {
	return s.singlePatient(ctx,
		"UPDATE patients SET last_interaction = now(), updated_at = now() WHERE id = $1 RETURNING "+patientColumns,
		id)
}

func (s *PostgresStore) GetPatientsInactiveSince(ctx context.Context, threshold time.Time) ([]Patient, error) {
	return s.queryPatients(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE last_interaction IS NULL OR last_interaction < $1 ORDER BY id ASC",
		threshold)
}

func (s *PostgresStore) GetPatientStatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.pool.Query(ctx, "SELECT status, COUNT(*) FROM patients GROUP BY status ORDER BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var raw string
		var n int64
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		status, err := parseStoredStatus(raw)
		if err != nil {
			return nil, err
		}
		counts = append(counts, StatusCount{Status: status, Count: int(n)})
	}
	return counts, rows.Err()
}

// Staff note methods
func (s *PostgresStore) CreateStaffNote(ctx context.Context, patientID int64, staffID, content string) (*StaffNote, error) {
	n := StaffNote{PatientID: patientID, StaffID: staffID, Content: content}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO staff_notes (patient_id, staff_id, content) VALUES ($1, $2, $3) RETURNING id, created_at",
		patientID, staffID, content).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert staff note: %w", err)
	}
	return &n, nil
}

func (s *PostgresStore) queryNotes(ctx context.Context, query string, args ...any) ([]StaffNote, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query staff notes: %w", err)
	}
	defer rows.Close()

	var notes []StaffNote
	for rows.Next() {
		var n StaffNote
		if err := rows.Scan(&n.ID, &n.PatientID, &n.StaffID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan staff note row: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *PostgresStore) GetPatientNotes(ctx context.Context, patientID int64) ([]StaffNote, error) {
	return s.queryNotes(ctx, "SELECT id, patient_id, staff_id, content, created_at FROM staff_notes WHERE patient_id = $1 ORDER BY created_at DESC, id DESC", patientID)
}

func (s *PostgresStore) GetRecentNotes(ctx context.Context, patientID int64, limit int) ([]StaffNote, error) {
	return s.queryNotes(ctx, "SELECT id, patient_id, staff_id, content, created_at FROM staff_notes WHERE patient_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2", patientID, limit)
}

// Mood log methods
func (s *PostgresStore) CreateMoodLog(ctx context.Context, patientID int64, status mood.Status, loggedBy string) (*MoodLog, error) {
	l := MoodLog{PatientID: patientID, Status: status, LoggedBy: loggedBy}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO mood_logs (patient_id, status, logged_by) VALUES ($1, $2, $3) RETURNING id, created_at",
		patientID, string(status), loggedBy).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert mood log: %w", err)
	}
	return &l, nil
}

func (s *PostgresStore) GetPatientMoodHistory(ctx context.Context, patientID int64, since time.Time) ([]MoodLog, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, patient_id, status, logged_by, created_at FROM mood_logs WHERE patient_id = $1 AND created_at >= $2 ORDER BY created_at DESC, id DESC",
		patientID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query mood logs: %w", err)
	}
	defer rows.Close()

	var logs []MoodLog
	for rows.Next() {
		var l MoodLog
		var status string
		if err := rows.Scan(&l.ID, &l.PatientID, &status, &l.LoggedBy, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mood log row: %w", err)
		}
		if l.Status, err = parseStoredStatus(status); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Conversation methods
func (s *PostgresStore) CreateConversation(ctx context.Context, patientID int64, staffID *string, transcript string, sentiment mood.Sentiment) (*Conversation, error) {
	c := Conversation{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		StaffID:    staffID,
		Transcript: transcript,
		Sentiment:  sentiment,
	}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO conversations (id, patient_id, staff_id, transcript, sentiment) VALUES ($1, $2, $3, $4, $5) RETURNING created_at",
		c.ID, patientID, staffID, transcript, string(sentiment)).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute conversation insert: %w", err)
	}
	return &c, nil
}

func scanPgConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	var sentiment string
	if err := row.Scan(&c.ID, &c.PatientID, &c.StaffID, &c.Transcript, &sentiment, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Sentiment = mood.Sentiment(sentiment)
	return &c, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil // not a conversation id, so no such row
	}
	c, err := scanPgConversation(s.pool.QueryRow(ctx,
		"SELECT id::text, patient_id, staff_id, transcript, sentiment, created_at FROM conversations WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetPatientConversations(ctx context.Context, patientID int64) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id::text, patient_id, staff_id, transcript, sentiment, created_at FROM conversations WHERE patient_id = $1 ORDER BY created_at DESC",
		patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		c, err := scanPgConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

// Photo methods
func (s *PostgresStore) CreatePhoto(ctx context.Context, photo *Photo) error {
	err := s.pool.QueryRow(ctx,
		"INSERT INTO therapeutic_photos (patient_id, url, description, category, uploaded_by) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at",
		photo.PatientID, photo.URL, photo.Description, photo.Category, photo.UploadedBy).Scan(&photo.ID, &photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute photo insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id int64) (*Photo, error) {
	var p Photo
	err := s.pool.QueryRow(ctx, "SELECT "+photoColumns+" FROM therapeutic_photos WHERE id = $1", id).
		Scan(&p.ID, &p.PatientID, &p.URL, &p.Description, &p.Category, &p.UploadedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetPhotos(ctx context.Context, patientID int64) ([]Photo, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+photoColumns+" FROM therapeutic_photos WHERE patient_id = $1 ORDER BY created_at DESC, id DESC", patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.PatientID, &p.URL, &p.Description, &p.Category, &p.UploadedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo row: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (s *PostgresStore) DeletePhoto(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM therapeutic_photos WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// Alert methods
func (s *PostgresStore) CreateAlert(ctx context.Context, patientID int64, alertType AlertType, message string) (*Alert, error) {
	a := Alert{PatientID: patientID, Type: alertType, Message: message}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO alerts (patient_id, type, message) VALUES ($1, $2, $3) RETURNING id, is_read, created_at",
		patientID, string(alertType), message).Scan(&a.ID, &a.IsRead, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetUnreadAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, patient_id, type, message, is_read, created_at FROM alerts WHERE is_read = FALSE ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var alertType string
		if err := rows.Scan(&a.ID, &a.PatientID, &alertType, &a.Message, &a.IsRead, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		a.Type = AlertType(alertType)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) MarkAlertRead(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "UPDATE alerts SET is_read = TRUE WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	return nil
}
