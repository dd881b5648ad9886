package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"calmpath.app/memorycare/internal/mood"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	if !strings.Contains(dataSourceName, "?") {
		dataSourceName += "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS patients (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        age INTEGER NOT NULL,
        room TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'ok' CHECK (status IN ('good', 'ok', 'anxious')),
        last_interaction DATETIME,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS staff_notes (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        patient_id INTEGER NOT NULL,
        staff_id TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (patient_id) REFERENCES patients (id)
    );

    CREATE TABLE IF NOT EXISTS mood_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        patient_id INTEGER NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('good', 'ok', 'anxious')),
        logged_by TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (patient_id) REFERENCES patients (id)
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        patient_id INTEGER NOT NULL,
        staff_id TEXT,
        transcript TEXT NOT NULL,
        sentiment TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (patient_id) REFERENCES patients (id)
    );

    CREATE TABLE IF NOT EXISTS therapeutic_photos (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        patient_id INTEGER NOT NULL,
        url TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        category TEXT NOT NULL DEFAULT '',
        uploaded_by TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL,
        FOREIGN KEY (patient_id) REFERENCES patients (id)
    );

    CREATE TABLE IF NOT EXISTS alerts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        patient_id INTEGER NOT NULL,
        type TEXT NOT NULL CHECK (type IN ('status_change', 'no_activity')),
        message TEXT NOT NULL,
        is_read BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (patient_id) REFERENCES patients (id)
    );

    CREATE INDEX IF NOT EXISTS idx_staff_notes_patient ON staff_notes (patient_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_mood_logs_patient ON mood_logs (patient_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_alerts_unread ON alerts (is_read, patient_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

func now() time.Time {
	return time.Now().UTC()
}

// User methods
func (s *SQLiteStore) GetUserByExternalID(ctx context.Context, externalUserID string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, "SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID).Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, externalUserID, passwordHash string) (*User, error) {
	createdAt := now()
	res, err := s.db.ExecContext(ctx, "INSERT INTO users (external_user_id, password_hash, created_at) VALUES (?, ?, ?)", externalUserID, passwordHash, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &User{ID: id, ExternalUserID: externalUserID, PasswordHash: passwordHash, CreatedAt: createdAt}, nil
}

// Patient methods
const patientColumns = "id, name, age, room, status, last_interaction, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var status string
	var last sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Room, &status, &last, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := parseStoredStatus(status)
	if err != nil {
		return nil, err
	}
	p.Status = parsed
	if last.Valid {
		t := last.Time
		p.LastInteraction = &t
	}
	return &p, nil
}

func (s *SQLiteStore) queryPatients(ctx context.Context, query string, args ...any) ([]Patient, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient row: %w", err)
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

func (s *SQLiteStore) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.queryPatients(ctx, "SELECT "+patientColumns+" FROM patients ORDER BY name ASC, id ASC")
}

func (s *SQLiteStore) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(s.db.QueryRowContext(ctx, "SELECT "+patientColumns+" FROM patients WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) CreatePatient(ctx context.Context, name string, age int, room string, status mood.Status) (*Patient, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO patients (name, age, room, status, last_interaction, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		name, age, room, string(status), ts, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to insert patient: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Patient{ID: id, Name: name, Age: age, Room: room, Status: status, LastInteraction: &ts, CreatedAt: ts, UpdatedAt: ts}, nil
}

func (s *SQLiteStore) updatePatient(ctx context.Context, id int64, query string, args ...any) (*Patient, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute patient update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, nil
	}
	return s.GetPatient(ctx, id)
}

func (s *SQLiteStore) UpdatePatientStatus(ctx context.Context, id int64, status mood.Status) (*Patient, error) {
	return s.updatePatient(ctx, id, "UPDATE patients SET status = ?, updated_at = ? WHERE id = ?", string(status), now(), id)
}

func (s *SQLiteStore) UpdatePatientInteraction(ctx context.Context, id int64) (*Patient, error) {
	ts := now()
	return s.updatePatient(ctx, id, "UPDATE patients SET last_interaction = ?, updated_at = ? WHERE id = ?", ts, ts, id)
}

func (s *SQLiteStore) GetPatientsInactiveSince(ctx context.Context, threshold time.Time) ([]Patient, error) {
	return s.queryPatients(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE last_interaction IS NULL OR last_interaction < ? ORDER BY id ASC",
		threshold.UTC())
}

func (s *SQLiteStore) GetPatientStatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM patients GROUP BY status ORDER BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var raw string
		var c StatusCount
		if err := rows.Scan(&raw, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		if c.Status, err = parseStoredStatus(raw); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Staff note methods
func (s *SQLiteStore) CreateStaffNote(ctx context.Context, patientID int64, staffID, content string) (*StaffNote, error) {
	createdAt := now()
	res, err := s.db.ExecContext(ctx, "INSERT INTO staff_notes (patient_id, staff_id, content, created_at) VALUES (?, ?, ?, ?)", patientID, staffID, content, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert staff note: %w", err)
	}
	id, _ := res.LastInsertId()
	return &StaffNote{ID: id, PatientID: patientID, StaffID: staffID, Content: content, CreatedAt: createdAt}, nil
}

func (s *SQLiteStore) queryNotes(ctx context.Context, query string, args ...any) ([]StaffNote, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) GetPatientNotes(ctx context.Context, patientID int64) ([]StaffNote, error) {
	return s.queryNotes(ctx, "SELECT id, patient_id, staff_id, content, created_at FROM staff_notes WHERE patient_id = ? ORDER BY created_at DESC, id DESC", patientID)
}

func (s *SQLiteStore) GetRecentNotes(ctx context.Context, patientID int64, limit int) ([]StaffNote, error) {
	return s.queryNotes(ctx, "SELECT id, patient_id, staff_id, content, created_at FROM staff_notes WHERE patient_id = ? ORDER BY created_at DESC, id DESC LIMIT ?", patientID, limit)
}

// Mood log methods
func (s *SQLiteStore) CreateMoodLog(ctx context.Context, patientID int64, status mood.Status, loggedBy string) (*MoodLog, error) {
	createdAt := now()
	res, err := s.db.ExecContext(ctx, "INSERT INTO mood_logs (patient_id, status, logged_by, created_at) VALUES (?, ?, ?, ?)", patientID, string(status), loggedBy, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert mood log: %w", err)
	}
	id, _ := res.LastInsertId()
	return &MoodLog{ID: id, PatientID: patientID, Status: status, LoggedBy: loggedBy, CreatedAt: createdAt}, nil
}

func (s *SQLiteStore) GetPatientMoodHistory(ctx context.Context, patientID int64, since time.Time) ([]MoodLog, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, patient_id, status, logged_by, created_at FROM mood_logs WHERE patient_id = ? AND created_at >= ? ORDER BY created_at DESC, id DESC", patientID, since.UTC())
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
func (s *SQLiteStore) CreateConversation(ctx context.Context, patientID int64, staffID *string, transcript string, sentiment mood.Sentiment) (*Conversation, error) {
	c := &Conversation{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		StaffID:    staffID,
		Transcript: transcript,
		Sentiment:  sentiment,
		CreatedAt:  now(),
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO conversations (id, patient_id, staff_id, transcript, sentiment, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.PatientID, c.StaffID, c.Transcript, string(c.Sentiment), c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute conversation insert: %w", err)
	}
	return c, nil
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var staffID sql.NullString
	var sentiment string
	if err := row.Scan(&c.ID, &c.PatientID, &staffID, &c.Transcript, &sentiment, &c.CreatedAt); err != nil {
		return nil, err
	}
	if staffID.Valid {
		c.StaffID = &staffID.String
	}
	c.Sentiment = mood.Sentiment(sentiment)
	return &c, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx, "SELECT id, patient_id, staff_id, transcript, sentiment, created_at FROM conversations WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetPatientConversations(ctx context.Context, patientID int64) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, patient_id, staff_id, transcript, sentiment, created_at FROM conversations WHERE patient_id = ? ORDER BY created_at DESC", patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

// Photo methods
func (s *SQLiteStore) CreatePhoto(ctx context.Context, photo *Photo) error {
	photo.CreatedAt = now()
	res, err := s.db.ExecContext(ctx, "INSERT INTO therapeutic_photos (patient_id, url, description, category, uploaded_by, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		photo.PatientID, photo.URL, photo.Description, photo.Category, photo.UploadedBy, photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute photo insert: %w", err)
	}
	photo.ID, _ = res.LastInsertId()
	return nil
}

const photoColumns = "id, patient_id, url, description, category, uploaded_by, created_at"

func (s *SQLiteStore) GetPhoto(ctx context.Context, id int64) (*Photo, error) {
	var p Photo
	err := s.db.QueryRowContext(ctx, "SELECT "+photoColumns+" FROM therapeutic_photos WHERE id = ?", id).
		Scan(&p.ID, &p.PatientID, &p.URL, &p.Description, &p.Category, &p.UploadedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetPhotos(ctx context.Context, patientID int64) ([]Photo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+photoColumns+" FROM therapeutic_photos WHERE patient_id = ? ORDER BY created_at DESC, id DESC", patientID)
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

func (s *SQLiteStore) DeletePhoto(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM therapeutic_photos WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// Alert methods
func (s *SQLiteStore) CreateAlert(ctx context.Context, patientID int64, alertType AlertType, message string) (*Alert, error) {
	createdAt := now()
	res, err := s.db.ExecContext(ctx, "INSERT INTO alerts (patient_id, type, message, is_read, created_at) VALUES (?, ?, ?, FALSE, ?)", patientID, string(alertType), message, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Alert{ID: id, PatientID: patientID, Type: alertType, Message: message, CreatedAt: createdAt}, nil
}

func (s *SQLiteStore) GetUnreadAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, patient_id, type, message, is_read, created_at FROM alerts WHERE is_read = FALSE ORDER BY created_at DESC, id DESC")
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

func (s *SQLiteStore) MarkAlertRead(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE alerts SET is_read = TRUE WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	return nil
}
