package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"calmpath.app/memorycare/internal/mood"
	"calmpath.app/memorycare/internal/store"
)

var errRepoDown = errors.New("repository unavailable")

// memoryRepo is an in-memory store.Repository. failOn makes the named method
// return errRepoDown.
type memoryRepo struct {
	mu sync.Mutex

	failOn map[string]error
	calls  []string
	nextID int64
	clock  time.Time

	users         map[string]store.User
	patients      map[int64]store.Patient
	notes         []store.StaffNote
	moodLogs      []store.MoodLog
	conversations []store.Conversation
	photos        []store.Photo
	alerts        []store.Alert
}

var _ store.Repository = (*memoryRepo)(nil)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		failOn:   map[string]error{},
		users:    map[string]store.User{},
		patients: map[int64]store.Patient{},
		clock:    time.Now().UTC(),
	}
}

// tick advances the fake clock so records get distinct, ordered timestamps.
func (r *memoryRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

// fail records the call; r.mu must be held.
func (r *memoryRepo) fail(method string) error {
	r.calls = append(r.calls, method)
	return r.failOn[method]
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) called(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (r *memoryRepo) addPatient(name string, status mood.Status, lastInteraction *time.Time) store.Patient {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := store.Patient{ID: r.id(), Name: name, Age: 80, Room: "1A", Status: status, LastInteraction: lastInteraction, CreatedAt: r.clock, UpdatedAt: r.clock}
	r.patients[p.ID] = p
	return p
}

func (r *memoryRepo) CreateUser(_ context.Context, externalUserID, passwordHash string) (*store.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateUser"); err != nil {
		return nil, err
	}
	u := store.User{ID: r.id(), ExternalUserID: externalUserID, PasswordHash: passwordHash, CreatedAt: r.tick()}
	r.users[externalUserID] = u
	return &u, nil
}

func (r *memoryRepo) GetUserByExternalID(_ context.Context, externalUserID string) (*store.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetUserByExternalID"); err != nil {
		return nil, err
	}
	u, ok := r.users[externalUserID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memoryRepo) ListPatients(_ context.Context) ([]store.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListPatients"); err != nil {
		return nil, err
	}
	var out []store.Patient
	for _, p := range r.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) GetPatient(_ context.Context, id int64) (*store.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetPatient"); err != nil {
		return nil, err
	}
	p, ok := r.patients[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memoryRepo) CreatePatient(_ context.Context, name string, age int, room string, status mood.Status) (*store.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreatePatient"); err != nil {
		return nil, err
	}
	ts := r.tick()
	p := store.Patient{ID: r.id(), Name: name, Age: age, Room: room, Status: status, LastInteraction: &ts, CreatedAt: ts, UpdatedAt: ts}
	r.patients[p.ID] = p
	return &p, nil
}

func (r *memoryRepo) UpdatePatientStatus(_ context.Context, id int64, status mood.Status) (*store.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("UpdatePatientStatus"); err != nil {
		return nil, err
	}
	p, ok := r.patients[id]
	if !ok {
		return nil, nil
	}
	p.Status = status
	p.UpdatedAt = r.tick()
	r.patients[id] = p
	return &p, nil
}

func (r *memoryRepo) UpdatePatientInteraction(_ context.Context, id int64) (*store.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("UpdatePatientInteraction"); err != nil {
		return nil, err
	}
	p, ok := r.patients[id]
	if !ok {
		return nil, nil
	}
	ts := r.tick()
	p.LastInteraction = &ts
	p.UpdatedAt = ts
	r.patients[id] = p
	return &p, nil
}

func (r *memoryRepo) GetPatientsInactiveSince(_ context.Context, threshold time.Time) ([]store.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetPatientsInactiveSince"); err != nil {
		return nil, err
	}
	var out []store.Patient
	for _, p := range r.patients {
		if p.LastInteraction == nil || p.LastInteraction.Before(threshold) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetPatientStatusCounts(_ context.Context) ([]store.StatusCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetPatientStatusCounts"); err != nil {
		return nil, err
	}
	counts := map[mood.Status]int{}
	for _, p := range r.patients {
		counts[p.Status]++
	}
	var out []store.StatusCount
	for _, s := range mood.Statuses {
		if counts[s] > 0 {
			out = append(out, store.StatusCount{Status: s, Count: counts[s]})
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateStaffNote(_ context.Context, patientID int64, staffID, content string) (*store.StaffNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateStaffNote"); err != nil {
		return nil, err
	}
	n := store.StaffNote{ID: r.id(), PatientID: patientID, StaffID: staffID, Content: content, CreatedAt: r.tick()}
	r.notes = append(r.notes, n)
	return &n, nil
}

func (r *memoryRepo) notesFor(patientID int64) []store.StaffNote {
	var out []store.StaffNote
	for i := len(r.notes) - 1; i >= 0; i-- {
		if r.notes[i].PatientID == patientID {
			out = append(out, r.notes[i])
		}
	}
	return out
}

func (r *memoryRepo) GetPatientNotes(_ context.Context, patientID int64) ([]store.StaffNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetPatientNotes"); err != nil {
		return nil, err
	}
	return r.notesFor(patientID), nil
}

func (r *memoryRepo) GetRecentNotes(_ context.Context, patientID int64, limit int) ([]store.StaffNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetRecentNotes"); err != nil {
		return nil, err
	}
	notes := r.notesFor(patientID)
	if len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

func (r *memoryRepo) CreateMoodLog(_ context.Context, patientID int64, status mood.Status, loggedBy string) (*store.MoodLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateMoodLog"); err != nil {
		return nil, err
	}
	l := store.MoodLog{ID: r.id(), PatientID: patientID, Status: status, LoggedBy: loggedBy, CreatedAt: r.tick()}
	r.moodLogs = append(r.moodLogs, l)
	return &l, nil
}

func (r *memoryRepo) GetPatientMoodHistory(_ context.Context, patientID int64, since time.Time) ([]store.MoodLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetPatientMoodHistory"); err != nil {
		return nil, err
	}
	var out []store.MoodLog
	for i := len(r.moodLogs) - 1; i >= 0; i-- {
		l := r.moodLogs[i]
		if l.PatientID == patientID && !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateConversation(_ context.Context, patientID int64, staffID *string, transcript string, sentiment mood.Sentiment) (*store.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateConversation"); err != nil {
		return nil, err
	}
	c := store.Conversation{ID: uuid.NewString(), PatientID: patientID, StaffID: staffID, Transcript: transcript, Sentiment: sentiment, CreatedAt: r.tick()}
	r.conversations = append(r.conversations, c)
	return &c, nil
}

func (r *memoryRepo) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetConversation"); err != nil {
		return nil, err
	}
	for _, c := range r.conversations {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) GetPatientConversations(_ context.Context, patientID int64) ([]store.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetPatientConversations"); err != nil {
		return nil, err
	}
	var out []store.Conversation
	for i := len(r.conversations) - 1; i >= 0; i-- {
		if r.conversations[i].PatientID == patientID {
			out = append(out, r.conversations[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) CreatePhoto(_ context.Context, photo *store.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreatePhoto"); err != nil {
		return err
	}
	photo.ID = r.id()
	photo.CreatedAt = r.tick()
	r.photos = append(r.photos, *photo)
	return nil
}

func (r *memoryRepo) GetPhoto(_ context.Context, id int64) (*store.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetPhoto"); err != nil {
		return nil, err
	}
	for _, p := range r.photos {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) GetPhotos(_ context.Context, patientID int64) ([]store.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetPhotos"); err != nil {
		return nil, err
	}
	var out []store.Photo
	for i := len(r.photos) - 1; i >= 0; i-- {
		if r.photos[i].PatientID == patientID {
			out = append(out, r.photos[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) DeletePhoto(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("DeletePhoto"); err != nil {
		return err
	}
	kept := r.photos[:0]
	for _, p := range r.photos {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	r.photos = kept
	return nil
}

func (r *memoryRepo) CreateAlert(_ context.Context, patientID int64, alertType store.AlertType, message string) (*store.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateAlert"); err != nil {
		return nil, err
	}
	a := store.Alert{ID: r.id(), PatientID: patientID, Type: alertType, Message: message, CreatedAt: r.tick()}
	r.alerts = append(r.alerts, a)
	return &a, nil
}

func (r *memoryRepo) GetUnreadAlerts(_ context.Context) ([]store.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetUnreadAlerts"); err != nil {
		return nil, err
	}
	var out []store.Alert
	for i := len(r.alerts) - 1; i >= 0; i-- {
		if !r.alerts[i].IsRead {
			out = append(out, r.alerts[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) MarkAlertRead(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("MarkAlertRead"); err != nil {
		return err
	}
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			r.alerts[i].IsRead = true
		}
	}
	return nil
}

func (r *memoryRepo) Close() error { return nil }

// snapshot helpers for assertions

func (r *memoryRepo) patient(id int64) store.Patient {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patients[id]
}

func (r *memoryRepo) moodLogsFor(patientID int64) []store.MoodLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.MoodLog
	for _, l := range r.moodLogs {
		if l.PatientID == patientID {
			out = append(out, l)
		}
	}
	return out
}

func (r *memoryRepo) alertsFor(patientID int64, alertType store.AlertType) []store.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Alert
	for _, a := range r.alerts {
		if a.PatientID == patientID && a.Type == alertType {
			out = append(out, a)
		}
	}
	return out
}

func (r *memoryRepo) conversationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conversations)
}
