package core

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmpath.app/memorycare/internal/mood"
	"calmpath.app/memorycare/internal/store"
)

func newPatientService() (*PatientService, *memoryRepo, *recordingNotifier) {
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	return NewPatientService(repo, NewAlertService(repo, notifier, zerolog.Nop()), zerolog.Nop()), repo, notifier
}

func TestSetStatus_StaffTransitionToAnxious(t *testing.T) {
	svc, repo, notifier := newPatientService()
	p := repo.addPatient("Arthur", mood.Good, nil)

	updated, err := svc.SetStatus(context.Background(), p.ID, "ANXIOUS", "nurse-7")
	require.NoError(t, err)
	assert.Equal(t, mood.Anxious, updated.Status)

	logs := repo.moodLogsFor(p.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "nurse-7", logs[0].LoggedBy)

	alerts := repo.alertsFor(p.ID, store.AlertStatusChange)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Arthur's status changed to Anxious", alerts[0].Message)
	assert.Len(t, notifier.alerts, 1)
}

func TestSetStatus_UnchangedIsNoop(t *testing.T) {
	svc, repo, _ := newPatientService()
	p := repo.addPatient("Arthur", mood.OK, nil)

	updated, err := svc.SetStatus(context.Background(), p.ID, "ok", "nurse-7")
	require.NoError(t, err)
	assert.Equal(t, mood.OK, updated.Status)
	assert.Empty(t, repo.moodLogsFor(p.ID))
	assert.Equal(t, 0, repo.called("UpdatePatientStatus"))
}

func TestSetStatus_NoStaffLogsSystem(t *testing.T) {
	svc, repo, _ := newPatientService()
	p := repo.addPatient("Arthur", mood.OK, nil)

	_, err := svc.SetStatus(context.Background(), p.ID, "good", "")
	require.NoError(t, err)
	logs := repo.moodLogsFor(p.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, store.SystemActor, logs[0].LoggedBy)
	assert.Empty(t, repo.alertsFor(p.ID, store.AlertStatusChange))
}

func TestSetStatus_InvalidStatusRejectedBeforeWrites(t *testing.T) {
	svc, repo, _ := newPatientService()
	p := repo.addPatient("Arthur", mood.OK, nil)

	_, err := svc.SetStatus(context.Background(), p.ID, "furious", "nurse-7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStatus))
	assert.Equal(t, 0, repo.called("GetPatient"))
	assert.Equal(t, 0, repo.called("UpdatePatientStatus"))
}

func TestSetStatus_UnknownPatient(t *testing.T) {
	svc, _, _ := newPatientService()
	_, err := svc.SetStatus(context.Background(), 42, "good", "nurse-7")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCreatePatient(t *testing.T) {
	svc, _, _ := newPatientService()
	ctx := context.Background()

	p, err := svc.CreatePatient(ctx, CreatePatientInput{Name: " Edith ", Age: 88, Room: "7"})
	require.NoError(t, err)
	assert.Equal(t, "Edith", p.Name)
	assert.Equal(t, mood.OK, p.Status)
	assert.NotNil(t, p.LastInteraction)

	p, err = svc.CreatePatient(ctx, CreatePatientInput{Name: "Walter", Age: 77, Room: "5", Status: "Good"})
	require.NoError(t, err)
	assert.Equal(t, mood.Good, p.Status)

	_, err = svc.CreatePatient(ctx, CreatePatientInput{Name: "Walter", Age: 77, Room: "5", Status: "sleepy"})
	assert.True(t, errors.Is(err, ErrInvalidStatus))

	_, err = svc.CreatePatient(ctx, CreatePatientInput{Name: "", Age: 77, Room: "5"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = svc.CreatePatient(ctx, CreatePatientInput{Name: "Walter", Age: 0, Room: "5"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestNotesAndHistory(t *testing.T) {
	svc, repo, _ := newPatientService()
	ctx := context.Background()
	p := repo.addPatient("Harold", mood.OK, nil)

	_, err := svc.AddNote(ctx, p.ID, "nurse-1", "Enjoyed the music session")
	require.NoError(t, err)
	_, err = svc.AddNote(ctx, p.ID, "nurse-1", "  ")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	_, err = svc.AddNote(ctx, 999, "nurse-1", "hello")
	assert.True(t, errors.Is(err, ErrNotFound))

	notes, err := svc.ListNotes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	_, err = svc.SetStatus(ctx, p.ID, "anxious", "nurse-1")
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, p.ID, "good", "nurse-1")
	require.NoError(t, err)

	history, err := svc.MoodHistory(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, mood.Good, history[0].Status)
}

func TestRecordInteraction(t *testing.T) {
	svc, repo, _ := newPatientService()
	p := repo.addPatient("Harold", mood.OK, nil)

	updated, err := svc.RecordInteraction(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastInteraction)

	_, err = svc.RecordInteraction(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPhotos(t *testing.T) {
	svc, repo, _ := newPatientService()
	ctx := context.Background()
	p := repo.addPatient("Dorothy", mood.OK, nil)

	photo := &store.Photo{PatientID: p.ID, URL: "/uploads/x.png", Description: " Beach ", Category: "travel"}
	require.NoError(t, svc.AddPhoto(ctx, photo))
	assert.Equal(t, "Beach", photo.Description)

	photos, err := svc.ListPhotos(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, photos, 1)

	deleted, err := svc.DeletePhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/x.png", deleted.URL)

	_, err = svc.DeletePhoto(ctx, photo.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = svc.AddPhoto(ctx, &store.Photo{PatientID: 999})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStatusCounts(t *testing.T) {
	svc, repo, _ := newPatientService()
	repo.addPatient("A", mood.OK, nil)
	repo.addPatient("B", mood.Anxious, nil)
	repo.addPatient("C", mood.Anxious, nil)

	counts, err := svc.StatusCounts(context.Background())
	require.NoError(t, err)
	assert.Contains(t, counts, store.StatusCount{Status: mood.Anxious, Count: 2})
	assert.Contains(t, counts, store.StatusCount{Status: mood.OK, Count: 1})

	repo.failOn["GetPatientStatusCounts"] = errRepoDown
	_, err = svc.StatusCounts(context.Background())
	assert.True(t, errors.Is(err, ErrPersistenceFailure))
}
