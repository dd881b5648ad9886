package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"calmpath.app/memorycare/internal/core"
	"calmpath.app/memorycare/internal/store"
)

type APIHandler struct {
	staff          *core.StaffService
	patients       *core.PatientService
	conversations  *core.ConversationService
	alerts         *core.AlertService
	uploadDir      string
	maxUploadBytes int64
	logger         zerolog.Logger
}

type Options struct {
	UploadDir      string
	MaxUploadBytes int64
}

func NewAPIHandler(staff *core.StaffService, patients *core.PatientService, conversations *core.ConversationService, alerts *core.AlertService, opts Options, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		staff:          staff,
		patients:       patients,
		conversations:  conversations,
		alerts:         alerts,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger.With().Str("component", "api").Logger(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps core errors to status codes. Anything unexpected is
// logged and reported with the generic message.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, generic string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidStatus), errors.Is(err, core.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error().Err(err).Msg(generic)
		http.Error(w, generic, http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	token, err := h.staff.Login(r.Context(), req.UserID, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Login failed")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"user_id": staffIDFrom(r.Context())})
}

// Patients

func (h *APIHandler) ListPatientsHandler(w http.ResponseWriter, r *http.Request) {
	patients, err := h.patients.ListPatients(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch patients")
		return
	}
	if patients == nil {
		patients = []store.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

func (h *APIHandler) GetPatientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	patient, err := h.patients.GetPatient(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch patient")
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (h *APIHandler) CreatePatientHandler(w http.ResponseWriter, r *http.Request) {
	var req core.CreatePatientInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	patient, err := h.patients.CreatePatient(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to create patient")
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (h *APIHandler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	patient, err := h.patients.SetStatus(r.Context(), id, req.Status, staffIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, err, "Failed to update patient status")
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (h *APIHandler) RecordInteractionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	patient, err := h.patients.RecordInteraction(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update interaction")
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

// Notes and mood history

func (h *APIHandler) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	notes, err := h.patients.ListNotes(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch notes")
		return
	}
	if notes == nil {
		notes = []store.StaffNote{}
	}
	writeJSON(w, http.StatusOK, notes)
}

type CreateNoteRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	note, err := h.patients.AddNote(r.Context(), id, staffIDFrom(r.Context()), req.Content)
	if err != nil {
		h.writeServiceError(w, err, "Failed to create note")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *APIHandler) MoodHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	days := core.DefaultMoodHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}
	history, err := h.patients.MoodHistory(r.Context(), id, days)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch mood history")
		return
	}
	if history == nil {
		history = []store.MoodLog{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Conversations

type ConversationRequest struct {
	Message string `json:"message"`
}

func (h *APIHandler) ConversationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	var req ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var staffID *string
	if s := staffIDFrom(r.Context()); s != "" {
		staffID = &s
	}
	result, err := h.conversations.HandleUtterance(r.Context(), id, req.Message, staffID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to process conversation")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	conversations, err := h.conversations.ListConversations(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch conversations")
		return
	}
	if conversations == nil {
		conversations = []store.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *APIHandler) AnalyzeConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	analysis, err := h.conversations.AnalyzeConversation(r.Context(), conversationID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to analyze conversation")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// Photos

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

func (h *APIHandler) ListPhotosHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}
	photos, err := h.patients.ListPhotos(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch photos")
		return
	}
	if photos == nil {
		photos = []store.Photo{}
	}
	writeJSON(w, http.StatusOK, photos)
}

func (h *APIHandler) UploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "patientID")
	if !ok {
		http.Error(w, "Invalid patient id", http.StatusBadRequest)
		return
	}

	// Room for the form fields on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64<<10)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, "No photo uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	wantType, ok := allowedImageTypes[ext]
	if !ok {
		http.Error(w, "Only image files are allowed", http.StatusBadRequest)
		return
	}
	sniff := make([]byte, 512)
	n, _ := io.ReadFull(file, sniff)
	if http.DetectContentType(sniff[:n]) != wantType {
		http.Error(w, "Only image files are allowed", http.StatusBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.writeServiceError(w, err, "Failed to upload photo")
		return
	}

	name := uuid.NewString() + ext
	path := filepath.Join(h.uploadDir, name)
	if err := saveFile(path, file); err != nil {
		h.writeServiceError(w, err, "Failed to upload photo")
		return
	}

	photo := &store.Photo{
		PatientID:   id,
		URL:         "/uploads/" + name,
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		UploadedBy:  staffIDFrom(r.Context()),
	}
	if err := h.patients.AddPhoto(r.Context(), photo); err != nil {
		os.Remove(path)
		h.writeServiceError(w, err, "Failed to upload photo")
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

func saveFile(path string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

func (h *APIHandler) DeletePhotoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "photoID")
	if !ok {
		http.Error(w, "Invalid photo id", http.StatusBadRequest)
		return
	}
	photo, err := h.patients.DeletePhoto(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Failed to delete photo")
		return
	}

	path := filepath.Join(h.uploadDir, filepath.Base(photo.URL))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove photo file")
	}
	w.WriteHeader(http.StatusNoContent)
}

// Alerts and analytics

func (h *APIHandler) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ListUnread(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch alerts")
		return
	}
	if alerts == nil {
		alerts = []store.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *APIHandler) MarkAlertReadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "alertID")
	if !ok {
		http.Error(w, "Invalid alert id", http.StatusBadRequest)
		return
	}
	if err := h.alerts.MarkRead(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "Failed to mark alert as read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) StatusCountsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := h.patients.StatusCounts(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch analytics")
		return
	}
	if counts == nil {
		counts = []store.StatusCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}
