package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(apiHandler.logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(apiHandler.uploadDir))))

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Staff-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/auth/user", apiHandler.CurrentUserHandler)

			r.Get("/patients", apiHandler.ListPatientsHandler)
			r.Post("/patients", apiHandler.CreatePatientHandler)
			r.Route("/patients/{patientID}", func(r chi.Router) {
				r.Get("/", apiHandler.GetPatientHandler)
				r.Patch("/status", apiHandler.UpdateStatusHandler)
				r.Patch("/interaction", apiHandler.RecordInteractionHandler)

				r.Get("/notes", apiHandler.ListNotesHandler)
				r.Post("/notes", apiHandler.CreateNoteHandler)
				r.Get("/mood-history", apiHandler.MoodHistoryHandler)

				r.Post("/conversation", apiHandler.ConversationHandler)
				r.Get("/conversations", apiHandler.ListConversationsHandler)

				r.Get("/photos", apiHandler.ListPhotosHandler)
				r.Post("/photos", apiHandler.UploadPhotoHandler)
			})

			r.Post("/conversations/{conversationID}/analysis", apiHandler.AnalyzeConversationHandler)
			r.Delete("/photos/{photoID}", apiHandler.DeletePhotoHandler)

			r.Get("/alerts", apiHandler.ListAlertsHandler)
			r.Patch("/alerts/{alertID}/read", apiHandler.MarkAlertReadHandler)

			r.Get("/analytics/status-counts", apiHandler.StatusCountsHandler)
		})
	})

	return r
}
