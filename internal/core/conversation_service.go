package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"calmpath.app/memorycare/internal/mood"
	"calmpath.app/memorycare/internal/store"
)

// ConversationResult is what a caller of HandleUtterance gets back.
type ConversationResult struct {
	Response            string         `json:"response"`
	Sentiment           mood.Sentiment `json:"sentiment"`
	NeedsStaffAttention bool           `json:"needsStaffAttention"`
	ConversationID      string         `json:"conversationId"`
}

type ConversationService struct {
	repo      store.Repository
	generator *Generator
	alerts    *AlertService
	logger    zerolog.Logger
}

func NewConversationService(repo store.Repository, generator *Generator, alerts *AlertService, logger zerolog.Logger) *ConversationService {
	return &ConversationService{
		repo:      repo,
		generator: generator,
		alerts:    alerts,
		logger:    logger.With().Str("component", "conversation").Logger(),
	}
}

func formatTranscript(utterance, reply string) string {
	return fmt.Sprintf("Patient: %s\nAI: %s", utterance, reply)
}

// HandleUtterance runs one exchange with the companion for a patient. It is
// not idempotent: every call records a new conversation. The first
// repository failure stops the call and is returned as ErrPersistenceFailure;
// writes made before it stay in place.
func (s *ConversationService) HandleUtterance(ctx context.Context, patientID int64, utterance string, staffID *string) (*ConversationResult, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	patient, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		return nil, persistenceErr("get patient", err)
	}
	if patient == nil {
		return nil, fmt.Errorf("patient %d: %w", patientID, ErrNotFound)
	}

	notes, err := s.repo.GetRecentNotes(ctx, patientID, RecentNotesLimit)
	if err != nil {
		return nil, persistenceErr("get recent notes", err)
	}
	photos, err := s.repo.GetPhotos(ctx, patientID)
	if err != nil {
		return nil, persistenceErr("get photos", err)
	}

	reply := s.generator.GenerateResponse(ctx, utterance, BuildContext(patient, notes, photos))

	if _, err := s.repo.UpdatePatientInteraction(ctx, patientID); err != nil {
		return nil, persistenceErr("update patient interaction", err)
	}

	conversation, err := s.repo.CreateConversation(ctx, patientID, staffID, formatTranscript(utterance, reply.Message), reply.Sentiment)
	if err != nil {
		return nil, persistenceErr("create conversation", err)
	}

	_, changed, err := transitionStatus(ctx, s.repo, s.alerts, patient, reply.SuggestedMood, store.SystemActor,
		conversationStatusAlertMessage(patient.Name, reply.SuggestedMood))
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info().
			Int64("patient_id", patientID).
			Str("from", patient.Status.String()).
			Str("to", reply.SuggestedMood.String()).
			Msg("Patient status updated from conversation")
	}

	return &ConversationResult{
		Response:            reply.Message,
		Sentiment:           reply.Sentiment,
		NeedsStaffAttention: reply.NeedsStaffAttention,
		ConversationID:      conversation.ID,
	}, nil
}

func (s *ConversationService) ListConversations(ctx context.Context, patientID int64) ([]store.Conversation, error) {
	if err := requirePatient(ctx, s.repo, patientID); err != nil {
		return nil, err
	}
	conversations, err := s.repo.GetPatientConversations(ctx, patientID)
	if err != nil {
		return nil, persistenceErr("list conversations", err)
	}
	return conversations, nil
}

// AnalyzeConversation runs a retrospective sentiment read over a stored transcript.
func (s *ConversationService) AnalyzeConversation(ctx context.Context, conversationID string) (*SentimentAnalysis, error) {
	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, persistenceErr("get conversation", err)
	}
	if conversation == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	analysis := s.generator.AnalyzeSentiment(ctx, conversation.Transcript)
	return &analysis, nil
}

func requirePatient(ctx context.Context, repo store.Repository, patientID int64) error {
	patient, err := repo.GetPatient(ctx, patientID)
	if err != nil {
		return persistenceErr("get patient", err)
	}
	if patient == nil {
		return fmt.Errorf("patient %d: %w", patientID, ErrNotFound)
	}
	return nil
}
