package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"calmpath.app/memorycare/internal/mood"
	"calmpath.app/memorycare/internal/store"
)

const (
	// RecentNotesLimit is how many staff notes are placed in the prompt context.
	RecentNotesLimit = 3

	maxNoteExcerptRunes = 280
	maxUtteranceRunes   = 2000
	maxTranscriptRunes  = 8000

	companionSystemPrompt = `You are CalmPathAI, a compassionate therapeutic companion for people living in memory care. Your role is to:

1. Provide emotional support and companionship
2. Keep conversations gentle and calming
3. Help with memory recall through photos and familiar topics
4. Redirect agitation or anxiety toward peaceful thoughts
5. Encourage positive memories and feelings

Guidelines:
- Speak in a warm, patient and understanding tone
- Keep replies short and simple, one or two sentences at most
- Use the patient's name often to keep the connection
- If the patient seems agitated, gently steer toward calming topics
- Ask simple, open-ended questions about family, hobbies or happy times
- Never argue with confused statements; acknowledge them and redirect gently
- If therapeutic photos come up, speak about them positively

You are talking with someone who has memory care needs. Be extra patient, kind and supportive.`

	responseFormatInstruction = `Please respond in JSON format with: { "message": "your therapeutic response", "sentiment": "positive/neutral/negative", "suggestedMood": "good/ok/anxious", "needsStaffAttention": false }`

	analysisSystemPrompt = "Analyze this therapeutic conversation transcript. Provide overall sentiment, mood assessment, and key topics discussed. " +
		"Respond in JSON format with fields: overallSentiment, moodAssessment, keyTopics."
)

var errBackendUnavailable = errors.New("generative backend not configured")

// Backend is the generative capability behind the Generator. Implementations
// must ask the model for a JSON-shaped reply.
type Backend interface {
	Complete(ctx context.Context, systemPrompt, contextPrompt, userMessage string) (string, error)
}

// ConversationContext is the per-request bundle of patient facts given to the model.
type ConversationContext struct {
	PatientName string
	PatientAge  int
	CurrentMood mood.Status
	RecentNotes []string
	PhotoThemes []string
}

// SentimentAnalysis is the retrospective read of a stored transcript.
type SentimentAnalysis struct {
	OverallSentiment string   `json:"overallSentiment"`
	MoodAssessment   string   `json:"moodAssessment"`
	KeyTopics        []string `json:"keyTopics"`
}

func defaultAnalysis() SentimentAnalysis {
	return SentimentAnalysis{
		OverallSentiment: string(mood.Neutral),
		MoodAssessment:   "stable",
		KeyTopics:        []string{},
	}
}

type Generator struct {
	backend Backend
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGenerator wraps backend with a per-call timeout. A nil backend is
// allowed; every call then returns the fallback.
func NewGenerator(backend Backend, timeout time.Duration, logger zerolog.Logger) *Generator {
	return &Generator{
		backend: backend,
		timeout: timeout,
		logger:  logger.With().Str("component", "generator").Logger(),
	}
}

// BuildContext assembles the prompt context. notes must be newest first.
// A photo contributes its description, or its category when the description is empty.
func BuildContext(patient *store.Patient, notes []store.StaffNote, photos []store.Photo) ConversationContext {
	cc := ConversationContext{
		PatientName: patient.Name,
		PatientAge:  patient.Age,
		CurrentMood: patient.Status,
	}
	for i, n := range notes {
		if i == RecentNotesLimit {
			break
		}
		cc.RecentNotes = append(cc.RecentNotes, truncateRunes(strings.TrimSpace(n.Content), maxNoteExcerptRunes))
	}
	for _, p := range photos {
		theme := strings.TrimSpace(p.Description)
		if theme == "" {
			theme = strings.TrimSpace(p.Category)
		}
		if theme != "" {
			cc.PhotoThemes = append(cc.PhotoThemes, theme)
		}
	}
	return cc
}

func buildContextPrompt(cc ConversationContext) string {
	var b strings.Builder
	b.WriteString("Patient Context:\n")
	b.WriteString("- Name: " + cc.PatientName + "\n")
	b.WriteString("- Age: " + strconv.Itoa(cc.PatientAge) + "\n")
	b.WriteString("- Current mood: " + cc.CurrentMood.String())
	if len(cc.RecentNotes) > 0 {
		b.WriteString("\n- Recent staff notes: " + strings.Join(cc.RecentNotes, "; "))
	}
	if len(cc.PhotoThemes) > 0 {
		b.WriteString("\n- Available therapeutic photos: " + strings.Join(cc.PhotoThemes, ", "))
	}
	b.WriteString("\n\n" + responseFormatInstruction)
	return b.String()
}

func (g *Generator) complete(ctx context.Context, systemPrompt, contextPrompt, userMessage string) (string, error) {
	if g.backend == nil {
		return "", errBackendUnavailable
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.backend.Complete(ctx, systemPrompt, contextPrompt, userMessage)
}

// GenerateResponse never fails. Backend errors and unusable output yield
// FallbackResponse for the patient.
func (g *Generator) GenerateResponse(ctx context.Context, utterance string, cc ConversationContext) GeneratedResponse {
	raw, err := g.complete(ctx, companionSystemPrompt, buildContextPrompt(cc), truncateRunes(utterance, maxUtteranceRunes))
	if err != nil {
		g.logger.Warn().Err(err).Str("patient", cc.PatientName).Msg("Generative backend failed, using fallback reply")
		return FallbackResponse(cc.PatientName)
	}

	resp, err := ParseResponse(raw, cc.PatientName)
	if err != nil {
		g.logger.Warn().Err(err).Str("patient", cc.PatientName).Msg("Unusable model response, using fallback reply")
		return FallbackResponse(cc.PatientName)
	}
	return resp
}

// AnalyzeSentiment never fails; any backend problem yields neutral/stable with no topics.
func (g *Generator) AnalyzeSentiment(ctx context.Context, transcript string) SentimentAnalysis {
	raw, err := g.complete(ctx, analysisSystemPrompt, "", truncateRunes(transcript, maxTranscriptRunes))
	if err != nil {
		g.logger.Warn().Err(err).Msg("Sentiment analysis failed, using default")
		return defaultAnalysis()
	}

	payload, err := decodePayload(raw)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Unusable analysis response, using default")
		return defaultAnalysis()
	}

	out := defaultAnalysis()
	if s, ok := payload["overallSentiment"].(string); ok && strings.TrimSpace(s) != "" {
		out.OverallSentiment = strings.TrimSpace(s)
	}
	if s, ok := payload["moodAssessment"].(string); ok && strings.TrimSpace(s) != "" {
		out.MoodAssessment = strings.TrimSpace(s)
	}
	if topics, ok := payload["keyTopics"].([]any); ok {
		for _, t := range topics {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				out.KeyTopics = append(out.KeyTopics, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return fmt.Sprintf("%s...", string(runes[:limit]))
}
