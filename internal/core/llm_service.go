package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	DefaultModelName = "gemini-1.5-flash-latest"

	completionMaxTokens   = int32(300)
	completionTemperature = float32(0.7)
	jsonMIMEType          = "application/json"
)

var errEmptyCompletion = errors.New("gemini returned no text")

// LLMService is the Gemini-backed Backend.
type LLMService struct {
	client    *genai.Client
	modelName string
	logger    zerolog.Logger
}

var _ Backend = (*LLMService)(nil)

func NewLLMService(ctx context.Context, apiKey, modelName string, logger zerolog.Logger) (*LLMService, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if modelName == "" {
		modelName = DefaultModelName
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{
		client:    client,
		modelName: modelName,
		logger:    logger.With().Str("component", "llm").Str("model", modelName).Logger(),
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing GenAI client")
		} else {
			s.logger.Info().Msg("GenAI client closed")
		}
	}
}

// Complete sends one structured request. The system prompt and the optional
// context prompt both go into the system instruction.
func (s *LLMService) Complete(ctx context.Context, systemPrompt, contextPrompt, userMessage string) (string, error) {
	model := s.client.GenerativeModel(s.modelName)

	instruction := &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	if contextPrompt != "" {
		instruction.Parts = append(instruction.Parts, genai.Text(contextPrompt))
	}
	model.SystemInstruction = instruction

	maxTokens := completionMaxTokens
	temp := completionTemperature
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens:  &maxTokens,
		Temperature:      &temp,
		ResponseMIMEType: jsonMIMEType,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userMessage))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errEmptyCompletion
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			s.logger.Debug().Msgf("Gemini response part was not text: %T", part)
		}
	}
	if text.Len() == 0 {
		return "", errEmptyCompletion
	}
	return text.String(), nil
}
