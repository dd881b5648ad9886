package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"calmpath.app/memorycare/internal/mood"
)

// maxRawResponseBytes bounds how much model output is decoded.
const maxRawResponseBytes = 16 << 10

var (
	errResponseTooLarge = errors.New("model response exceeds size limit")
	errNoJSONObject     = errors.New("model response contains no JSON object")
)

// GeneratedResponse is the total, validated result of one generation call.
type GeneratedResponse struct {
	Message             string         `json:"message"`
	Sentiment           mood.Sentiment `json:"sentiment"`
	SuggestedMood       mood.Status    `json:"suggestedMood"`
	NeedsStaffAttention bool           `json:"needsStaffAttention"`
}

func defaultGreeting(patientName string) string {
	return fmt.Sprintf("Hello %s, I'm here to chat with you. How are you feeling today?", patientName)
}

// FallbackResponse is returned whenever the backend cannot produce a usable reply.
func FallbackResponse(patientName string) GeneratedResponse {
	return GeneratedResponse{
		Message:             defaultGreeting(patientName),
		Sentiment:           mood.Neutral,
		SuggestedMood:       mood.OK,
		NeedsStaffAttention: false,
	}
}

// decodePayload extracts the outermost JSON object from raw model output.
// Models sometimes wrap the object in prose or code fences.
func decodePayload(raw string) (map[string]any, error) {
	if len(raw) > maxRawResponseBytes {
		return nil, errResponseTooLarge
	}
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, errNoJSONObject
	}

	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	return payload, nil
}

// ValidateResponse coerces an untrusted payload into a GeneratedResponse.
// Every field is defaulted independently; a nil payload yields the fallback.
func ValidateResponse(payload map[string]any, patientName string) GeneratedResponse {
	out := FallbackResponse(patientName)

	if msg, ok := payload["message"].(string); ok && strings.TrimSpace(msg) != "" {
		out.Message = strings.TrimSpace(msg)
	}
	if raw, ok := payload["sentiment"].(string); ok {
		if s := mood.Sentiment(raw); s.Valid() {
			out.Sentiment = s
		}
	}
	if raw, ok := payload["suggestedMood"].(string); ok {
		if s := mood.Status(raw); s.Valid() {
			out.SuggestedMood = s
		}
	}
	out.NeedsStaffAttention = truthy(payload["needsStaffAttention"])
	return out
}

// ParseResponse decodes and validates raw model output. It never fails; the
// decode error is returned only so callers can log it.
func ParseResponse(raw, patientName string) (GeneratedResponse, error) {
	payload, err := decodePayload(raw)
	return ValidateResponse(payload, patientName), err
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0 && !math.IsNaN(f)
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return t != ""
	default:
		return true
	}
}
