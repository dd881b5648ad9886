// Package mood holds the closed vocabularies shared by the conversation
// pipeline: the patient's monitored status and the sentiment of an exchange.
package mood

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidStatus = errors.New("invalid status")

// Status is a patient's monitored emotional state.
type Status string

const (
	Good    Status = "good"
	OK      Status = "ok"
	Anxious Status = "anxious"
)

// Statuses lists every status from calmest to most concerning.
var Statuses = []Status{Good, OK, Anxious}

// ParseStatus normalizes user supplied input. Anything outside the three
// known values is rejected, never defaulted.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case Good, OK, Anxious:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

func (s Status) Valid() bool {
	switch s {
	case Good, OK, Anxious:
		return true
	}
	return false
}

// Severity orders statuses: good < ok < anxious. Unknown values sort last.
func (s Status) Severity() int {
	switch s {
	case Good:
		return 0
	case OK:
		return 1
	case Anxious:
		return 2
	default:
		return 3
	}
}

func (s Status) String() string {
	return string(s)
}

// Label is the capitalized form used in alert messages.
func (s Status) Label() string {
	switch s {
	case Good:
		return "Good"
	case OK:
		return "OK"
	case Anxious:
		return "Anxious"
	default:
		return string(s)
	}
}

// Sentiment is the coarse tone of a conversational exchange.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

func (s Sentiment) Valid() bool {
	switch s {
	case Positive, Neutral, Negative:
		return true
	}
	return false
}

func (s Sentiment) String() string {
	return string(s)
}
