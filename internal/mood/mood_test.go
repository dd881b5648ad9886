package mood

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus_NormalizesCase(t *testing.T) {
	cases := map[string]Status{
		"good":        Good,
		"GOOD":        Good,
		" Ok ":        OK,
		"ok":          OK,
		"Anxious":     Anxious,
		"\tanxious\n": Anxious,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestParseStatus_RejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "calm", "okay", "sad", "anxious!"} {
		_, err := ParseStatus(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrInvalidStatus), "input %q", in)
	}
}

func TestStatus_SeverityOrdering(t *testing.T) {
	assert.Less(t, Good.Severity(), OK.Severity())
	assert.Less(t, OK.Severity(), Anxious.Severity())
	assert.Less(t, Anxious.Severity(), Status("unknown").Severity())
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("Good").Valid())
	assert.False(t, Status("").Valid())
}

func TestSentiment_Valid(t *testing.T) {
	assert.True(t, Positive.Valid())
	assert.True(t, Neutral.Valid())
	assert.True(t, Negative.Valid())
	assert.False(t, Sentiment("Positive").Valid())
	assert.False(t, Sentiment("mixed").Valid())
}

func TestStatus_Label(t *testing.T) {
	assert.Equal(t, "Anxious", Anxious.Label())
	assert.Equal(t, "OK", OK.Label())
}
