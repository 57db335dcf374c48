package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain object", `{"picks": [{"index": 0, "reason": "short"}]}`},
		{"json fence", "```json\n{\"picks\": []}\n```"},
		{"plain fence", "```\n{\"picks\": []}\n```"},
		{"surrounding whitespace", "  \n  {\"picks\": []}  \n  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseJSONResponse(tt.text)
			require.NotNil(t, result)
			assert.Contains(t, result, "picks")
		})
	}
}

func TestParseJSONResponseValues(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
	assert.Equal(t, float64(42), result["num"])
}

func TestParseJSONResponseUnparseable(t *testing.T) {
	assert.Nil(t, ParseJSONResponse("not json at all"))
	assert.Nil(t, ParseJSONResponse(""))
	assert.Nil(t, ParseJSONResponse("```\nstill not json\n```"))
}
