// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ParseAnalysis Tests
// =============================================================================

func TestParseAnalysis_ValidPayload(t *testing.T) {
	raw := `{
		"response": "Thanks!",
		"summary": "Happy customer",
		"action": "None needed",
		"sentiment_score": 92,
		"tags": ["Service"]
	}`

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, "Thanks!", analysis.ReplyText)
	assert.Equal(t, "Happy customer", analysis.Summary)
	assert.Equal(t, "None needed", analysis.Action)
	assert.Equal(t, 92, analysis.SentimentScore)
	assert.Equal(t, []string{"Service"}, analysis.Tags)
}

// TestParseAnalysis_RoundsFractionalSentiment verifies a non-integer score
// is tolerated and rounded to the nearest integer.
func TestParseAnalysis_RoundsFractionalSentiment(t *testing.T) {
	raw := `{"response": "Thanks!", "summary": "s", "action": "a", "sentiment_score": 91.6}`

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, 92, analysis.SentimentScore)
}

// TestParseAnalysis_MissingTagsDefaultsEmpty verifies an absent tags field
// yields an empty, non-nil slice.
func TestParseAnalysis_MissingTagsDefaultsEmpty(t *testing.T) {
	raw := `{"response": "Thanks!", "summary": "s", "action": "a", "sentiment_score": 50}`

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	require.NotNil(t, analysis.Tags)
	assert.Empty(t, analysis.Tags)
}

func TestParseAnalysis_NotJSON(t *testing.T) {
	_, err := ParseAnalysis("I'm sorry, I can't produce JSON today.")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Error(t, errors.Unwrap(perr))
}

func TestParseAnalysis_SchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"sentiment above 100",
			`{"response": "r", "summary": "s", "action": "a", "sentiment_score": 101}`},
		{"sentiment below 0",
			`{"response": "r", "summary": "s", "action": "a", "sentiment_score": -1}`},
		{"sentiment not a number",
			`{"response": "r", "summary": "s", "action": "a", "sentiment_score": "high"}`},
		{"missing response",
			`{"summary": "s", "action": "a", "sentiment_score": 50}`},
		{"empty response string",
			`{"response": "", "summary": "s", "action": "a", "sentiment_score": 50}`},
		{"tag outside vocabulary",
			`{"response": "r", "summary": "s", "action": "a", "sentiment_score": 50, "tags": ["Shipping"]}`},
		{"more than three tags",
			`{"response": "r", "summary": "s", "action": "a", "sentiment_score": 50, "tags": ["Quality", "Price", "Service", "Delivery"]}`},
		{"not an object",
			`["response", "summary"]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAnalysis(tc.raw)
			var serr *SchemaError
			require.ErrorAs(t, err, &serr)
			assert.NotEmpty(t, serr.Violations)
		})
	}
}

// TestParseAnalysis_BoundarySentiments verifies 0 and 100 are both valid.
func TestParseAnalysis_BoundarySentiments(t *testing.T) {
	for _, score := range []string{"0", "100"} {
		raw := `{"response": "r", "summary": "s", "action": "a", "sentiment_score": ` + score + `}`
		_, err := ParseAnalysis(raw)
		assert.NoError(t, err, "sentiment_score %s should be accepted", score)
	}
}

// TestParseAnalysis_ThreeTagsAllowed verifies the cap is inclusive.
func TestParseAnalysis_ThreeTagsAllowed(t *testing.T) {
	raw := `{"response": "r", "summary": "s", "action": "a", "sentiment_score": 50,
		"tags": ["Quality", "Price", "App Experience"]}`

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Quality", "Price", "App Experience"}, analysis.Tags)
}
