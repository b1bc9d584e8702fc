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
	"encoding/json"
	"fmt"
	"math"

	"github.com/kaptinlin/jsonschema"

	"github.com/AleutianAI/AleutianPulse/services/feedback/datatypes"
)

// validationSchema is what the service itself enforces on the completion
// before trusting it. It differs from the model-side descriptor in two
// deliberate tolerances: sentiment_score may be a non-integer number
// (rounded on persistence), and tags may be absent (defaults to empty).
// Everything else is as strict: non-empty strings, tag vocabulary, and the
// three-tag cap are hard failures.
var validationSchema = mustCompileSchema(`{
	"type": "object",
	"properties": {
		"response": {"type": "string", "minLength": 1},
		"summary": {"type": "string", "minLength": 1},
		"action": {"type": "string", "minLength": 1},
		"sentiment_score": {"type": "number", "minimum": 0, "maximum": 100},
		"tags": {
			"type": "array",
			"items": {"type": "string", "enum": ["Quality", "Price", "Service", "Delivery", "App Experience"]},
			"maxItems": 3
		}
	},
	"required": ["response", "summary", "action", "sentiment_score"]
}`)

func mustCompileSchema(doc string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(doc))
	if err != nil {
		panic(fmt.Sprintf("compile analysis validation schema: %v", err))
	}
	return schema
}

// ParseError reports a completion that was not valid JSON at all. The raw
// upstream text is for logs only and must never reach the end user.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("analysis output is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports a completion that parsed but violated the analysis
// schema. Violations is the flattened list for logging; like the raw text
// it is never surfaced to clients.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("analysis output violates schema: %d violation(s)", len(e.Violations))
}

// rawAIAnalysis is the decode target before normalization. SentimentScore
// stays a float here so 91.6 survives decoding and can be rounded.
type rawAIAnalysis struct {
	Response       string   `json:"response"`
	Summary        string   `json:"summary"`
	Action         string   `json:"action"`
	SentimentScore float64  `json:"sentiment_score"`
	Tags           []string `json:"tags"`
}

// ParseAnalysis validates a raw completion and converts it into the typed
// analysis. Failures are tagged: *ParseError when the text is not JSON,
// *SchemaError when it is JSON of the wrong shape.
func ParseAnalysis(raw string) (datatypes.AIAnalysis, error) {
	data := []byte(raw)

	// Syntactic check first: a completion that is not JSON at all is a
	// ParseError. Shape problems (wrong types, missing fields) belong to
	// the schema step below.
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return datatypes.AIAnalysis{}, &ParseError{Err: err}
	}

	result := validationSchema.ValidateJSON(data)
	if !result.IsValid() {
		violations := make([]string, 0, len(result.Errors))
		for keyword, evalErr := range result.Errors {
			violations = append(violations, fmt.Sprintf("%s: %s", keyword, evalErr.Error()))
		}
		return datatypes.AIAnalysis{}, &SchemaError{Violations: violations}
	}

	var decoded rawAIAnalysis
	if err := json.Unmarshal(data, &decoded); err != nil {
		// Schema-valid JSON that still fails the typed decode means the
		// schema and the struct drifted apart.
		return datatypes.AIAnalysis{}, &ParseError{Err: err}
	}

	tags := decoded.Tags
	if tags == nil {
		tags = []string{}
	}
	return datatypes.AIAnalysis{
		ReplyText:      decoded.Response,
		Summary:        decoded.Summary,
		Action:         decoded.Action,
		SentimentScore: int(math.Round(decoded.SentimentScore)),
		Tags:           tags,
	}, nil
}
