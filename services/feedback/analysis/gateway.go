// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis turns a validated review submission into a structured
// AI analysis: it builds the instruction prompt, constrains the model with
// a JSON schema descriptor, and validates the raw completion before any
// other component trusts it.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianPulse/services/feedback/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/llm"
)

// analysisSchemaName identifies the descriptor to backends that require a
// named schema.
const analysisSchemaName = "review_analysis"

// analysisDescriptor is the model-side contract: exactly these five
// properties, all required. sentiment_score is declared integer here; the
// local validator is more tolerant (see validate.go) because models
// occasionally emit decimals despite the constraint.
var analysisDescriptor = json.RawMessage(`{
	"type": "object",
	"properties": {
		"response": {"type": "string"},
		"summary": {"type": "string"},
		"action": {"type": "string"},
		"sentiment_score": {"type": "integer", "minimum": 0, "maximum": 100},
		"tags": {
			"type": "array",
			"items": {"type": "string", "enum": ["Quality", "Price", "Service", "Delivery", "App Experience"]},
			"maxItems": 3
		}
	},
	"required": ["response", "summary", "action", "sentiment_score", "tags"],
	"additionalProperties": false
}`)

// RawAnalysis is the unvalidated output of one structured analysis call.
type RawAnalysis struct {
	Raw       string
	LatencyMs int64
}

// Analyzer invokes the model in structured mode for one submission.
type Analyzer struct {
	client llm.LLMClient
}

func NewAnalyzer(client llm.LLMClient) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze builds the instruction prompt for the submission and requests a
// schema-constrained completion. Latency is wall-clock time around the
// call. An empty completion is reported as llm.ErrEmptyCompletion, distinct
// from a transport failure; both are terminal for the submission.
func (a *Analyzer) Analyze(ctx context.Context, rating int, text string) (RawAnalysis, error) {
	prompt := buildAnalysisPrompt(rating, text)
	schema := llm.ResponseSchema{Name: analysisSchemaName, Schema: analysisDescriptor}

	start := time.Now()
	raw, err := a.client.GenerateStructured(ctx, prompt, schema, llm.GenerationParams{})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return RawAnalysis{}, fmt.Errorf("analysis call failed: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return RawAnalysis{}, fmt.Errorf("analysis call produced no text: %w", llm.ErrEmptyCompletion)
	}
	return RawAnalysis{Raw: raw, LatencyMs: latency}, nil
}

func buildAnalysisPrompt(rating int, text string) string {
	var b strings.Builder
	b.WriteString("You are the customer-care assistant of a consumer app. A customer left this review:\n\n")
	fmt.Fprintf(&b, "Rating: %d out of 5 stars\nReview: %s\n\n", rating, text)
	b.WriteString("Produce a JSON object with:\n")
	b.WriteString("- response: a short, warm reply to the customer\n")
	b.WriteString("- summary: the review in 10 words or fewer\n")
	b.WriteString("- action: one concrete follow-up action for the team\n")
	b.WriteString("- sentiment_score: 0 (very negative) to 100 (very positive)\n")
	fmt.Fprintf(&b, "- tags: up to %d matching categories from: %s\n",
		datatypes.MaxTags, strings.Join(datatypes.AllowedTags, ", "))
	return b.String()
}
