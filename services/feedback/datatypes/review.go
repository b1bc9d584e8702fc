// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire and domain types of the feedback
// pipeline: the inbound submission, the validated AI analysis, and the
// persisted review record.
package datatypes

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Tag vocabulary the AI analysis may draw from. The response validator
// rejects anything outside this set.
var AllowedTags = []string{"Quality", "Price", "Service", "Delivery", "App Experience"}

// MaxTags bounds the tags array in both the model-side schema descriptor
// and the local response validation.
const MaxTags = 3

// ReviewSubmission is the raw client payload of POST /submit-review.
// Validation bounds: rating 1-5 inclusive, review 5-1000 characters
// (rune count, so multibyte text is measured fairly).
type ReviewSubmission struct {
	Rating int    `json:"rating" validate:"min=1,max=5"`
	Review string `json:"review" validate:"min=5,max=1000"`
}

var submissionValidator = validator.New()

// Validate checks the submission and reports every violated field, not
// just the first. A nil return means the submission is safe to forward.
func (s ReviewSubmission) Validate() []string {
	err := submissionValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"invalid submission"}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Rating":
			msgs = append(msgs, "rating must be an integer between 1 and 5")
		case "Review":
			msgs = append(msgs, "review must be between 5 and 1000 characters")
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return msgs
}

// AIAnalysis is the validated structured output of the analysis call.
// Invariants are enforced by analysis.ParseAnalysis: ReplyText and Action
// non-empty, SentimentScore in [0,100], Tags ⊆ AllowedTags with at most
// MaxTags entries (duplicates are tolerated, matching the descriptor).
type AIAnalysis struct {
	ReplyText      string   `json:"response"`
	Summary        string   `json:"summary"`
	Action         string   `json:"action"`
	SentimentScore int      `json:"sentiment_score"`
	Tags           []string `json:"tags"`
}

// ReviewRecord is the persisted union of submission, analysis and call
// metadata. The JSON field set is the storage contract; renaming a tag
// here is a breaking schema change.
type ReviewRecord struct {
	ID          string   `json:"id,omitempty"`
	Rating      int      `json:"rating"`
	ReviewText  string   `json:"reviewText"`
	AIResponse  string   `json:"ai_response"`
	AISummary   string   `json:"ai_summary"`
	AIAction    string   `json:"ai_action"`
	AISentiment int      `json:"ai_sentiment"`
	AITags      []string `json:"ai_tags"`
	LatencyMs   int64    `json:"latency_ms"`
	CreatedAt   int64    `json:"createdAt"`
}

// ReportInput is the simplified record shape fed to the report prompt.
type ReportInput struct {
	Rating    int      `json:"rating"`
	Text      string   `json:"text"`
	DateOnly  string   `json:"dateOnly"`
	Sentiment int      `json:"sentiment"`
	Tags      []string `json:"tags"`
}

// ToReportInput flattens a record for report generation. CreatedAt is
// reduced to a date so the prompt never carries precise timestamps.
func (r ReviewRecord) ToReportInput() ReportInput {
	tags := r.AITags
	if tags == nil {
		tags = []string{}
	}
	return ReportInput{
		Rating:    r.Rating,
		Text:      r.ReviewText,
		DateOnly:  time.UnixMilli(r.CreatedAt).UTC().Format("2006-01-02"),
		Sentiment: r.AISentiment,
		Tags:      tags,
	}
}
