// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report aggregates recent review records into a narrative
// markdown report via a free-form AI call. The report job is independent
// of the submission pipeline; they share only the LLM client and the
// record store.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianPulse/services/feedback/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/feedback/observability"
	"github.com/AleutianAI/AleutianPulse/services/feedback/storage"
	"github.com/AleutianAI/AleutianPulse/services/llm"
)

// ErrNoData means no records exist yet, so there is nothing to report on.
var ErrNoData = errors.New("report: no review records available")

const (
	// maxReportRecords bounds how many recent records feed one report.
	maxReportRecords = 50

	// Low randomness and a bounded output budget keep reports short and
	// deterministic-leaning.
	reportTemperature = 0.2
	reportMaxTokens   = 600

	// fallbackReport replaces an empty completion verbatim.
	fallbackReport = "No report could be generated from the available feedback."
)

// Job generates markdown summaries of recent feedback.
type Job struct {
	store     *storage.ReviewStore
	client    llm.LLMClient
	aiTimeout time.Duration
}

func NewJob(store *storage.ReviewStore, client llm.LLMClient, aiTimeout time.Duration) *Job {
	return &Job{store: store, client: client, aiTimeout: aiTimeout}
}

// Generate fetches up to 50 most recent records, normalizes them, and asks
// the model for a fixed four-section markdown report. Returns ErrNoData
// when the store is empty. The model output is returned verbatim, or the
// literal fallback string when the model produced nothing.
func (j *Job) Generate(ctx context.Context) (string, error) {
	records, err := j.store.Recent(ctx, maxReportRecords)
	if err != nil {
		observability.RecordReport("error")
		return "", fmt.Errorf("fetch recent reviews: %w", err)
	}
	if len(records) == 0 {
		observability.RecordReport("no_data")
		return "", ErrNoData
	}

	inputs := make([]datatypes.ReportInput, 0, len(records))
	for _, rec := range records {
		inputs = append(inputs, rec.ToReportInput())
	}

	prompt, err := buildReportPrompt(inputs)
	if err != nil {
		observability.RecordReport("error")
		return "", err
	}

	if j.aiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.aiTimeout)
		defer cancel()
	}

	temp := float32(reportTemperature)
	maxTokens := reportMaxTokens
	markdown, err := j.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil && !errors.Is(err, llm.ErrEmptyCompletion) {
		observability.RecordReport("error")
		return "", fmt.Errorf("report generation failed: %w", err)
	}
	if strings.TrimSpace(markdown) == "" {
		slog.Warn("report model returned no content, using fallback")
		observability.RecordReport("success")
		return fallbackReport, nil
	}

	slog.Info("report generated", "records", len(records), "chars", len(markdown))
	observability.RecordReport("success")
	return markdown, nil
}

func buildReportPrompt(inputs []datatypes.ReportInput) (string, error) {
	payload, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("encode report inputs: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are an analyst summarizing customer feedback for a product team.\n")
	b.WriteString("Below are recent reviews as JSON, most recent first.\n\n")
	b.Write(payload)
	b.WriteString("\n\nWrite a short markdown report with exactly these four sections:\n")
	b.WriteString("## Trend\n## Top Complaint\n## Top Delight\n## Recommended Action\n\n")
	b.WriteString("Do not include the raw review data, scores, or JSON in the report. ")
	b.WriteString("Keep each section to a few sentences.")
	return b.String(), nil
}
