// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates one review submission end to end:
// admission control, input validation, the structured AI call, response
// validation, and persistence. Every stage fails fast and nothing is
// retried; the caller may simply resubmit.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianPulse/services/feedback/analysis"
	"github.com/AleutianAI/AleutianPulse/services/feedback/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/feedback/observability"
	"github.com/AleutianAI/AleutianPulse/services/feedback/ratelimit"
	"github.com/AleutianAI/AleutianPulse/services/feedback/storage"
)

// Reason classifies why a submission was rejected.
type Reason string

const (
	ReasonRateLimited    Reason = "rate_limited"
	ReasonInvalidInput   Reason = "invalid_input"
	ReasonAIUnavailable  Reason = "ai_unavailable"
	ReasonBadAIOutput    Reason = "bad_ai_output"
	ReasonPersistFailure Reason = "persist_failure"
)

// Rejection is the terminal failure outcome of a submission. It carries
// only what the client may see: the reason, the wait time for rate limits,
// and field messages for invalid input. Upstream diagnostic detail stays
// in the logs.
type Rejection struct {
	Reason        Reason
	RetryAfterSec int
	Details       []string
}

func (r *Rejection) Error() string {
	return "submission rejected: " + string(r.Reason)
}

// Result is the successful outcome: the AI reply for the customer and the
// id of the persisted record.
type Result struct {
	Reply    string
	RecordID string
}

// Pipeline wires the submission stages together. All dependencies are
// injected at construction; the pipeline owns no shared state of its own,
// so one instance serves all requests concurrently.
type Pipeline struct {
	limiter   *ratelimit.Limiter
	analyzer  *analysis.Analyzer
	store     *storage.ReviewStore
	aiTimeout time.Duration
}

// New creates a Pipeline. aiTimeout bounds the structured AI call; zero or
// negative disables the bound (a hung upstream then hangs the request).
func New(limiter *ratelimit.Limiter, analyzer *analysis.Analyzer, store *storage.ReviewStore, aiTimeout time.Duration) *Pipeline {
	return &Pipeline{
		limiter:   limiter,
		analyzer:  analyzer,
		store:     store,
		aiTimeout: aiTimeout,
	}
}

// Submit runs one review submission through the pipeline. On failure the
// returned *Rejection is the only caller-visible outcome.
//
// The rate-limiter lock is released before the AI and persistence calls;
// only this request blocks while those are in flight.
func (p *Pipeline) Submit(ctx context.Context, clientID string, sub datatypes.ReviewSubmission) (Result, *Rejection) {
	decision := p.limiter.Admit(clientID, time.Now())
	if !decision.Allowed {
		slog.Info("submission rate limited", "client", clientID, "retry_after_sec", decision.RetryAfterSec)
		observability.RecordSubmission(string(ReasonRateLimited))
		return Result{}, &Rejection{Reason: ReasonRateLimited, RetryAfterSec: decision.RetryAfterSec}
	}

	if msgs := sub.Validate(); msgs != nil {
		slog.Info("submission failed validation", "client", clientID, "violations", len(msgs))
		observability.RecordSubmission(string(ReasonInvalidInput))
		return Result{}, &Rejection{Reason: ReasonInvalidInput, Details: msgs}
	}

	aiCtx := ctx
	if p.aiTimeout > 0 {
		var cancel context.CancelFunc
		aiCtx, cancel = context.WithTimeout(ctx, p.aiTimeout)
		defer cancel()
	}
	rawAnalysis, err := p.analyzer.Analyze(aiCtx, sub.Rating, sub.Review)
	if err != nil {
		slog.Error("analysis call failed", "client", clientID, "error", err)
		observability.RecordSubmission(string(ReasonAIUnavailable))
		return Result{}, &Rejection{Reason: ReasonAIUnavailable}
	}
	observability.ObserveAnalysisLatency(float64(rawAnalysis.LatencyMs) / 1000)

	aiResult, err := analysis.ParseAnalysis(rawAnalysis.Raw)
	if err != nil {
		// The raw text and violation detail are for diagnosis only.
		var schemaErr *analysis.SchemaError
		if errors.As(err, &schemaErr) {
			slog.Error("analysis output violates schema",
				"client", clientID, "violations", schemaErr.Violations, "raw", rawAnalysis.Raw)
		} else {
			slog.Error("analysis output unparseable", "client", clientID, "error", err, "raw", rawAnalysis.Raw)
		}
		observability.RecordSubmission(string(ReasonBadAIOutput))
		return Result{}, &Rejection{Reason: ReasonBadAIOutput}
	}

	record := datatypes.ReviewRecord{
		Rating:      sub.Rating,
		ReviewText:  sub.Review,
		AIResponse:  aiResult.ReplyText,
		AISummary:   aiResult.Summary,
		AIAction:    aiResult.Action,
		AISentiment: aiResult.SentimentScore,
		AITags:      aiResult.Tags,
		LatencyMs:   rawAnalysis.LatencyMs,
		CreatedAt:   time.Now().UnixMilli(),
	}
	id, err := p.store.Append(ctx, record)
	if err != nil {
		slog.Error("failed to persist review record", "client", clientID, "error", err)
		observability.RecordSubmission(string(ReasonPersistFailure))
		return Result{}, &Rejection{Reason: ReasonPersistFailure}
	}

	slog.Info("review processed", "client", clientID, "record_id", id,
		"sentiment", aiResult.SentimentScore, "latency_ms", rawAnalysis.LatencyMs)
	observability.RecordSubmission("accepted")
	return Result{Reply: aiResult.ReplyText, RecordID: id}, nil
}
