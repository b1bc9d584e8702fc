// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the feedback
// service. Metrics cover submission outcomes, AI call latency, and report
// generation. Expose them via the /metrics endpoint and scrape with
// Prometheus.
//
// All metric operations are thread-safe via Prometheus's internal locking.
// The package-level helpers are no-ops until InitMetrics runs, so unit
// tests that exercise the pipeline need no metrics setup.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aleutian"

const feedbackSubsystem = "feedback"

// FeedbackMetrics holds all Prometheus metrics for the feedback service.
type FeedbackMetrics struct {
	// SubmissionsTotal counts submissions by terminal outcome.
	// Labels: outcome (accepted, rate_limited, invalid_input,
	// ai_unavailable, bad_ai_output, persist_failure)
	SubmissionsTotal *prometheus.CounterVec

	// AnalysisLatencySeconds measures wall-clock latency of the
	// structured AI call.
	AnalysisLatencySeconds prometheus.Histogram

	// ReportsTotal counts report generations by status.
	// Labels: status (success, no_data, error)
	ReportsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *FeedbackMetrics

// InitMetrics creates and registers all metrics. Call once at startup;
// calling twice panics on duplicate registration.
func InitMetrics() *FeedbackMetrics {
	DefaultMetrics = &FeedbackMetrics{
		SubmissionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: feedbackSubsystem,
				Name:      "submissions_total",
				Help:      "Total review submissions by terminal outcome",
			},
			[]string{"outcome"},
		),

		AnalysisLatencySeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: feedbackSubsystem,
				Name:      "analysis_latency_seconds",
				Help:      "Wall-clock latency of the structured analysis call",
				Buckets:   []float64{0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),

		ReportsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: feedbackSubsystem,
				Name:      "reports_total",
				Help:      "Total report generations by status",
			},
			[]string{"status"},
		),
	}
	return DefaultMetrics
}

// RecordSubmission counts one submission outcome. No-op before InitMetrics.
func RecordSubmission(outcome string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysisLatency records one AI call duration in seconds.
func ObserveAnalysisLatency(seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.AnalysisLatencySeconds.Observe(seconds)
}

// RecordReport counts one report generation outcome.
func RecordReport(status string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ReportsTotal.WithLabelValues(status).Inc()
}
