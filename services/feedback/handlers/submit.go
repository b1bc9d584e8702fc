// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianPulse/services/feedback/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/feedback/middleware"
	"github.com/AleutianAI/AleutianPulse/services/feedback/pipeline"
)

var feedbackTracer = otel.Tracer("aleutian.feedback.handlers")

// HandleSubmitReview runs one submission through the pipeline and maps
// its terminal outcome onto the HTTP contract. Server-side failures carry
// a generic error string only; detail stays in the logs.
func HandleSubmitReview(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := feedbackTracer.Start(c.Request.Context(), "HandleSubmitReview")
		defer span.End()

		var sub datatypes.ReviewSubmission
		if err := c.BindJSON(&sub); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the review submission", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid input",
				"details": []string{"request body must be valid JSON"},
			})
			return
		}

		result, rejection := p.Submit(ctx, middleware.ClientKey(c), sub)
		if rejection != nil {
			writeRejection(c, rejection)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": result.Reply,
		})
	}
}

func writeRejection(c *gin.Context, rejection *pipeline.Rejection) {
	switch rejection.Reason {
	case pipeline.ReasonRateLimited:
		c.Header("Retry-After", strconv.Itoa(rejection.RetryAfterSec))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":       false,
			"error":         "Too many reviews, please try again later",
			"retryAfterSec": rejection.RetryAfterSec,
		})
	case pipeline.ReasonInvalidInput:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid input",
			"details": rejection.Details,
		})
	default:
		// AI, parsing, and storage failures are opaque to the caller.
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to process review",
		})
	}
}
