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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianPulse/services/feedback/report"
)

// HandleGenerateReport produces the aggregate feedback report.
func HandleGenerateReport(job *report.Job) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := feedbackTracer.Start(c.Request.Context(), "HandleGenerateReport")
		defer span.End()

		markdown, err := job.Generate(ctx)
		if err != nil {
			if errors.Is(err, report.ErrNoData) {
				c.JSON(http.StatusNotFound, gin.H{"message": "no reviews to report on yet"})
				return
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Report generation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate report"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"report": markdown})
	}
}
