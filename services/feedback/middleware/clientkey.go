// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP request helpers for the feedback
// service.
package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientKey derives the rate-limiting identity of a request: the first
// entry of X-Forwarded-For, else X-Real-IP, else the transport address,
// else "unknown".
//
// The "unknown" bucket is shared by all unidentified clients. That is a
// deliberate coarsening: such clients collectively get one window rather
// than bypassing the limiter.
func ClientKey(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(c.GetHeader("X-Real-IP")); real != "" {
		return real
	}
	if c.Request != nil && c.Request.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil && host != "" {
			return host
		}
		return c.Request.RemoteAddr
	}
	return "unknown"
}
