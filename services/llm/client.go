// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrEmptyCompletion is returned when the backend answered successfully
// but produced no text. Callers decide whether that is fatal (structured
// analysis) or recoverable via a fallback string (report generation).
var ErrEmptyCompletion = errors.New("llm: backend returned an empty completion")

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ResponseSchema describes a JSON Schema the backend must constrain its
// output to. Schema holds the raw schema document; Name identifies it to
// backends that require a named schema (OpenAI structured outputs).
type ResponseSchema struct {
	Name   string
	Schema json.RawMessage
}

// LLMClient defines the standard interface for any LLM backend.
//
// Generate is the free-form mode: the caller shapes the output through the
// prompt alone. GenerateStructured constrains the output to the given
// schema; the returned string is the raw (unvalidated) completion text.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	GenerateStructured(ctx context.Context, prompt string, schema ResponseSchema, params GenerationParams) (string, error)
}
