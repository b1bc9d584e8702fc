// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianPulse/services/feedback/analysis"
	"github.com/AleutianAI/AleutianPulse/services/feedback/observability"
	"github.com/AleutianAI/AleutianPulse/services/feedback/pipeline"
	"github.com/AleutianAI/AleutianPulse/services/feedback/ratelimit"
	"github.com/AleutianAI/AleutianPulse/services/feedback/report"
	"github.com/AleutianAI/AleutianPulse/services/feedback/routes"
	"github.com/AleutianAI/AleutianPulse/services/feedback/storage"
	"github.com/AleutianAI/AleutianPulse/services/llm"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("feedback-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// openAIKey reads the API key from the environment, falling back to the
// Podman secret mount.
func openAIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	secretPath := "/run/secrets/openai_api_key"
	if content, err := os.ReadFile(secretPath); err == nil {
		slog.Info("Read the OpenAI API Key from Podman Secrets")
		return strings.TrimSpace(string(content))
	}
	return ""
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
		slog.Warn("ignoring non-integer env value", "name", name, "value", raw)
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(name); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
		slog.Warn("ignoring unparseable duration env value", "name", name, "value", raw)
	}
	return fallback
}

func main() {
	port := os.Getenv("FEEDBACK_PORT")
	if port == "" {
		port = "12230"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	// Every dependency is constructed here and passed by reference; no
	// component reaches for a lazily-initialized singleton.
	llmClient, err := llm.NewOpenAIClient(openAIKey(), os.Getenv("OPENAI_MODEL"))
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	dbPath := os.Getenv("FEEDBACK_DB_PATH")
	if dbPath == "" {
		dbPath = "/var/lib/aleutian/feedback"
		slog.Warn("FEEDBACK_DB_PATH not set, defaulting", "path", dbPath)
	}
	store, err := storage.Open(storage.DefaultConfig(dbPath))
	if err != nil {
		log.Fatalf("Failed to open the review store: %v", err)
	}
	defer store.Close()

	limiter := ratelimit.New(
		envInt("RATE_LIMIT_MAX", ratelimit.DefaultMaxPerWindow),
		envDuration("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),
	)
	limiter.StartSweeper(5 * time.Minute)
	defer limiter.StopSweeper()

	// Bounds the structured analysis and report calls. The upstream has
	// no timeout of its own; without this a hung call hangs the request.
	aiTimeout := envDuration("FEEDBACK_AI_TIMEOUT", 30*time.Second)

	p := pipeline.New(limiter, analysis.NewAnalyzer(llmClient), store, aiTimeout)
	job := report.NewJob(store, llmClient, aiTimeout)

	router := gin.Default()
	router.Use(otelgin.Middleware("feedback-service"))
	routes.SetupRoutes(router, p, job)

	log.Println("Starting the feedback server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
