package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evalia",
		Subsystem: "ai",
		Name:      "inference_duration_seconds",
		Help:      "Duration of document-analysis inference calls",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalia",
		Subsystem: "ai",
		Name:      "inference_failures_total",
		Help:      "Number of failed document-analysis inference calls",
	}, []string{"model"})

	aiUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalia",
		Subsystem: "ai",
		Name:      "document_uploads_total",
		Help:      "Number of document uploads to the inference service",
	}, []string{"outcome"})
)

// GeminiConfig defines configuration options for the Gemini analyzer.
type GeminiConfig struct {
	APIKey string
	Logger zerolog.Logger
}

// GeminiAnalyzer implements DocumentAnalyzer against the Gemini API.
type GeminiAnalyzer struct {
	client *genai.Client
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiAnalyzer builds a new analyzer using the provided configuration.
func NewGeminiAnalyzer(ctx context.Context, cfg GeminiConfig) (*GeminiAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GeminiAnalyzer{
		client: client,
		tracer: otel.Tracer("github.com/noah-isme/evalia-go-api/pkg/ai/gemini"),
		logger: logger.With().Str("component", "gemini_analyzer").Logger(),
	}, nil
}

// Upload sends a local file to the inference service.
func (a *GeminiAnalyzer) Upload(ctx context.Context, path, mimeType string) (FileHandle, error) {
	ctx, span := a.tracer.Start(ctx, "gemini.upload", trace.WithAttributes(
		attribute.String("mime_type", mimeType),
	))
	defer span.End()

	file, err := a.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		aiUploads.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return FileHandle{}, fmt.Errorf("upload %s: %w", path, err)
	}

	aiUploads.WithLabelValues("ok").Inc()
	a.logger.Debug().Str("name", file.Name).Str("uri", file.URI).Msg("document uploaded")

	return FileHandle{Name: file.Name, URI: file.URI, MIMEType: file.MIMEType}, nil
}

// Delete removes a previously uploaded file. Best effort at the call
// sites: a failed delete is logged there, never propagated.
func (a *GeminiAnalyzer) Delete(ctx context.Context, name string) error {
	ctx, span := a.tracer.Start(ctx, "gemini.delete")
	defer span.End()

	if _, err := a.client.Files.Delete(ctx, name, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete %s: %w", name, err)
	}

	return nil
}

// Generate runs one schema-constrained document-analysis call and returns
// the raw JSON response body.
func (a *GeminiAnalyzer) Generate(parent context.Context, req GenerateRequest) (string, error) {
	ctx, span := a.tracer.Start(parent, "gemini.generate", trace.WithAttributes(
		attribute.String("model", req.Model),
		attribute.Int("parts", len(req.Parts)),
	))
	defer span.End()

	schema := responseSchemaFor(req.Schema)
	if schema == nil {
		return "", fmt.Errorf("unknown response schema kind %d", req.Schema)
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.Text != "" {
			parts = append(parts, genai.NewPartFromText(part.Text))
			continue
		}
		parts = append(parts, genai.NewPartFromURI(part.FileURI, part.MIMEType))
	}

	start := time.Now()
	resp, err := a.client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		})
	aiDuration.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(req.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		err := fmt.Errorf("empty response from gemini")
		aiFailures.WithLabelValues(req.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return text, nil
}
