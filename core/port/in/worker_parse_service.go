package in

import (
	"context"

	"mailparser_server/core/domain"
)

// ParseService is the inbound use case for email triage.
type ParseService interface {
	// HandleRaw decodes a raw .eml message and runs the full pipeline.
	HandleRaw(ctx context.Context, raw []byte, source domain.MailSource, sourceID string) (*domain.ProcessedEmail, error)
	// HandleEmail runs the pipeline on an already decoded message.
	HandleEmail(ctx context.Context, email *domain.ParsedEmail) (*domain.ProcessedEmail, error)
	// Extract runs contact extraction on plain body text.
	Extract(ctx context.Context, text string) *domain.ExtractionResult
	// ClassifyIntent runs intent classification on a subject and body.
	ClassifyIntent(ctx context.Context, subject, body string) *domain.IntentResult
	// Get loads an archived result.
	Get(ctx context.Context, id string) (*domain.ProcessedEmail, error)
}
