package worker

import (
	"context"
	"fmt"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/in"
	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/logger"
)

// ParseProcessor runs parse_email jobs through the parse service.
type ParseProcessor struct {
	service in.ParseService
}

// NewParseProcessor creates a new parse processor.
func NewParseProcessor(service in.ParseService) *ParseProcessor {
	return &ParseProcessor{service: service}
}

// ProcessParse decodes the payload and runs the full pipeline.
func (p *ParseProcessor) ProcessParse(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[ParseEmailPayload](msg)
	if err != nil {
		return apperr.BadRequest(fmt.Sprintf("invalid parse payload: %v", err))
	}
	if len(payload.Raw) == 0 {
		return apperr.MissingField("raw")
	}

	result, err := p.service.HandleRaw(ctx, payload.Raw, domain.MailSource(payload.Source), payload.SourceID)
	if err != nil {
		return err
	}

	logger.Info("[ParseProcessor] job=%s source=%s id=%s intent=%s method=%s",
		msg.ID, payload.Source, payload.SourceID, result.Intention.Intent, result.Extraction.ExtractedBy)
	return nil
}
