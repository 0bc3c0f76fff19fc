package worker

import (
	"context"

	"mailparser_server/pkg/logger"

	"github.com/goccy/go-json"
)

type Handler struct {
	parseProcessor *ParseProcessor
}

func NewHandler(parseProcessor *ParseProcessor) *Handler {
	return &Handler{parseProcessor: parseProcessor}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobParseEmail:
		return h.parseProcessor.ProcessParse(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
