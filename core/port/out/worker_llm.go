package out

import (
	"context"

	"mailparser_server/core/domain"
)

// SignatureLLM parses a signature block into a PersonInfo.
type SignatureLLM interface {
	ExtractSignature(ctx context.Context, text string) (*domain.PersonInfo, error)
}

// IntentLLM returns raw intent flags as loosely typed JSON values.
// Values are normalized by the caller.
type IntentLLM interface {
	PredictIntentFlags(ctx context.Context, subject, body string) (map[string]any, error)
}
