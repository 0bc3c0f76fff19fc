package enrichment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
)

var bodyEmailRe = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)

// SignatureReader asks the LLM for the sender's signature fields.
type SignatureReader struct {
	llm out.SignatureLLM
}

func NewSignatureReader(llm out.SignatureLLM) *SignatureReader {
	return &SignatureReader{llm: llm}
}

// Read parses window, prefixed with the From header when known.
// List fields are never nil. Without an email from the model, addresses
// found in window are used.
func (s *SignatureReader) Read(ctx context.Context, window, from string) (*domain.PersonInfo, error) {
	window = strings.TrimSpace(window)
	if window == "" {
		return nil, fmt.Errorf("signature: empty body window")
	}

	prompt := window
	if from != "" {
		prompt = "FROM_ADDRESS: " + from + "\n\n" + window
	}

	info, err := s.llm.ExtractSignature(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = &domain.PersonInfo{}
	}

	info.Phone = orEmpty(info.Phone)
	info.Email = orEmpty(info.Email)
	info.URL = orEmpty(info.URL)
	info.Address = orEmpty(info.Address)

	if len(info.Email) == 0 {
		seen := map[string]bool{}
		for _, e := range bodyEmailRe.FindAllString(window, -1) {
			if !seen[e] {
				seen[e] = true
				info.Email = append(info.Email, e)
			}
		}
	}

	return info, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
