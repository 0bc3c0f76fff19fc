package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"mailparser_server/core/domain"

	"github.com/goccy/go-json"
)

const signatureSystemPrompt = `You are an information extractor for email signatures.
Return ONLY one valid JSON object. No prose, no code fences, no markdown.
If a field is unknown, use null. Do not invent data.
Ignore the recipient's signature and quoted replies; describe the sender only.
The JSON object MUST have exactly these keys:
{"first_name": null, "last_name": null, "title": null, "company": null,
 "email": [], "phone": [], "url": [], "address": [],
 "city": null, "country": null, "linkedin": null}`

// ExtractSignature asks the model for the sender's signature fields.
// text is usually the body window of the latest message.
func (c *Client) ExtractSignature(ctx context.Context, text string) (*domain.PersonInfo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("extract signature: empty text")
	}

	resp, err := c.CompleteJSON(ctx, signatureSystemPrompt, "Email text:\n"+truncateBody(text, 6000))
	if err != nil {
		return nil, fmt.Errorf("extract signature: %w", err)
	}

	raw, err := ParseJSONObject(resp)
	if err != nil {
		return nil, fmt.Errorf("extract signature: %w", err)
	}

	return decodePersonInfo(raw), nil
}

var fencedJSONRe = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseJSONObject decodes a JSON object from a model reply.
// It tries the whole reply, then a fenced block, then the widest {...} span.
func ParseJSONObject(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err == nil && out != nil {
		return out, nil
	}

	if m := fencedJSONRe.FindStringSubmatch(s); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &out); err == nil && out != nil {
			return out, nil
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(s[start:end+1]), &out); err == nil && out != nil {
			return out, nil
		}
	}

	return nil, fmt.Errorf("no JSON object in model reply")
}

func decodePersonInfo(raw map[string]any) *domain.PersonInfo {
	info := &domain.PersonInfo{
		FirstName: stringField(raw, "first_name"),
		LastName:  stringField(raw, "last_name"),
		Title:     stringField(raw, "title"),
		Company:   stringField(raw, "company"),
		City:      stringField(raw, "city"),
		Country:   stringField(raw, "country"),
		LinkedIn:  stringField(raw, "linkedin"),
		Email:     listField(raw, "email"),
		Phone:     listField(raw, "phone"),
		URL:       listField(raw, "url", "website"),
		Address:   listField(raw, "address"),
	}
	return info
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// listField merges keys into one list; a scalar becomes a one-item list.
func listField(raw map[string]any, keys ...string) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			add(v)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
	}
	return out
}
