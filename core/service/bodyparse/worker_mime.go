package bodyparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"mailparser_server/core/domain"
	"mailparser_server/pkg/apperr"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// maxPartSize caps how much of a single body part is read.
const maxPartSize = 10 << 20

// ReadEML decodes a raw RFC 822 message. The first text/plain and
// text/html parts are returned, decoded to UTF-8. Attachments are
// skipped. A message with only an HTML part gets its visible text as
// the plain body.
func ReadEML(raw []byte) (*domain.ParsedEmail, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, apperr.ParseFailed("eml", err)
	}
	defer mr.Close()

	parsed := &domain.ParsedEmail{
		Meta: readMeta(&mr.Header),
		Raw:  raw,
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
				continue
			}
			// A truncated trailing part still leaves usable bodies.
			if parsed.Plain != "" || parsed.HTML != "" {
				break
			}
			return nil, apperr.ParseFailed("eml", fmt.Errorf("read part: %w", err))
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		switch {
		case ct == "text/plain" && parsed.Plain == "":
			parsed.Plain = readPart(part.Body)
		case ct == "text/html" && parsed.HTML == "":
			parsed.HTML = readPart(part.Body)
		}
	}

	if strings.TrimSpace(parsed.Plain) == "" && parsed.HTML != "" {
		parsed.Plain = VisibleText(parsed.HTML)
	}
	return parsed, nil
}

func readPart(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxPartSize))
	if err != nil && len(data) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(data), "")
}

func readMeta(h *mail.Header) domain.MailMeta {
	return domain.MailMeta{
		From:      headerText(h, "From"),
		To:        headerText(h, "To"),
		Subject:   headerText(h, "Subject"),
		MessageID: h.Get("Message-Id"),
		Date:      h.Get("Date"),
	}
}

// headerText decodes RFC 2047 words, falling back to the raw value.
func headerText(h *mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		return h.Get(key)
	}
	return v
}
