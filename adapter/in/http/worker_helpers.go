package http

import (
	"io"
	"strings"

	"mailparser_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// uploadField is the multipart field carrying an .eml file.
const uploadField = "file"

// readUpload returns the uploaded message, either as the raw request body
// or as the multipart file field. Uploads larger than limit are rejected.
func readUpload(c *fiber.Ctx, limit int) ([]byte, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile(uploadField)
		if err != nil {
			return nil, apperr.MissingField(uploadField)
		}
		if limit > 0 && fh.Size > int64(limit) {
			return nil, apperr.TooLarge(limit)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperr.BadRequest("cannot open uploaded file")
		}
		defer f.Close()
		return readLimited(f, limit)
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, apperr.BadRequest("empty request body")
	}
	if limit > 0 && len(body) > limit {
		return nil, apperr.TooLarge(limit)
	}
	// fiber reuses the body buffer after the handler returns.
	raw := make([]byte, len(body))
	copy(raw, body)
	return raw, nil
}

func readLimited(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	raw, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, apperr.BadRequest("cannot read uploaded file")
	}
	if len(raw) > limit {
		return nil, apperr.TooLarge(limit)
	}
	return raw, nil
}

// bindJSON decodes the request body and reports decoding errors as 400.
func bindJSON(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	return nil
}
