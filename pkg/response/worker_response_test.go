package response

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"mailparser_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, app *fiber.App, path string) (int, Response) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var r Response
	require.NoError(t, json.Unmarshal(body, &r))
	return resp.StatusCode, r
}

func TestEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/ok", func(c *fiber.Ctx) error {
		c.Locals("requestid", "req-1")
		return OK(c, map[string]string{"hello": "world"})
	})
	app.Get("/app-error", func(c *fiber.Ctx) error {
		return FromError(c, apperr.NotFound("email"))
	})
	app.Get("/fiber-error", func(c *fiber.Ctx) error {
		return FromError(c, fiber.NewError(fiber.StatusRequestEntityTooLarge, "too big"))
	})
	app.Get("/plain-error", func(c *fiber.Ctx) error {
		return FromError(c, errors.New("secret detail"))
	})

	status, r := decode(t, app, "/ok")
	assert.Equal(t, 200, status)
	assert.True(t, r.Success)
	assert.Equal(t, "req-1", r.RequestID)
	assert.False(t, r.Timestamp.IsZero())

	status, r = decode(t, app, "/app-error")
	assert.Equal(t, 404, status)
	assert.False(t, r.Success)
	require.NotNil(t, r.Error)
	assert.Equal(t, apperr.CodeNotFound, r.Error.Code)

	status, r = decode(t, app, "/fiber-error")
	assert.Equal(t, 413, status)
	assert.Equal(t, apperr.CodeTooLarge, r.Error.Code)

	status, r = decode(t, app, "/plain-error")
	assert.Equal(t, 500, status)
	assert.Equal(t, apperr.CodeInternalError, r.Error.Code)
	assert.NotContains(t, r.Error.Message, "secret")
}
