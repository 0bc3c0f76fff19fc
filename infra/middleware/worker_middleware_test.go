package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	for _, h := range handlers {
		app.Use(h)
	}
	app.Get("/ok", func(c *fiber.Ctx) error {
		sub, _ := c.Locals("subject").(string)
		return c.SendString("ok:" + sub)
	})
	app.Get("/fail", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Get("/missing", func(c *fiber.Ctx) error { return apperr.NotFound("email") })
	app.Get("/panic", func(c *fiber.Ctx) error { panic("kaputt") })
	return app
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func errorCode(t *testing.T, app *fiber.App, path, auth string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == nil {
		return resp.StatusCode, ""
	}
	return resp.StatusCode, body.Error.Code
}

func TestJWTAuth(t *testing.T) {
	valid := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{})
	wrongAlg := sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{})

	tests := []struct {
		name   string
		auth   string
		status int
		code   string
	}{
		{"valid token", "Bearer " + valid, 200, ""},
		{"missing header", "", 401, apperr.CodeUnauthorized},
		{"not bearer", "Basic abc", 401, apperr.CodeUnauthorized},
		{"expired", "Bearer " + expired, 401, apperr.CodeInvalidToken},
		{"wrong key", "Bearer " + wrongKey, 401, apperr.CodeInvalidToken},
		{"wrong algorithm", "Bearer " + wrongAlg, 401, apperr.CodeInvalidToken},
	}

	app := newApp(JWTAuth(testSecret))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := errorCode(t, app, "/ok", tt.auth)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestJWTAuthDisabled(t *testing.T) {
	app := newApp(JWTAuth(""))
	status, _ := errorCode(t, app, "/ok", "")
	assert.Equal(t, 200, status)
}

func TestErrorHandler(t *testing.T) {
	app := newApp(Recover())

	status, code := errorCode(t, app, "/missing", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, apperr.CodeNotFound, code)

	status, code = errorCode(t, app, "/fail", "")
	assert.Equal(t, 500, status)
	assert.Equal(t, apperr.CodeInternalError, code)

	status, code = errorCode(t, app, "/panic", "")
	assert.Equal(t, 500, status)
	assert.Equal(t, apperr.CodeInternalError, code)

	status, code = errorCode(t, app, "/nowhere", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, apperr.CodeNotFound, code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewSlidingWindowLimiter(nil, &ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})
	app := newApp(RateLimit(limiter))

	for i := 0; i < 2; i++ {
		status, _ := errorCode(t, app, "/ok", "")
		require.Equal(t, 200, status)
	}

	req := httptest.NewRequest("GET", "/ok", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestSecurityHeaders(t *testing.T) {
	app := newApp(SecurityHeaders())
	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}
