package http

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReady(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		checks map[string]HealthChecker
		status int
		want   map[string]string
	}{
		{
			name:   "all healthy",
			checks: map[string]HealthChecker{"postgres": ok, "redis": nil},
			status: 200,
			want:   map[string]string{"postgres": "healthy", "redis": "not configured"},
		},
		{
			name:   "one down",
			checks: map[string]HealthChecker{"postgres": ok, "redis": down},
			status: 503,
			want:   map[string]string{"postgres": "healthy", "redis": "unhealthy: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			NewHealthHandler(tt.checks).Register(app)

			resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			var body struct {
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.want, body.Checks)
		})
	}
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(nil).Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
