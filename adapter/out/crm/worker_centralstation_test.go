package crm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/resilience"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/people/search", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Apikey"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		if r.URL.Query().Get("email") == "anna@firma.de" {
			_, _ = w.Write([]byte(`[{"id": 1}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key", zerolog.Nop())

	ok, err := c.PersonExists(context.Background(), "anna@firma.de", "Anna", "Schmidt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.EmailExists(context.Background(), "nobody@firma.de")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.PersonExists(context.Background(), "", "", "")
	assert.True(t, apperr.HasCode(err, apperr.CodeMissingField))
}

func TestHeaderVariantFallback(t *testing.T) {
	var mu sync.Mutex
	var tried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		// The server canonicalizes both spellings to X-Apikey.
		tried = append(tried, r.Header.Get("X-Apikey"))
		if len(tried) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", zerolog.Nop())
	people, err := c.ListPeople(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Len(t, people, 2)
	assert.Equal(t, []string{"key", "key"}, tried)
}

func TestAllVariantsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", zerolog.Nop())
	_, err := c.ListPeople(context.Background(), 10, 1)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
}

func TestServerErrorStopsEarly(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", zerolog.Nop())
	_, err := c.PersonExists(context.Background(), "a@b.de", "", "")
	assert.True(t, apperr.HasCode(err, apperr.CodeExternalError))
	assert.Equal(t, 1, calls)
}

func TestOpenBreakerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := resilience.DefaultCircuitBreakerConfig("crm")
	cfg.ConsecutiveFailures = 1
	c := NewClient(srv.URL, "key", zerolog.Nop(), WithBreaker(resilience.NewCircuitBreaker(cfg, zerolog.Nop())))

	_, err := c.EmailExists(context.Background(), "a@b.de")
	require.Error(t, err)
	_, err = c.EmailExists(context.Background(), "a@b.de")
	assert.True(t, apperr.HasCode(err, apperr.CodeUnavailable))
}

func TestCreatePerson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/people", r.URL.Path)
		assert.Equal(t, "Schmidt", r.URL.Query().Get("name"))
		_, _ = w.Write([]byte(`{"person": {"id": 9}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", zerolog.Nop())
	ok, err := c.CreatePerson(context.Background(), Person{Email: "anna@firma.de", FirstName: "Anna", LastName: "Schmidt"})
	require.NoError(t, err)
	assert.True(t, ok)
}
