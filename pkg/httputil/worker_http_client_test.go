package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "mailparser", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("0123456789"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewOptimizedClient(WebClientConfig(time.Second))
	header := http.Header{"User-Agent": []string{"mailparser"}}

	body, err := GetBody(context.Background(), client, srv.URL+"/ok", header, 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(body))

	_, err = GetBody(context.Background(), client, srv.URL+"/missing", nil, 4)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestWebClientConfigDefaultTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, WebClientConfig(0).ResponseTimeout)
	assert.Equal(t, 3*time.Second, WebClientConfig(3*time.Second).ResponseTimeout)
}
