package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mailparser_server/pkg/httputil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "mailparser")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html><body>Firma GmbH</body></html>"))
	}))
	defer srv.Close()

	f := NewSiteFetcherWithClient(srv.Client(), nil)

	body, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, body, "Firma GmbH")

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
