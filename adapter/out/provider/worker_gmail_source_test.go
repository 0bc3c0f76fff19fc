package provider

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const gmailRaw = "From: anna@firma.de\r\nSubject: Anfrage\r\n\r\nHallo"

func newFakeGmail(t *testing.T) (*GmailSource, *[]string) {
	t.Helper()
	var modified []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages") && r.Method == http.MethodGet:
			assert.Equal(t, gmailUnreadQuery, r.URL.Query().Get("q"))
			if r.URL.Query().Get("pageToken") == "" {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"messages":      []map[string]string{{"id": "m1"}},
					"nextPageToken": "p2",
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "m2"}}})
		case strings.HasSuffix(r.URL.Path, "/messages/m1"):
			assert.Equal(t, "raw", r.URL.Query().Get("format"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":  "m1",
				"raw": base64.URLEncoding.EncodeToString([]byte(gmailRaw)),
			})
		case strings.HasSuffix(r.URL.Path, "/messages/m2"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": {"code": 404, "message": "gone"}}`))
		case strings.HasSuffix(r.URL.Path, "/modify"):
			var body gmail.ModifyMessageRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			modified = append(modified, strings.Join(body.RemoveLabelIds, ","))
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "m1"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewGmailSourceWithService(svc, "", nil, zerolog.Nop()), &modified
}

func TestGmailSourceFetchUnseen(t *testing.T) {
	src, _ := newFakeGmail(t)

	mails, err := src.FetchUnseen(context.Background())
	require.NoError(t, err)
	require.Len(t, mails, 1)
	assert.Equal(t, "m1", mails[0].ID)
	assert.Equal(t, gmailRaw, string(mails[0].Raw))
}

func TestGmailSourceMarkSeen(t *testing.T) {
	src, modified := newFakeGmail(t)
	require.NoError(t, src.MarkSeen(context.Background(), "m1"))
	assert.Equal(t, []string{labelUnread}, *modified)
}

func TestDecodeRaw(t *testing.T) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding} {
		got, err := decodeRaw(enc.EncodeToString([]byte("ab?")))
		require.NoError(t, err)
		assert.Equal(t, "ab?", string(got))
	}
}
