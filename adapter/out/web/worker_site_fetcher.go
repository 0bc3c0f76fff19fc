// Package web fetches sender company websites.
package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"mailparser_server/core/port/out"
	"mailparser_server/pkg/httputil"
	"mailparser_server/pkg/resilience"

	"github.com/sony/gobreaker"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; mailparser/1.0)"
	maxPageBytes     = 2 << 20
)

// SiteFetcher implements out.SiteFetcher over HTTP.
type SiteFetcher struct {
	client  *http.Client
	header  http.Header
	breaker *gobreaker.CircuitBreaker
}

// NewSiteFetcher creates a fetcher with a per-request timeout. breaker may be nil.
func NewSiteFetcher(timeout time.Duration, breaker *gobreaker.CircuitBreaker) *SiteFetcher {
	return NewSiteFetcherWithClient(httputil.NewOptimizedClient(httputil.WebClientConfig(timeout)), breaker)
}

func NewSiteFetcherWithClient(client *http.Client, breaker *gobreaker.CircuitBreaker) *SiteFetcher {
	h := http.Header{}
	h.Set("User-Agent", defaultUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml")
	h.Set("Accept-Language", "de,en;q=0.8")
	return &SiteFetcher{client: client, header: h, breaker: breaker}
}

// Fetch returns the page body as text.
func (f *SiteFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	body, err := resilience.Execute(f.breaker, func() ([]byte, error) {
		return httputil.GetBody(ctx, f.client, url, f.header, maxPageBytes)
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

var _ out.SiteFetcher = (*SiteFetcher)(nil)
