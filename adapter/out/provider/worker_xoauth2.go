package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

// =============================================================================
// XOAUTH2 (Exchange Online IMAP)
// =============================================================================

const (
	// OutlookIMAPScope is the client-credentials scope for Exchange Online IMAP.
	OutlookIMAPScope = "https://outlook.office365.com/.default"

	// tokenRefreshSkew renews the token this long before it expires.
	tokenRefreshSkew = 60 * time.Second
)

// NewAzureTokenSource returns a cached client-credentials token source for
// the tenant. Tokens are renewed 60s before expiry.
func NewAzureTokenSource(ctx context.Context, tenantID, clientID, clientSecret string) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     microsoft.AzureADEndpoint(tenantID).TokenURL,
		Scopes:       []string{OutlookIMAPScope},
	}
	return oauth2.ReuseTokenSourceWithExpiry(nil, cfg.TokenSource(ctx), tokenRefreshSkew)
}

// xoauth2Client implements sasl.Client for the XOAUTH2 mechanism.
type xoauth2Client struct {
	username string
	token    string
}

func newXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.username, c.token)
	return "XOAUTH2", []byte(ir), nil
}

// Next answers a server error challenge with an empty response so the
// server can finish with a tagged NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
