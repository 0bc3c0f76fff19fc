// Package provider implements the mailbox sources the poller reads from.
package provider

import (
	"context"
	"fmt"

	"mailparser_server/core/port/out"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// =============================================================================
// Mail Source Factory
// =============================================================================

const (
	KindIMAP  = "imap"
	KindGmail = "gmail"
	KindNone  = "none"
)

// FactoryConfig holds the settings of every supported source.
type FactoryConfig struct {
	Kind  string
	IMAP  IMAPConfig
	Gmail GmailConfig
	// Azure AD app used for XOAUTH2 when IMAP.TokenSource is unset.
	TenantID     string
	ClientID     string
	ClientSecret string
}

// NewMailSource creates the source named by cfg.Kind. "none" or "" returns
// nil without error.
func NewMailSource(ctx context.Context, cfg FactoryConfig, breaker *gobreaker.CircuitBreaker, log zerolog.Logger) (out.MailSource, error) {
	switch cfg.Kind {
	case KindIMAP:
		imapCfg := cfg.IMAP
		if imapCfg.AuthMethod == AuthXOAuth2 && imapCfg.TokenSource == nil {
			imapCfg.TokenSource = NewAzureTokenSource(ctx, cfg.TenantID, cfg.ClientID, cfg.ClientSecret)
		}
		return NewIMAPSource(imapCfg, log), nil
	case KindGmail:
		return NewGmailSource(ctx, cfg.Gmail, breaker, log)
	case KindNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported mail source: %s", cfg.Kind)
	}
}
