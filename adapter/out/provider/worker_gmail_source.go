package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"mailparser_server/core/port/out"
	"mailparser_server/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// =============================================================================
// Gmail Mail Source
// =============================================================================

const (
	gmailUnreadQuery = "is:unread in:inbox"
	gmailPageSize    = 100
	labelUnread      = "UNREAD"

	gmailFetchConcurrency = 5
)

// GmailConfig holds the installed-app credentials and a stored token.
type GmailConfig struct {
	// CredentialsJSON is the OAuth client file downloaded from Google Cloud.
	CredentialsJSON []byte
	// TokenJSON is a previously authorized oauth2.Token.
	TokenJSON []byte
	// User is the mailbox, "me" for the token owner.
	User string
}

// GmailSource implements out.MailSource over the Gmail API.
type GmailSource struct {
	svc     *gmail.Service
	user    string
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewGmailSource builds the Gmail client from the stored credentials. The
// token refreshes itself through the credentials' token endpoint.
func NewGmailSource(ctx context.Context, cfg GmailConfig, breaker *gobreaker.CircuitBreaker, log zerolog.Logger) (*GmailSource, error) {
	oauthCfg, err := google.ConfigFromJSON(cfg.CredentialsJSON, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("gmail credentials: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(cfg.TokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("gmail token: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return NewGmailSourceWithService(svc, cfg.User, breaker, log), nil
}

// NewGmailSourceWithService wraps an existing service.
func NewGmailSourceWithService(svc *gmail.Service, user string, breaker *gobreaker.CircuitBreaker, log zerolog.Logger) *GmailSource {
	if user == "" {
		user = "me"
	}
	return &GmailSource{
		svc:     svc,
		user:    user,
		breaker: breaker,
		log:     log.With().Str("component", "gmail").Logger(),
	}
}

func (s *GmailSource) Name() string { return "gmail" }

// FetchUnseen lists unread inbox messages and downloads each in raw form.
func (s *GmailSource) FetchUnseen(ctx context.Context) ([]out.FetchedMail, error) {
	var ids []string
	pageToken := ""
	for {
		call := s.svc.Users.Messages.List(s.user).Q(gmailUnreadQuery).MaxResults(gmailPageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := resilience.Execute(s.breaker, func() (*gmail.ListMessagesResponse, error) {
			return call.Do()
		})
		if err != nil {
			return nil, fmt.Errorf("gmail list: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	// Raw downloads run in parallel; failed ones are logged and dropped.
	fetched := make([]*out.FetchedMail, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gmailFetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			get := s.svc.Users.Messages.Get(s.user, id).Format("raw").Context(gctx)
			msg, err := resilience.Execute(s.breaker, func() (*gmail.Message, error) {
				return get.Do()
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn().Err(err).Str("id", id).Msg("fetch raw message failed")
				return nil
			}
			raw, err := decodeRaw(msg.Raw)
			if err != nil {
				s.log.Warn().Err(err).Str("id", id).Msg("decode raw message failed")
				return nil
			}
			fetched[i] = &out.FetchedMail{ID: id, Raw: raw}
			return nil
		})
	}
	err := g.Wait()

	mails := make([]out.FetchedMail, 0, len(ids))
	for _, m := range fetched {
		if m != nil {
			mails = append(mails, *m)
		}
	}
	return mails, err
}

// MarkSeen removes the UNREAD label.
func (s *GmailSource) MarkSeen(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{labelUnread}}
	call := s.svc.Users.Messages.Modify(s.user, id, req).Context(ctx)
	_, err := resilience.Execute(s.breaker, func() (*gmail.Message, error) {
		return call.Do()
	})
	if err != nil {
		return fmt.Errorf("gmail modify: %w", err)
	}
	return nil
}

func (s *GmailSource) Close() error { return nil }

// decodeRaw accepts padded and unpadded base64url.
func decodeRaw(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	return base64.RawURLEncoding.DecodeString(s)
}

var _ out.MailSource = (*GmailSource)(nil)
