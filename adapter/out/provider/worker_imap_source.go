package provider

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"mailparser_server/core/port/out"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// =============================================================================
// IMAP Mail Source
// =============================================================================

const (
	AuthLogin   = "LOGIN"
	AuthXOAuth2 = "XOAUTH2"

	imapDialTimeout = 30 * time.Second
	imapFetchBatch  = 50
)

// IMAPConfig holds the mailbox connection settings.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	// AuthMethod is LOGIN or XOAUTH2.
	AuthMethod string
	// TokenSource supplies bearer tokens for XOAUTH2.
	TokenSource oauth2.TokenSource
}

// IMAPSource implements out.MailSource. It keeps one connection open and
// reconnects when a NOOP fails.
type IMAPSource struct {
	cfg  IMAPConfig
	log  zerolog.Logger
	dial func(addr string) (*client.Client, error)

	mu sync.Mutex
	c  *client.Client
}

func NewIMAPSource(cfg IMAPConfig, log zerolog.Logger) *IMAPSource {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &IMAPSource{
		cfg: cfg,
		log: log.With().Str("component", "imap").Str("host", cfg.Host).Logger(),
		dial: func(addr string) (*client.Client, error) {
			dialer := &net.Dialer{Timeout: imapDialTimeout}
			return client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: cfg.Host})
		},
	}
}

func (s *IMAPSource) Name() string { return "imap" }

// FetchUnseen returns every UNSEEN message of the mailbox. Bodies are
// fetched with PEEK so messages stay unseen until MarkSeen.
func (s *IMAPSource) FetchUnseen(ctx context.Context) ([]out.FetchedMail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		s.drop()
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	var mails []out.FetchedMail
	for start := 0; start < len(uids); start += imapFetchBatch {
		end := start + imapFetchBatch
		if end > len(uids) {
			end = len(uids)
		}
		batch, err := s.fetch(c, uids[start:end])
		if err != nil {
			s.drop()
			return mails, err
		}
		mails = append(mails, batch...)
		if ctx.Err() != nil {
			return mails, ctx.Err()
		}
	}
	return mails, nil
}

func (s *IMAPSource) fetch(c *client.Client, uids []uint32) ([]out.FetchedMail, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var mails []out.FetchedMail
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			s.log.Warn().Uint32("uid", msg.Uid).Msg("server returned no body")
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			s.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("read body failed")
			continue
		}
		mails = append(mails, out.FetchedMail{ID: strconv.FormatUint(uint64(msg.Uid), 10), Raw: raw})
	}
	if err := <-done; err != nil {
		return mails, fmt.Errorf("imap fetch: %w", err)
	}
	return mails, nil
}

// MarkSeen sets \Seen on the message with the given UID.
func (s *IMAPSource) MarkSeen(ctx context.Context, id string) error {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid imap uid %q: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		s.drop()
		return fmt.Errorf("imap store: %w", err)
	}
	return nil
}

func (s *IMAPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return nil
	}
	err := s.c.Logout()
	s.c = nil
	return err
}

// conn returns a live connection, reconnecting when the old one fails a NOOP.
func (s *IMAPSource) conn(ctx context.Context) (*client.Client, error) {
	if s.c != nil {
		if err := s.c.Noop(); err == nil {
			return s.c, nil
		}
		s.log.Info().Msg("connection lost, reconnecting")
		s.drop()
	}

	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.c = c
	return c, nil
}

func (s *IMAPSource) connect(ctx context.Context) (*client.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	c, err := s.dial(addr)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}

	if err := s.authenticate(ctx, c); err != nil {
		_ = c.Logout()
		return nil, err
	}

	if _, err := c.Select(s.cfg.Mailbox, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap select %s: %w", s.cfg.Mailbox, err)
	}

	s.log.Info().Str("mailbox", s.cfg.Mailbox).Str("auth", s.cfg.AuthMethod).Msg("connected")
	return c, nil
}

func (s *IMAPSource) authenticate(ctx context.Context, c *client.Client) error {
	switch s.cfg.AuthMethod {
	case AuthXOAuth2:
		if s.cfg.TokenSource == nil {
			return errors.New("imap: XOAUTH2 needs a token source")
		}
		tok, err := s.cfg.TokenSource.Token()
		if err != nil {
			return fmt.Errorf("imap token: %w", err)
		}
		if err := c.Authenticate(newXOAuth2Client(s.cfg.Username, tok.AccessToken)); err != nil {
			return fmt.Errorf("imap XOAUTH2 auth failed: %w", err)
		}
	default:
		if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
			return fmt.Errorf("imap login failed: %w", err)
		}
	}
	return ctx.Err()
}

// drop discards the connection without a clean logout.
func (s *IMAPSource) drop() {
	if s.c != nil {
		_ = s.c.Terminate()
		s.c = nil
	}
}

var _ out.MailSource = (*IMAPSource)(nil)
