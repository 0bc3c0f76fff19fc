package worker

import (
	"context"
	"errors"
	"time"

	"mailparser_server/core/port/out"
	"mailparser_server/pkg/metrics"

	"github.com/rs/zerolog"
)

// =============================================================================
// MailboxPoller - 메일함 폴링 (UNSEEN -> parse_email 작업)
// =============================================================================

const (
	DefaultPollInterval  = 15 * time.Second
	DefaultFetchAttempts = 5
	maxReconnectDelay    = 30 * time.Second
)

var ErrPoolStopped = errors.New("worker pool stopped")

// Enqueuer accepts parse jobs. Both the Redis stream producer and the
// local pool implement it.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *Message) error
}

// Enqueue submits msg straight to the pool.
func (p *Pool) Enqueue(_ context.Context, msg *Message) error {
	if !p.Submit(msg) {
		return ErrPoolStopped
	}
	return nil
}

// PollerConfig holds poller settings.
type PollerConfig struct {
	Interval      time.Duration
	FetchAttempts int
}

// MailboxPoller lists unseen mail on every tick and queues a parse job per
// message not seen before.
type MailboxPoller struct {
	source out.MailSource
	seen   out.SeenStore
	queue  Enqueuer

	interval      time.Duration
	fetchAttempts int
	sleep         func(ctx context.Context, d time.Duration) error

	prom *metrics.Metrics
	log  zerolog.Logger
}

// NewMailboxPoller creates a poller. seen may be nil, in which case
// deduplication relies on the mailbox's own seen flag.
func NewMailboxPoller(source out.MailSource, seen out.SeenStore, queue Enqueuer, cfg PollerConfig, log zerolog.Logger) *MailboxPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = DefaultFetchAttempts
	}
	return &MailboxPoller{
		source:        source,
		seen:          seen,
		queue:         queue,
		interval:      cfg.Interval,
		fetchAttempts: cfg.FetchAttempts,
		sleep:         sleepCtx,
		prom:          metrics.Get(),
		log:           log.With().Str("component", "mailbox_poller").Str("source", source.Name()).Logger(),
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *MailboxPoller) Run(ctx context.Context) error {
	p.log.Info().Dur("interval", p.interval).Msg("starting mailbox poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if n, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error().Err(err).Msg("poll failed")
		} else if n > 0 {
			p.log.Info().Int("queued", n).Msg("queued new messages")
		}

		select {
		case <-ctx.Done():
			p.log.Info().Msg("mailbox poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce fetches unseen mail and queues new messages. It returns the
// number of queued jobs.
func (p *MailboxPoller) PollOnce(ctx context.Context) (int, error) {
	mails, err := p.fetchWithRetry(ctx)
	if err != nil {
		return 0, err
	}
	p.prom.FetchedTotal.WithLabelValues(p.source.Name()).Add(float64(len(mails)))

	queued := 0
	for _, m := range mails {
		if ctx.Err() != nil {
			return queued, ctx.Err()
		}

		if p.seen != nil {
			isNew, err := p.seen.MarkIfNew(ctx, p.source.Name(), m.ID)
			if err != nil {
				p.log.Warn().Err(err).Str("id", m.ID).Msg("seen store unavailable, queuing anyway")
			} else if !isNew {
				p.markSeen(ctx, m.ID)
				continue
			}
		}

		msg := NewParseMessage(p.source.Name(), m.ID, m.Raw)
		if err := p.queue.Enqueue(ctx, msg); err != nil {
			p.log.Error().Err(err).Str("id", m.ID).Msg("failed to queue message")
			if p.seen != nil {
				if ferr := p.seen.Forget(ctx, p.source.Name(), m.ID); ferr != nil {
					p.log.Warn().Err(ferr).Str("id", m.ID).Msg("failed to reset seen flag")
				}
			}
			continue
		}

		p.markSeen(ctx, m.ID)
		queued++
	}
	return queued, nil
}

func (p *MailboxPoller) markSeen(ctx context.Context, id string) {
	if err := p.source.MarkSeen(ctx, id); err != nil {
		p.log.Warn().Err(err).Str("id", id).Msg("failed to mark message seen")
	}
}

// fetchWithRetry retries a failing fetch, sleeping min(2^i, 30) seconds
// between attempts.
func (p *MailboxPoller) fetchWithRetry(ctx context.Context) ([]out.FetchedMail, error) {
	var lastErr error
	for i := 0; i < p.fetchAttempts; i++ {
		mails, err := p.source.FetchUnseen(ctx)
		if err == nil {
			return mails, nil
		}
		lastErr = err

		if i == p.fetchAttempts-1 {
			break
		}
		delay := ReconnectDelay(i)
		p.log.Warn().Err(err).Int("attempt", i+1).Dur("retry_in", delay).Msg("mailbox fetch failed")
		if err := p.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// ReconnectDelay is min(2^attempt, 30) seconds.
func ReconnectDelay(attempt int) time.Duration {
	if attempt >= 5 {
		return maxReconnectDelay
	}
	d := time.Duration(1<<attempt) * time.Second
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
