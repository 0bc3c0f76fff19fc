package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"mailparser_server/adapter/in/worker"
	"mailparser_server/adapter/out/messaging"
	"mailparser_server/adapter/out/provider"
	"mailparser_server/config"
	"mailparser_server/core/port/out"
	"mailparser_server/internal/stream"
	"mailparser_server/pkg/logger"
	"mailparser_server/pkg/metrics"
	"mailparser_server/pkg/resilience"

	"github.com/rs/zerolog"
)

// Worker runs the parse pool, the stream consumer and the mailbox poller.
type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	poller   *worker.MailboxPoller
	source   out.MailSource
	groups   *stream.RedisStream
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

func NewWorker(ctx context.Context, cfg *config.Config, deps *Dependencies) (*Worker, error) {
	zlog := deps.Log.Component("worker")

	var producer *stream.Producer
	if deps.Producer != nil {
		producer = stream.NewProducer(deps.Producer, cfg.ParseStream)
	}

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerCount > 0 {
		poolConfig.Workers = cfg.WorkerCount
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.WorkerChanSize = cfg.WorkerQueueSize
	}
	if cfg.JobTimeout > 0 {
		poolConfig.JobTimeout = cfg.JobTimeout
		poolConfig.JobTimeoutByType[worker.JobParseEmail] = cfg.JobTimeout
	}
	poolConfig.MaxRetries = cfg.JobMaxRetries
	if producer != nil {
		poolConfig.OnDeadLetter = func(msg *worker.Message, cause error) {
			dlqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := producer.DeadLetter(dlqCtx, msg, cause); err != nil {
				zlog.Error().Err(err).Str("job_id", msg.ID).Msg("failed to publish dead letter")
			}
		}
	}

	handler := worker.NewHandler(worker.NewParseProcessor(deps.Service))
	pool := worker.NewPool(handler, poolConfig, zlog)

	wctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:   pool,
		deps:   deps,
		ctx:    wctx,
		cancel: cancel,
		zlog:   zlog,
	}

	// The poller feeds the Redis stream when available so several workers
	// share one mailbox; otherwise it submits straight to the pool.
	var queue worker.Enqueuer = pool
	if deps.Redis != nil {
		queue = producer
		w.groups = stream.NewRedisStream(deps.Redis, cfg.ConsumerGroup)
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:     cfg.ConsumerGroup,
			Consumer:  cfg.WorkerID,
			Streams:   []string{cfg.ParseStream},
			Handler:   stream.NewConsumer(pool),
			Logger:    zlog,
			BatchSize: int64(cfg.ConsumerBatchSize),
			Block:     time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
		})
		logger.Info("Redis Stream Consumer configured for %s", cfg.ParseStream)
	} else {
		logger.Warn("Redis not available, mailbox jobs go straight to the local pool")
	}

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("mailbox"), zlog, metrics.Get().BreakerListener)
	source, err := provider.NewMailSource(ctx, mailSourceConfig(cfg), breaker, deps.Log.Component("mailbox"))
	if err != nil {
		cancel()
		return nil, err
	}
	if source != nil {
		var seen out.SeenStore
		if deps.Seen != nil {
			seen = deps.Seen
		}
		w.source = source
		w.poller = worker.NewMailboxPoller(source, seen, queue, worker.PollerConfig{Interval: cfg.PollInterval}, zlog)
	} else {
		logger.Info("No mailbox configured (MAIL_SOURCE=%s), worker only consumes queued jobs", cfg.MailSource)
	}

	return w, nil
}

func mailSourceConfig(cfg *config.Config) provider.FactoryConfig {
	return provider.FactoryConfig{
		Kind: cfg.MailSource,
		IMAP: provider.IMAPConfig{
			Host:       cfg.IMAPHost,
			Port:       cfg.IMAPPort,
			Username:   cfg.IMAPUser,
			Password:   cfg.IMAPPassword,
			Mailbox:    cfg.IMAPMailbox,
			AuthMethod: cfg.AuthMethod,
		},
		Gmail: provider.GmailConfig{
			CredentialsJSON: []byte(cfg.GmailCredentialsJSON),
			TokenJSON:       []byte(cfg.GmailTokenJSON),
			User:            cfg.GmailUser,
		},
		TenantID:     cfg.TenantID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}
}

// Start runs until Stop is called.
func (w *Worker) Start() error {
	if err := w.pool.Start(); err != nil {
		return err
	}

	if w.groups != nil {
		if err := w.groups.CreateGroup(w.ctx, w.deps.Config.ParseStream); err != nil {
			w.zlog.Warn().Err(err).Msg("failed to create consumer group")
		}
	}

	// Redis Stream Consumer 시작 (있을 경우)
	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.zlog.Info().Msg("Starting Redis Stream Consumer...")
			if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("Redis Stream Consumer error")
			}
		}()
	}

	if w.poller != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.poller.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("Mailbox poller error")
			}
		}()
	}

	<-w.ctx.Done()
	return nil
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.pool.Stop()

	if w.source != nil {
		if err := w.source.Close(); err != nil {
			w.zlog.Warn().Err(err).Msg("failed to close mailbox")
		}
	}
}

// Stats returns the pool counters.
func (w *Worker) Stats() worker.PoolStats {
	return w.pool.Stats()
}
