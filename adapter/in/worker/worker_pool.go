package worker

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/metrics"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// =============================================================================
// go-pkgz/pool 기반 Worker Pool
// =============================================================================

// JobProcessor handles one message. *Handler implements it.
type JobProcessor interface {
	Process(ctx context.Context, msg *Message) error
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers          int                       // 워커 수
	BatchSize        int                       // 배치 처리 크기
	WorkerChanSize   int                       // 워커 채널 버퍼 크기
	JobTimeout       time.Duration             // 작업 타임아웃
	JobTimeoutByType map[JobType]time.Duration // 작업 유형별 타임아웃
	MaxRetries       int                       // 최대 재시도 횟수
	BackoffBase      time.Duration             // base * 2^retries + jitter
	DLQSize          int

	// OnDeadLetter receives jobs that exhausted their retries.
	OnDeadLetter func(msg *Message, err error)
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        4,
		BatchSize:      1,
		WorkerChanSize: 100,
		JobTimeout:     2 * time.Minute,
		JobTimeoutByType: map[JobType]time.Duration{
			JobParseEmail: 2 * time.Minute, // LLM + 웹 요약 포함
		},
		MaxRetries:  3,
		BackoffBase: time.Second,
		DLQSize:     100,
	}
}

// Pool runs jobs on a go-pkgz/pool worker group with retry and a DLQ.
type Pool struct {
	handler JobProcessor
	config  *PoolConfig

	pool *pool.WorkerGroup[*Message]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	stats *PoolStats
	prom  *metrics.Metrics
	log   zerolog.Logger

	// Dead Letter Queue
	dlq   chan deadLetter
	dlqWg sync.WaitGroup

	// retries scheduled with time.AfterFunc
	pendingRetries sync.WaitGroup

	started bool
	mu      sync.Mutex
}

type deadLetter struct {
	msg *Message
	err error
}

// PoolStats holds pool counters.
type PoolStats struct {
	JobsProcessed  int64
	JobsFailed     int64
	JobsDropped    int64
	JobsRetried    int64
	AvgProcessTime int64 // milliseconds
	QueueSize      int32
}

// messageWorker implements pool.Worker interface for Message processing.
type messageWorker struct {
	pool *Pool
}

// Do implements pool.Worker interface.
func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

// NewPool creates a new worker pool.
func NewPool(handler JobProcessor, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = time.Second
	}
	if config.DLQSize <= 0 {
		config.DLQSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		handler: handler,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		stats:   &PoolStats{},
		prom:    metrics.Get(),
		log:     log.With().Str("component", "worker_pool").Logger(),
		dlq:     make(chan deadLetter, config.DLQSize),
	}
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.pool = pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithBatchSize(p.config.BatchSize).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()

	if err := p.pool.Go(p.ctx); err != nil {
		p.log.Error().Err(err).Msg("failed to start pool")
		return err
	}
	p.started = true

	p.dlqWg.Add(1)
	go p.dlqProcessor()

	go p.metricsReporter()

	p.log.Info().
		Int("workers", p.config.Workers).
		Int("max_retries", p.config.MaxRetries).
		Dur("job_timeout", p.config.JobTimeout).
		Msg("worker pool started")
	return nil
}

// Stop waits for queued jobs, then shuts the pool down.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool...")

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()

	if err := p.pool.Close(closeCtx); err != nil {
		p.log.Warn().Err(err).Msg("error closing pool")
	}

	p.cancel()
	p.pendingRetries.Wait()

	close(p.dlq)
	p.dlqWg.Wait()

	p.log.Info().
		Int64("processed", atomic.LoadInt64(&p.stats.JobsProcessed)).
		Int64("failed", atomic.LoadInt64(&p.stats.JobsFailed)).
		Msg("worker pool stopped")
}

// Submit submits a job to the pool. It returns false once the pool stopped.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.pool == nil {
		atomic.AddInt64(&p.stats.JobsDropped, 1)
		p.prom.JobsTotal.WithLabelValues(msg.Type, "dropped").Inc()
		return false
	}

	p.pool.Submit(msg)
	atomic.AddInt32(&p.stats.QueueSize, 1)
	p.prom.QueueDepth.Inc()
	return true
}

// getJobTimeout returns the timeout for a job type.
func (p *Pool) getJobTimeout(jobType JobType) time.Duration {
	if timeout, ok := p.config.JobTimeoutByType[jobType]; ok {
		return timeout
	}
	return p.config.JobTimeout
}

// processJob processes a single job with timeout.
func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()
	defer func() {
		atomic.AddInt32(&p.stats.QueueSize, -1)
		p.prom.QueueDepth.Dec()
	}()

	timeout := p.getJobTimeout(msg.Type)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.handler.Process(jobCtx, msg)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-jobCtx.Done():
		err = jobCtx.Err()
		if err == context.DeadlineExceeded {
			p.log.Warn().
				Str("job_id", msg.ID).
				Str("job_type", msg.Type).
				Dur("timeout", timeout).
				Msg("job timed out")
		}
	}

	p.updateAvgProcessTime(time.Since(start).Milliseconds())

	if err == nil {
		atomic.AddInt64(&p.stats.JobsProcessed, 1)
		p.prom.JobsTotal.WithLabelValues(msg.Type, "ok").Inc()
		return nil
	}

	p.log.Error().
		Err(err).
		Str("job_id", msg.ID).
		Str("job_type", msg.Type).
		Int("retries", msg.Retries).
		Msg("job processing failed")

	if !isPermanent(err) && msg.Retries < p.config.MaxRetries {
		p.scheduleRetry(msg)
		return err
	}

	atomic.AddInt64(&p.stats.JobsFailed, 1)
	p.prom.JobsTotal.WithLabelValues(msg.Type, "failed").Inc()
	select {
	case p.dlq <- deadLetter{msg: msg, err: err}:
	default:
		p.log.Error().Str("job_id", msg.ID).Msg("DLQ full, job lost")
	}
	return err
}

// scheduleRetry resubmits msg after base * 2^retries plus up to 500ms jitter.
func (p *Pool) scheduleRetry(msg *Message) {
	msg.Retries++
	atomic.AddInt64(&p.stats.JobsRetried, 1)
	p.prom.JobsTotal.WithLabelValues(msg.Type, "retried").Inc()

	backoff := p.backoff(msg.Retries)

	p.pendingRetries.Add(1)
	time.AfterFunc(backoff, func() {
		defer p.pendingRetries.Done()
		if p.ctx.Err() != nil {
			p.toDeadLetter(msg, p.ctx.Err())
			return
		}
		if !p.Submit(msg) {
			p.toDeadLetter(msg, context.Canceled)
		}
	})
}

func (p *Pool) backoff(retries int) time.Duration {
	base := p.config.BackoffBase * time.Duration(1<<retries)
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	return base + jitter
}

func (p *Pool) toDeadLetter(msg *Message, err error) {
	if p.config.OnDeadLetter != nil {
		p.config.OnDeadLetter(msg, err)
		return
	}
	p.log.Error().Str("job_id", msg.ID).Err(err).Msg("DLQ: job lost during shutdown")
}

// isPermanent reports errors a retry cannot fix, such as undecodable input.
func isPermanent(err error) bool {
	if !apperr.IsAppError(err) {
		return false
	}
	status := apperr.GetHTTPStatus(err)
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

// updateAvgProcessTime updates the average processing time.
func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := atomic.LoadInt64(&p.stats.AvgProcessTime)
	if current == 0 {
		atomic.StoreInt64(&p.stats.AvgProcessTime, elapsed)
	} else {
		atomic.StoreInt64(&p.stats.AvgProcessTime, (current*9+elapsed)/10)
	}
}

// dlqProcessor hands permanently failed jobs to OnDeadLetter.
func (p *Pool) dlqProcessor() {
	defer p.dlqWg.Done()

	for dl := range p.dlq {
		p.log.Error().
			Err(dl.err).
			Str("job_id", dl.msg.ID).
			Str("job_type", dl.msg.Type).
			Int("retries", dl.msg.Retries).
			Msg("DLQ: job permanently failed")

		if p.config.OnDeadLetter != nil {
			p.config.OnDeadLetter(dl.msg, dl.err)
		}
	}
}

// metricsReporter periodically logs counters.
func (p *Pool) metricsReporter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			s := p.Stats()
			p.log.Info().
				Int64("processed", s.JobsProcessed).
				Int64("failed", s.JobsFailed).
				Int64("dropped", s.JobsDropped).
				Int64("retried", s.JobsRetried).
				Int64("avg_process_ms", s.AvgProcessTime).
				Int32("queue_size", s.QueueSize).
				Msg("worker pool metrics")
		}
	}
}

// Stats returns current pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		JobsProcessed:  atomic.LoadInt64(&p.stats.JobsProcessed),
		JobsFailed:     atomic.LoadInt64(&p.stats.JobsFailed),
		JobsDropped:    atomic.LoadInt64(&p.stats.JobsDropped),
		JobsRetried:    atomic.LoadInt64(&p.stats.JobsRetried),
		AvgProcessTime: atomic.LoadInt64(&p.stats.AvgProcessTime),
		QueueSize:      atomic.LoadInt32(&p.stats.QueueSize),
	}
}
