package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
	"mailparser_server/pkg/apperr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Pool
// =============================================================================

type funcProcessor func(ctx context.Context, msg *Message) error

func (f funcProcessor) Process(ctx context.Context, msg *Message) error { return f(ctx, msg) }

func testPoolConfig(onDead func(*Message, error)) *PoolConfig {
	cfg := DefaultPoolConfig()
	cfg.Workers = 2
	cfg.MaxRetries = 2
	cfg.BackoffBase = time.Millisecond
	cfg.OnDeadLetter = onDead
	return cfg
}

func TestPoolProcessesJobs(t *testing.T) {
	var done sync.WaitGroup
	var count int32
	p := NewPool(funcProcessor(func(context.Context, *Message) error {
		atomic.AddInt32(&count, 1)
		done.Done()
		return nil
	}), testPoolConfig(nil), zerolog.Nop())
	require.NoError(t, p.Start())

	done.Add(3)
	for i := 0; i < 3; i++ {
		assert.True(t, p.Submit(NewMessage(JobParseEmail, nil)))
	}
	done.Wait()
	p.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&count))
	assert.Equal(t, int64(3), p.Stats().JobsProcessed)
	assert.False(t, p.Submit(NewMessage(JobParseEmail, nil)))
}

func TestPoolRetriesThenDeadLetters(t *testing.T) {
	var attempts int32
	dead := make(chan *Message, 1)

	p := NewPool(funcProcessor(func(context.Context, *Message) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("mongo timeout")
	}), testPoolConfig(func(m *Message, _ error) { dead <- m }), zerolog.Nop())
	require.NoError(t, p.Start())
	defer p.Stop()

	require.True(t, p.Submit(NewMessage(JobParseEmail, nil)))

	select {
	case m := <-dead:
		assert.Equal(t, 2, m.Retries)
	case <-time.After(10 * time.Second):
		t.Fatal("job never reached the DLQ")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, int64(2), p.Stats().JobsRetried)
}

func TestPoolPermanentErrorSkipsRetry(t *testing.T) {
	var attempts int32
	dead := make(chan error, 1)

	p := NewPool(funcProcessor(func(context.Context, *Message) error {
		atomic.AddInt32(&attempts, 1)
		return apperr.ParseFailed("eml", errors.New("garbage"))
	}), testPoolConfig(func(_ *Message, err error) { dead <- err }), zerolog.Nop())
	require.NoError(t, p.Start())
	defer p.Stop()

	require.True(t, p.Submit(NewMessage(JobParseEmail, nil)))

	select {
	case err := <-dead:
		assert.True(t, apperr.HasCode(err, apperr.CodeParseFailed))
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached the DLQ")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestPoolJobTimeout(t *testing.T) {
	dead := make(chan error, 1)
	cfg := testPoolConfig(func(_ *Message, err error) { dead <- err })
	cfg.MaxRetries = 0
	cfg.JobTimeoutByType = map[JobType]time.Duration{JobParseEmail: 20 * time.Millisecond}

	p := NewPool(funcProcessor(func(ctx context.Context, _ *Message) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	}), cfg, zerolog.Nop())
	require.NoError(t, p.Start())
	defer p.Stop()

	require.True(t, p.Submit(NewMessage(JobParseEmail, nil)))
	select {
	case err := <-dead:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout not reported")
	}
}

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReconnectDelay(tt.attempt))
	}
}

// =============================================================================
// Processor
// =============================================================================

type stubParseService struct {
	raw      []byte
	source   domain.MailSource
	sourceID string
	err      error
}

func (s *stubParseService) HandleRaw(_ context.Context, raw []byte, source domain.MailSource, sourceID string) (*domain.ProcessedEmail, error) {
	s.raw, s.source, s.sourceID = raw, source, sourceID
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ProcessedEmail{
		Extraction: &domain.ExtractionResult{ExtractedBy: domain.MethodDirectEmail},
		Intention:  &domain.IntentResult{Intent: domain.IntentRequest},
	}, nil
}

func (s *stubParseService) HandleEmail(context.Context, *domain.ParsedEmail) (*domain.ProcessedEmail, error) {
	return nil, nil
}

func (s *stubParseService) Extract(context.Context, string) *domain.ExtractionResult { return nil }

func (s *stubParseService) ClassifyIntent(context.Context, string, string) *domain.IntentResult {
	return nil
}

func (s *stubParseService) Get(context.Context, string) (*domain.ProcessedEmail, error) {
	return nil, nil
}

func TestHandlerParseEmail(t *testing.T) {
	svc := &stubParseService{}
	h := NewHandler(NewParseProcessor(svc))

	msg := NewParseMessage("imap", "42", []byte("Subject: hi\r\n\r\nbody"))
	require.NoError(t, h.Process(context.Background(), msg))
	assert.Equal(t, []byte("Subject: hi\r\n\r\nbody"), svc.raw)
	assert.Equal(t, domain.SourceIMAP, svc.source)
	assert.Equal(t, "42", svc.sourceID)

	// unknown job types are ignored
	assert.NoError(t, h.Process(context.Background(), NewMessage("unknown", nil)))

	err := h.Process(context.Background(), NewMessage(JobParseEmail, map[string]any{"source": "imap"}))
	assert.True(t, apperr.HasCode(err, apperr.CodeMissingField))
}

func TestParsePayloadRoundTripsBase64(t *testing.T) {
	// Payloads read back from Redis carry raw as a base64 string.
	msg := &Message{Type: JobParseEmail, Payload: map[string]any{
		"source": "gmail",
		"raw":    "SGVsbG8=",
	}}
	p, err := ParsePayload[ParseEmailPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), p.Raw)
}

// =============================================================================
// Poller
// =============================================================================

type fakeSource struct {
	mu       sync.Mutex
	mails    []out.FetchedMail
	failures int
	marked   []string
}

func (f *fakeSource) Name() string { return "imap" }

func (f *fakeSource) FetchUnseen(context.Context) ([]out.FetchedMail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return f.mails, nil
}

func (f *fakeSource) MarkSeen(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeSource) Close() error { return nil }

type memSeen struct {
	ids    map[string]bool
	forgot []string
}

func (s *memSeen) MarkIfNew(_ context.Context, source, id string) (bool, error) {
	key := source + ":" + id
	if s.ids[key] {
		return false, nil
	}
	s.ids[key] = true
	return true, nil
}

func (s *memSeen) Forget(_ context.Context, source, id string) error {
	delete(s.ids, source+":"+id)
	s.forgot = append(s.forgot, id)
	return nil
}

type recordingQueue struct {
	msgs []*Message
	fail bool
}

func (q *recordingQueue) Enqueue(_ context.Context, msg *Message) error {
	if q.fail {
		return errors.New("redis down")
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func newTestPoller(src *fakeSource, seen out.SeenStore, q Enqueuer) (*MailboxPoller, *[]time.Duration) {
	p := NewMailboxPoller(src, seen, q, PollerConfig{Interval: time.Hour}, zerolog.Nop())
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestPollerQueuesNewMessagesOnce(t *testing.T) {
	src := &fakeSource{mails: []out.FetchedMail{{ID: "1", Raw: []byte("a")}, {ID: "2", Raw: []byte("b")}}}
	seen := &memSeen{ids: map[string]bool{"imap:2": true}}
	q := &recordingQueue{}
	p, _ := newTestPoller(src, seen, q)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, q.msgs, 1)
	assert.Equal(t, JobParseEmail, q.msgs[0].Type)
	assert.Equal(t, "1", q.msgs[0].Payload["source_id"])
	assert.ElementsMatch(t, []string{"1", "2"}, src.marked)

	n, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPollerForgetsOnEnqueueFailure(t *testing.T) {
	src := &fakeSource{mails: []out.FetchedMail{{ID: "7", Raw: []byte("x")}}}
	seen := &memSeen{ids: map[string]bool{}}
	p, _ := newTestPoller(src, seen, &recordingQueue{fail: true})

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"7"}, seen.forgot)
	assert.Empty(t, src.marked)
}

func TestPollerRetriesFetchWithBackoff(t *testing.T) {
	src := &fakeSource{failures: 3, mails: []out.FetchedMail{{ID: "1", Raw: []byte("a")}}}
	q := &recordingQueue{}
	p, slept := newTestPoller(src, nil, q)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *slept)
}

func TestPollerGivesUpAfterFiveAttempts(t *testing.T) {
	src := &fakeSource{failures: 10}
	p, slept := newTestPoller(src, nil, &recordingQueue{})

	_, err := p.PollOnce(context.Background())
	assert.Error(t, err)
	assert.Len(t, *slept, 4)
	assert.Equal(t, 5, 10-src.failures)
}
