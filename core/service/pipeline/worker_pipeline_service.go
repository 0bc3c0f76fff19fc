// Package pipeline runs the full triage of one email: extraction, intent,
// enrichment, CRM lookup and persistence.
package pipeline

import (
	"context"
	"strings"
	"time"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/in"
	"mailparser_server/core/port/out"
	"mailparser_server/core/service/bodyparse"
	"mailparser_server/core/service/classification"
	"mailparser_server/core/service/enrichment"
	"mailparser_server/core/service/extraction"
	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/logger"
	"mailparser_server/pkg/metrics"

	"github.com/google/uuid"
)

var _ in.ParseService = (*Service)(nil)

// Deps wires the pipeline. Only Extractor and Intent are required.
type Deps struct {
	Extractor *extraction.Extractor
	Intent    *classification.ScorePipeline
	Signature *enrichment.SignatureReader
	Web       *enrichment.WebSummarizer
	CRM       out.CRMDirectory

	Archive  out.EmailArchive
	Contacts out.ContactRepository
	Graph    out.ContactGraph

	Log *logger.Logger
}

type Service struct {
	extractor *extraction.Extractor
	intent    *classification.ScorePipeline
	signature *enrichment.SignatureReader
	web       *enrichment.WebSummarizer
	crm       out.CRMDirectory

	archive  out.EmailArchive
	contacts out.ContactRepository
	graph    out.ContactGraph

	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(d Deps) *Service {
	if d.Extractor == nil {
		d.Extractor = extraction.NewExtractor(nil, nil)
	}
	if d.Intent == nil {
		d.Intent = classification.NewScorePipeline(nil, nil)
	}
	if d.Log == nil {
		d.Log = logger.Default()
	}
	return &Service{
		extractor: d.Extractor,
		intent:    d.Intent,
		signature: d.Signature,
		web:       d.Web,
		crm:       d.CRM,
		archive:   d.Archive,
		contacts:  d.Contacts,
		graph:     d.Graph,
		log:       d.Log.WithField("component", "pipeline"),
		metrics:   metrics.Get(),
		now:       time.Now,
	}
}

// =============================================================================
// Use cases
// =============================================================================

func (s *Service) HandleRaw(ctx context.Context, raw []byte, source domain.MailSource, sourceID string) (*domain.ProcessedEmail, error) {
	if len(raw) == 0 {
		return nil, apperr.MissingField("body")
	}

	email, err := bodyparse.ReadEML(raw)
	if err != nil {
		s.metrics.ParsedTotal.WithLabelValues(sourceLabel(source), "decode_error").Inc()
		return nil, err
	}
	email.Source = source
	email.SourceID = sourceID

	return s.HandleEmail(ctx, email)
}

// HandleEmail runs every step in order. Optional steps that fail are logged
// and left out of the result.
func (s *Service) HandleEmail(ctx context.Context, email *domain.ParsedEmail) (*domain.ProcessedEmail, error) {
	if email == nil {
		return nil, apperr.MissingField("email")
	}
	start := s.now()

	body := email.Body()
	plain := email.Plain
	if strings.TrimSpace(plain) == "" {
		plain = bodyparse.VisibleText(email.HTML)
	}

	result := &domain.ProcessedEmail{
		ID:       uuid.New(),
		Meta:     email.Meta,
		Source:   email.Source,
		SourceID: email.SourceID,
	}

	// 1. extraction
	stepStart := s.now()
	result.Extraction = s.extractor.Extract(plain)
	s.metrics.ObserveStep("extraction", stepStart)
	s.metrics.ExtractionsTotal.WithLabelValues(string(result.Extraction.ExtractedBy)).Inc()

	// 2. header guesses
	result.Person = enrichment.GuessPerson(email.Meta)
	result.Company = enrichment.GuessCompany(email.Meta)

	// 3. intent
	stepStart = s.now()
	result.Intention = s.classify(ctx, email.Meta.Subject, plain)
	s.metrics.ObserveStep("intent", stepStart)

	// 4. body window + LLM signature
	result.BodyWindow = bodyparse.BodyWindow(body)
	if s.signature != nil && result.BodyWindow != nil && strings.TrimSpace(result.BodyWindow.Text) != "" {
		stepStart = s.now()
		info, err := s.signature.Read(ctx, result.BodyWindow.Text, email.Meta.From)
		if err != nil {
			s.log.WithError(err).Warn("signature parse skipped for %s", email.Meta.MessageID)
		} else {
			result.Signature = info
		}
		s.metrics.ObserveStep("signature", stepStart)
	}

	// 5. website summary
	if s.web != nil {
		s.summarizeWebsite(ctx, result)
	}

	// 6. CRM lookup
	if s.crm != nil {
		s.lookupCRM(ctx, result)
	}

	result.ProcessedAt = s.now().UTC()
	s.persist(ctx, result, email.Raw)

	s.metrics.ParsedTotal.WithLabelValues(sourceLabel(email.Source), "ok").Inc()
	s.metrics.ObserveStep("total", start)

	s.log.WithFields(map[string]any{
		"id":         result.ID.String(),
		"message_id": email.Meta.MessageID,
		"method":     result.Extraction.ExtractedBy,
		"intent":     result.Intention.Intent,
		"source":     result.Intention.Source,
	}).WithDuration(time.Since(start)).Info("email processed")

	return result, nil
}

func (s *Service) Extract(_ context.Context, text string) *domain.ExtractionResult {
	res := s.extractor.Extract(text)
	s.metrics.ExtractionsTotal.WithLabelValues(string(res.ExtractedBy)).Inc()
	return res
}

func (s *Service) ClassifyIntent(ctx context.Context, subject, body string) *domain.IntentResult {
	return s.classify(ctx, subject, body)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.ProcessedEmail, error) {
	if s.archive == nil {
		return nil, apperr.Unavailable("archive")
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.InvalidInput("id", "must be a UUID")
	}
	return s.archive.Get(ctx, uid)
}

// =============================================================================
// Steps
// =============================================================================

func (s *Service) classify(ctx context.Context, subject, body string) *domain.IntentResult {
	res, err := s.intent.Classify(ctx, &classification.ScoreClassifierInput{Subject: subject, Body: body})
	if err != nil || res == nil {
		if err != nil {
			s.log.WithError(err).Warn("intent classification failed")
		}
		return &domain.IntentResult{
			Intent:     domain.IntentRequest,
			Confidence: 0.5,
			Source:     classification.SourceDefault,
			Flags:      domain.IntentFlags{StatusAngebot: domain.FlagUnsure, Universitaet: domain.FlagUnsure},
		}
	}
	s.metrics.IntentsTotal.WithLabelValues(string(res.Intent), res.Stage).Inc()
	intent := res.IntentResult
	return &intent
}

func (s *Service) summarizeWebsite(ctx context.Context, result *domain.ProcessedEmail) {
	site := s.web.PickWebsite(result.Extraction.Data.Website, result.Meta.From)
	if site == "" {
		return
	}

	stepStart := s.now()
	defer s.metrics.ObserveStep("web", stepStart)

	summary, err := s.web.Summarize(ctx, site)
	if err != nil {
		s.log.WithError(err).Warn("website summary skipped for %s", site)
		return
	}
	result.Web = summary
}

func (s *Service) lookupCRM(ctx context.Context, result *domain.ProcessedEmail) {
	d := &result.Extraction.Data
	email := d.PrimaryEmail()
	var first, last string
	if d.FirstName != nil {
		first = *d.FirstName
	}
	if d.LastName != nil {
		last = *d.LastName
	}
	if email == "" && (first == "" || last == "") {
		return
	}

	stepStart := s.now()
	defer s.metrics.ObserveStep("crm", stepStart)

	known, err := s.crm.PersonExists(ctx, email, first, last)
	if err != nil {
		s.log.WithError(err).Warn("crm lookup failed")
		return
	}
	result.CRMKnown = &known
}

// persist writes to every configured sink. Failures never fail the parse.
func (s *Service) persist(ctx context.Context, result *domain.ProcessedEmail, raw []byte) {
	if s.archive != nil {
		if err := s.archive.Save(ctx, result, raw); err != nil {
			s.sinkFailed("archive", err)
		}
	}

	if s.contacts != nil {
		if c := domain.ContactFromExtraction(result.Extraction, result.Intention.Intent); c != nil {
			if err := s.contacts.Upsert(ctx, c); err != nil {
				s.sinkFailed("contacts", err)
			}
		}
	}

	if s.graph != nil {
		if err := s.graph.RecordInquiry(ctx, result); err != nil {
			s.sinkFailed("graph", err)
		}
	}
}

func (s *Service) sinkFailed(sink string, err error) {
	s.metrics.SinkFailuresTotal.WithLabelValues(sink).Inc()
	s.log.WithError(err).WithField("sink", sink).Error("failed to persist result")
}

func sourceLabel(src domain.MailSource) string {
	if src == "" {
		return "direct"
	}
	return string(src)
}
