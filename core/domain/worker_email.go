package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MailSource identifies where an email was picked up.
type MailSource string

const (
	SourceIMAP   MailSource = "imap"
	SourceGmail  MailSource = "gmail"
	SourceUpload MailSource = "upload"
	SourceFile   MailSource = "file"
)

// MailMeta holds the envelope headers of an email.
type MailMeta struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	MessageID string `json:"message_id"`
	Date      string `json:"date"`
}

// ParsedEmail is a decoded .eml message.
type ParsedEmail struct {
	Meta   MailMeta   `json:"meta"`
	Plain  string     `json:"plain"`
	HTML   string     `json:"html,omitempty"`
	Raw    []byte     `json:"-"`
	Source MailSource `json:"source,omitempty"`
	// SourceID is the provider-side identifier (IMAP UID, Gmail message ID).
	SourceID string `json:"source_id,omitempty"`
}

// Body returns the plain body, falling back to the HTML body.
func (p *ParsedEmail) Body() string {
	if strings.TrimSpace(p.Plain) != "" {
		return p.Plain
	}
	return p.HTML
}

// BodyWindow is the slice of a body that most likely holds the sender's
// own message and signature.
type BodyWindow struct {
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Text      string `json:"text"`
}

// PersonGuess is derived from the From header alone.
type PersonGuess struct {
	SenderRaw string `json:"sender_raw"`
	NameGuess string `json:"name_guess"`
	Context   string `json:"context,omitempty"`
}

// CompanyGuess is derived from the To header and subject.
type CompanyGuess struct {
	TargetOrg string `json:"target_org"`
	Topic     string `json:"topic,omitempty"`
}

// PersonInfo is the signature record returned by the LLM parser.
type PersonInfo struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Title     string   `json:"title"`
	Company   string   `json:"company"`
	Email     []string `json:"email"`
	Phone     []string `json:"phone"`
	URL       []string `json:"url"`
	Address   []string `json:"address"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
	LinkedIn  string   `json:"linkedin"`
}

// WebSummary holds the sender company's website and descriptive sentences.
type WebSummary struct {
	Website string   `json:"website"`
	Pages   []string `json:"pages,omitempty"`
	Summary []string `json:"summary"`
}

// ProcessedEmail is the full result of running an email through the pipeline.
type ProcessedEmail struct {
	ID          uuid.UUID         `json:"id" bson:"_id"`
	Meta        MailMeta          `json:"meta"`
	Source      MailSource        `json:"source,omitempty"`
	SourceID    string            `json:"source_id,omitempty"`
	Extraction  *ExtractionResult `json:"ai_extract_crm"`
	Person      *PersonGuess      `json:"ai_extract_person,omitempty"`
	Company     *CompanyGuess     `json:"ai_extract_company,omitempty"`
	Intention   *IntentResult     `json:"ai_predict_intention,omitempty"`
	Web         *WebSummary       `json:"ai_web,omitempty"`
	BodyWindow  *BodyWindow       `json:"body_window,omitempty"`
	Signature   *PersonInfo       `json:"signature,omitempty"`
	CRMKnown    *bool             `json:"crm_known,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
}
