package out

import (
	"context"

	"mailparser_server/core/domain"

	"github.com/google/uuid"
)

// EmailArchive stores raw emails and their processing results.
type EmailArchive interface {
	Save(ctx context.Context, result *domain.ProcessedEmail, raw []byte) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ProcessedEmail, error)
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
}

// ContactRepository persists extracted contacts keyed by email.
type ContactRepository interface {
	Upsert(ctx context.Context, contact *domain.Contact) error
	GetByEmail(ctx context.Context, email string) (*domain.Contact, error)
}

// ContactGraph records people, companies and inquiries as a graph.
type ContactGraph interface {
	RecordInquiry(ctx context.Context, result *domain.ProcessedEmail) error
}

// CRMDirectory looks people up in the external CRM.
type CRMDirectory interface {
	PersonExists(ctx context.Context, email, firstName, lastName string) (bool, error)
}

// SiteFetcher fetches a web page and returns its HTML.
type SiteFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
