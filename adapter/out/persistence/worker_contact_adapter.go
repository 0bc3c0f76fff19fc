// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
	"mailparser_server/pkg/apperr"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ContactAdapter implements out.ContactRepository using PostgreSQL.
type ContactAdapter struct {
	db *sqlx.DB
}

// NewContactAdapter creates a new ContactAdapter.
func NewContactAdapter(db *sqlx.DB) *ContactAdapter {
	return &ContactAdapter{db: db}
}

const contactsSchema = `
	CREATE TABLE IF NOT EXISTS contacts (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		first_name    TEXT,
		last_name     TEXT,
		company       TEXT,
		phone         TEXT,
		roles         TEXT[] NOT NULL DEFAULT '{}',
		websites      TEXT[] NOT NULL DEFAULT '{}',
		addresses     TEXT[] NOT NULL DEFAULT '{}',
		tags          TEXT[] NOT NULL DEFAULT '{}',
		last_intent   TEXT,
		inquiry_count INTEGER NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// EnsureSchema creates the contacts table when missing.
func (a *ContactAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, contactsSchema); err != nil {
		return fmt.Errorf("failed to create contacts table: %w", err)
	}
	return nil
}

// contactRow represents the database row for contacts.
type contactRow struct {
	ID           int64          `db:"id"`
	Email        string         `db:"email"`
	FirstName    sql.NullString `db:"first_name"`
	LastName     sql.NullString `db:"last_name"`
	Company      sql.NullString `db:"company"`
	Phone        sql.NullString `db:"phone"`
	Roles        pq.StringArray `db:"roles"`
	Websites     pq.StringArray `db:"websites"`
	Addresses    pq.StringArray `db:"addresses"`
	Tags         pq.StringArray `db:"tags"`
	LastIntent   sql.NullString `db:"last_intent"`
	InquiryCount int            `db:"inquiry_count"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *contactRow) toDomain() *domain.Contact {
	return &domain.Contact{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName.String,
		LastName:     r.LastName.String,
		Company:      r.Company.String,
		Phone:        r.Phone.String,
		Roles:        r.Roles,
		Websites:     r.Websites,
		Addresses:    r.Addresses,
		Tags:         r.Tags,
		LastIntent:   domain.Intent(r.LastIntent.String),
		InquiryCount: r.InquiryCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Upsert inserts the contact or merges it into the row with the same email.
// Empty scalar fields keep the stored value; list fields are unioned.
func (a *ContactAdapter) Upsert(ctx context.Context, contact *domain.Contact) error {
	email := normalizeEmail(contact.Email)
	if email == "" {
		return apperr.MissingField("email")
	}

	query := `
		INSERT INTO contacts (
			email, first_name, last_name, company, phone,
			roles, websites, addresses, tags, last_intent, inquiry_count
		) VALUES (
			$1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			$6, $7, $8, $9, NULLIF($10, ''), 1
		)
		ON CONFLICT (email) DO UPDATE SET
			first_name = COALESCE(EXCLUDED.first_name, contacts.first_name),
			last_name = COALESCE(EXCLUDED.last_name, contacts.last_name),
			company = COALESCE(EXCLUDED.company, contacts.company),
			phone = COALESCE(EXCLUDED.phone, contacts.phone),
			roles = ARRAY(SELECT DISTINCT unnest(contacts.roles || EXCLUDED.roles)),
			websites = ARRAY(SELECT DISTINCT unnest(contacts.websites || EXCLUDED.websites)),
			addresses = ARRAY(SELECT DISTINCT unnest(contacts.addresses || EXCLUDED.addresses)),
			tags = ARRAY(SELECT DISTINCT unnest(contacts.tags || EXCLUDED.tags)),
			last_intent = COALESCE(EXCLUDED.last_intent, contacts.last_intent),
			inquiry_count = contacts.inquiry_count + 1,
			updated_at = NOW()
		RETURNING id, inquiry_count, created_at, updated_at
	`

	err := a.db.QueryRowxContext(ctx, query,
		email,
		contact.FirstName,
		contact.LastName,
		contact.Company,
		contact.Phone,
		stringArray(contact.Roles),
		stringArray(contact.Websites),
		stringArray(contact.Addresses),
		stringArray(contact.Tags),
		string(contact.LastIntent),
	).Scan(&contact.ID, &contact.InquiryCount, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}
	contact.Email = email
	return nil
}

// GetByEmail returns the stored contact or a NotFound error.
func (a *ContactAdapter) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	query := `
		SELECT id, email, first_name, last_name, company, phone, roles, websites,
			   addresses, tags, last_intent, inquiry_count, created_at, updated_at
		FROM contacts
		WHERE email = $1
	`

	var row contactRow
	err := a.db.QueryRowxContext(ctx, query, normalizeEmail(email)).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("contact")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return row.toDomain(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// stringArray never returns nil so NOT NULL array columns accept it.
func stringArray(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

var _ out.ContactRepository = (*ContactAdapter)(nil)
