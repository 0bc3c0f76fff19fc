package domain

import (
	"time"
)

// Contact is the stored projection of an extracted sender.
type Contact struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	FirstName  string   `json:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty"`
	Company    string   `json:"company,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	Websites   []string `json:"websites,omitempty"`
	Addresses  []string `json:"addresses,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	LastIntent Intent   `json:"last_intent,omitempty"`

	InquiryCount int       `json:"inquiry_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ContactFromExtraction builds a Contact from an extraction result.
// It returns nil when no email address was found.
func ContactFromExtraction(res *ExtractionResult, intent Intent) *Contact {
	if res == nil {
		return nil
	}
	d := &res.Data
	email := d.PrimaryEmail()
	if email == "" {
		return nil
	}
	c := &Contact{
		Email:      email,
		Company:    d.PrimaryCompany(),
		Phone:      d.Phone.First(),
		Roles:      d.Roles,
		Websites:   d.Website,
		Addresses:  d.Address,
		Tags:       d.Tags,
		LastIntent: intent,
	}
	if d.FirstName != nil {
		c.FirstName = *d.FirstName
	}
	if d.LastName != nil {
		c.LastName = *d.LastName
	}
	return c
}
