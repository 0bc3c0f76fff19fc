package domain

import (
	"bytes"

	"github.com/goccy/go-json"
)

// ExtractionMethod names the strategy that produced an ExtractionResult.
type ExtractionMethod string

const (
	MethodFormInquiry ExtractionMethod = "form_inquiry_extractor"
	MethodDirectEmail ExtractionMethod = "direct_email_extractor"
)

// PhoneList serializes as null, a single string, or a list depending on
// how many distinct numbers were found.
type PhoneList []string

func (p PhoneList) MarshalJSON() ([]byte, error) {
	switch len(p) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(p[0])
	default:
		return json.Marshal([]string(p))
	}
}

func (p *PhoneList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PhoneList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*p = list
	return nil
}

// First returns the first phone number or "".
func (p PhoneList) First() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// ExtractedData is the flat contact record pulled out of an email body.
// Every field may be absent.
type ExtractedData struct {
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Roles     []string  `json:"roles"`
	Email     []string  `json:"email"`
	Phone     PhoneList `json:"customer_phone"`
	Company   []string  `json:"company"`
	Website   []string  `json:"website"`
	Address   []string  `json:"address"`
	Tags      []string  `json:"tags"`
	Message   *string   `json:"message,omitempty"`
}

// FullName joins first and last name, skipping missing parts.
func (d *ExtractedData) FullName() string {
	var parts []string
	if d.FirstName != nil && *d.FirstName != "" {
		parts = append(parts, *d.FirstName)
	}
	if d.LastName != nil && *d.LastName != "" {
		parts = append(parts, *d.LastName)
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + " " + parts[1]
	}
}

// PrimaryEmail returns the first extracted address or "".
func (d *ExtractedData) PrimaryEmail() string {
	if len(d.Email) == 0 {
		return ""
	}
	return d.Email[0]
}

// PrimaryCompany returns the first extracted company or "".
func (d *ExtractedData) PrimaryCompany() string {
	if len(d.Company) == 0 {
		return ""
	}
	return d.Company[0]
}

// ExtractionResult pairs the extracted record with the extractor that built it.
type ExtractionResult struct {
	Data        ExtractedData    `json:"extracted_data"`
	ExtractedBy ExtractionMethod `json:"extracted_by"`
}

// formData mirrors ExtractedData but always writes "message", so form
// results carry "message": null when no message was found.
type formData struct {
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Roles     []string  `json:"roles"`
	Email     []string  `json:"email"`
	Phone     PhoneList `json:"customer_phone"`
	Company   []string  `json:"company"`
	Website   []string  `json:"website"`
	Address   []string  `json:"address"`
	Tags      []string  `json:"tags"`
	Message   *string   `json:"message"`
}

// MarshalJSON keeps the message key for form inquiries only. Direct
// emails never have one.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	if r.ExtractedBy != MethodFormInquiry {
		type plain ExtractionResult
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		Data        formData         `json:"extracted_data"`
		ExtractedBy ExtractionMethod `json:"extracted_by"`
	}{formData(r.Data), r.ExtractedBy})
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
