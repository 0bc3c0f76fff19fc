package extraction

import (
	"regexp"
	"strings"

	"mailparser_server/core/domain"
)

var (
	formNameRe    = regexp.MustCompile(`Name:\s*(.*)`)
	formEmailRe   = regexp.MustCompile(`E-?Mail:\s*([\p{L}\p{N}_.-]+@[\p{L}\p{N}_.-]+)`)
	formCompanyRe = regexp.MustCompile(`Company:\s*(.*)`)
	formPhoneRe   = regexp.MustCompile(`Phone:\s*([\d+][\d\s]+)`)
	formCountryRe = regexp.MustCompile(`Country:\s*(.*)`)
	salutationRe  = regexp.MustCompile(`(?im)^\s*(Sehr|Dear|Hello|Hi|Guten|Good|Kind)\b`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Quoted-header words that end a form message.
var formHeaderStops = []string{
	"Von:", "Gesendet:", "An:", "Betreff:", "From:", "Sent:", "To:", "Subject:",
}

// extractForm reads the labelled fields of a web-form inquiry.
func (r *Rules) extractForm(text string) *domain.ExtractionResult {
	data := domain.ExtractedData{}

	if m := formNameRe.FindStringSubmatch(text); m != nil {
		if parts := strings.Fields(m[1]); len(parts) >= 2 {
			data.FirstName = domain.StringPtr(parts[0])
			data.LastName = domain.StringPtr(strings.Join(parts[1:], " "))
		}
	}

	emailLoc := formEmailRe.FindStringSubmatchIndex(text)
	if emailLoc != nil {
		data.Email = []string{text[emailLoc[2]:emailLoc[3]]}
	}

	if m := formCompanyRe.FindStringSubmatch(text); m != nil {
		data.Company = []string{strings.TrimSpace(m[1])}
	}
	if m := formPhoneRe.FindStringSubmatch(text); m != nil {
		data.Phone = domain.PhoneList{whitespaceRe.ReplaceAllString(m[1], "")}
	}
	if m := formCountryRe.FindStringSubmatch(text); m != nil {
		data.Address = []string{strings.TrimSpace(m[1])}
	}

	if emailLoc != nil {
		data.Message = r.formMessage(text[emailLoc[1]:])
	}

	return &domain.ExtractionResult{
		Data:        data,
		ExtractedBy: domain.MethodFormInquiry,
	}
}

// formMessage cuts the free-text message that follows the form's email
// field at the first quoted header or closing phrase.
func (r *Rules) formMessage(tail string) *string {
	tail = strings.TrimLeft(tail, " \t\r\n\f\v")

	cut := len(tail)
	for _, re := range r.formStopRes {
		if loc := re.FindStringIndex(tail); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	candidate := strings.TrimSpace(tail[:cut])

	if loc := salutationRe.FindStringIndex(candidate); loc != nil {
		return domain.StringPtr(strings.TrimSpace(candidate[loc[0]:]))
	}
	if candidate != "" {
		return &candidate
	}
	return domain.StringPtr(strings.TrimSpace(tail))
}
