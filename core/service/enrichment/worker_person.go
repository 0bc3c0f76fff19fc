// Package enrichment adds header-derived guesses, the LLM signature record and
// a short website summary to a parsed email.
package enrichment

import (
	"regexp"
	"strings"

	"mailparser_server/core/domain"
)

// Person/company context values.
const (
	ContextJobApplication = "job_application"
	TopicOffer            = "offer"
)

// GuessPerson derives the sender name from the From header.
func GuessPerson(meta domain.MailMeta) *domain.PersonGuess {
	p := &domain.PersonGuess{SenderRaw: meta.From}

	if lt := strings.Index(meta.From, "<"); lt >= 0 && strings.Contains(meta.From[lt:], ">") {
		p.NameGuess = strings.Trim(strings.TrimSpace(meta.From[:lt]), `'"`)
	}
	if strings.Contains(strings.ToLower(meta.Subject), "bewerbung") {
		p.Context = ContextJobApplication
	}
	return p
}

// GuessCompany records the addressed organisation and the subject topic.
func GuessCompany(meta domain.MailMeta) *domain.CompanyGuess {
	c := &domain.CompanyGuess{TargetOrg: strings.TrimSpace(meta.To)}
	if strings.Contains(strings.ToLower(meta.Subject), "angebot") {
		c.Topic = TopicOffer
	}
	return c
}

var addrRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@([a-z0-9.\-]+\.[a-z]{2,})`)

// SenderDomain returns the lower-case domain of the first address in from.
func SenderDomain(from string) string {
	m := addrRe.FindStringSubmatch(from)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
