package extraction

import (
	"regexp"
	"sort"
	"strings"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
)

var (
	senderHeaderRe  = regexp.MustCompile(`(?im)^\s*(?:Von:|From:)\s*(.+?)?\s*<([^>]+)>`)
	nameNoiseRe     = regexp.MustCompile(`\(.*\)|['"]|\s-\s.*`)
	trailingCommaRe = regexp.MustCompile(`,+$`)

	sigEmailRe    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	inlineImageRe = regexp.MustCompile(`(?i)\.(?:png|jpg|jpeg|gif)@`)
	websiteRe     = regexp.MustCompile(`(?:https?://[^\s<>]+|www\.[^\s<>]+)`)
	phoneRe       = regexp.MustCompile(`\+?\d[\d\s\-()]{6,}\d`)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	legalFormRe   = regexp.MustCompile(`(?i)\b(?:GmbH|Ltd|Inc|Corp|LLC|LLP|Co\.|S\.A\.|S\.p\.A\.|Pty|PLC)\b`)
	addressLineRe = regexp.MustCompile(`\b[a-zA-Z\s]{8,},?\s*\d+\b`)
	digitRe       = regexp.MustCompile(`\d`)
)

// Signature lines longer than this are not treated as address lines.
const maxAddressLineLen = 15

// directEmail carries the state of one direct-email extraction.
type directEmail struct {
	rules    *Rules
	entities []out.Entity

	firstName, lastName string
	headerEmail         string
	companies           []string
}

// extractDirect reads a free-form email: the sender header first, then
// the signature block.
func (r *Rules) extractDirect(text string, ner out.EntityRecognizer) *domain.ExtractionResult {
	d := &directEmail{rules: r}
	d.readSenderHeader(text)

	sigLines := r.SignatureBlock(nonEmptyLines(text))
	sigText := strings.Join(sigLines, "\n")

	// One NER pass serves both the name fallback and the addresses.
	if ner != nil && sigText != "" {
		d.entities = ner.Entities(sigText)
	}

	if d.firstName == "" && d.lastName == "" {
		d.guessNameFromSignature()
	}

	sigEmails := signatureEmails(sigText)
	websites := signatureWebsites(sigText)
	phones := signaturePhones(sigText)

	if len(d.companies) == 0 {
		for _, line := range sigLines {
			if legalFormRe.MatchString(line) {
				d.companies = append(d.companies, strings.TrimSpace(line))
				break
			}
		}
	}

	var roles []string
	for _, line := range sigLines {
		if containsAny(strings.ToLower(line), r.RoleKeywords) {
			roles = append(roles, strings.TrimSpace(line))
		}
	}

	addresses := d.addresses(sigLines)

	var emails []string
	if d.headerEmail != "" {
		emails = append(emails, d.headerEmail)
	}
	for _, e := range sigEmails {
		if !r.IsInternal(e) {
			emails = append(emails, e)
		}
	}

	return &domain.ExtractionResult{
		Data: domain.ExtractedData{
			FirstName: domain.StringPtr(d.firstName),
			LastName:  domain.StringPtr(d.lastName),
			Company:   nonNil(dedupe(d.companies)),
			Phone:     domain.PhoneList(dedupe(phones)),
			Email:     nonNil(dedupe(emails)),
			Roles:     nonNil(dedupe(roles)),
			Address:   nonNil(dedupe(addresses)),
			Website:   nonNil(websites),
		},
		ExtractedBy: domain.MethodDirectEmail,
	}
}

// readSenderHeader takes name, address and company domain from the first
// "Von: Name <addr>" line of the block.
func (d *directEmail) readSenderHeader(text string) {
	m := senderHeaderRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	d.headerEmail = strings.TrimSpace(m[2])

	if namePart := m[1]; namePart != "" {
		clean := strings.TrimSpace(nameNoiseRe.ReplaceAllString(namePart, ""))
		clean = trailingCommaRe.ReplaceAllString(clean, "")
		parts := strings.Fields(clean)
		switch {
		case len(parts) >= 2:
			d.firstName = parts[0]
			d.lastName = strings.Join(parts[1:], " ")
		case len(parts) == 1:
			d.firstName = parts[0]
		}
	}

	domainPart := d.headerEmail
	if at := strings.LastIndex(domainPart, "@"); at >= 0 {
		domainPart = domainPart[at+1:]
	}
	if company := d.rules.CompanyFromDomain(domainPart); company != "" {
		d.companies = append(d.companies, company)
	}
}

// CompanyFromDomain derives a company name from a mail domain. Generic
// and internal domains yield "".
func (r *Rules) CompanyFromDomain(mailDomain string) string {
	if mailDomain == "" {
		return ""
	}
	lower := strings.ToLower(mailDomain)
	if r.IsGenericDomain(lower) || r.IsInternal(lower) {
		return ""
	}
	suffixes := make([]string, 0, len(r.DomainCompanies))
	for suffix := range r.DomainCompanies {
		suffixes = append(suffixes, suffix)
	}
	sort.Strings(suffixes)
	for _, suffix := range suffixes {
		if strings.Contains(lower, strings.ToLower(suffix)) {
			return r.DomainCompanies[suffix]
		}
	}
	label := mailDomain
	if dot := strings.Index(label, "."); dot >= 0 {
		label = label[:dot]
	}
	label = strings.NewReplacer("-", " ", "_", " ").Replace(label)
	return titleCase(label)
}

func (d *directEmail) guessNameFromSignature() {
	for _, ent := range d.entities {
		if ent.Label != out.EntityPerson && ent.Label != "PER" {
			continue
		}
		cand := strings.TrimSpace(ent.Text)
		if containsAny(strings.ToLower(cand), d.rules.PersonStopWords) {
			continue
		}
		if parts := strings.Fields(cand); len(parts) >= 2 {
			d.firstName = parts[0]
			d.lastName = strings.Join(parts[1:], " ")
			return
		}
	}
}

// addresses prefers NER locations and falls back to short "Street 12"
// style lines.
func (d *directEmail) addresses(sigLines []string) []string {
	var found []string
	for _, ent := range d.entities {
		if ent.Label != out.EntityLocation && ent.Label != "LOC" {
			continue
		}
		if digitRe.MatchString(ent.Text) || len(strings.Fields(ent.Text)) > 1 {
			found = append(found, strings.TrimSpace(ent.Text))
		}
	}
	if len(found) > 0 {
		return found
	}
	for _, line := range sigLines {
		line = strings.TrimSpace(line)
		if addressLineRe.MatchString(line) && len(line) <= maxAddressLineLen {
			found = append(found, line)
		}
	}
	return found
}

func signatureEmails(sigText string) []string {
	var out []string
	for _, e := range sigEmailRe.FindAllString(sigText, -1) {
		if inlineImageRe.MatchString(e) || strings.HasPrefix(strings.ToLower(e), "image") {
			continue
		}
		out = append(out, e)
	}
	return out
}

// signatureWebsites collects links, giving bare "www." hosts a scheme.
func signatureWebsites(sigText string) []string {
	var sites []string
	for _, w := range websiteRe.FindAllString(sigText, -1) {
		w = strings.Trim(strings.TrimSpace(w), ">")
		if strings.HasPrefix(w, "www.") {
			w = "http://" + w
		}
		sites = append(sites, w)
	}
	return dedupe(sites)
}

func signaturePhones(sigText string) []string {
	raw := phoneRe.FindAllString(sigText, -1)
	phones := make([]string, 0, len(raw))
	for _, p := range raw {
		phones = append(phones, strings.TrimSpace(multiSpaceRe.ReplaceAllString(p, " ")))
	}
	return phones
}

// nonNil turns a nil slice into an empty one so it encodes as [].
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
