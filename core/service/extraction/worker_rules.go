package extraction

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Default Rule Lists
// =============================================================================

var defaultSignOffs = []string{
	"Mit freundlichen Grüßen", "Freundliche Grüße", "Beste Grüße", "Viele Grüße",
	"Herzliche Grüße", "Liebe Grüße", "Schöne Grüße", "Grüße",
	"Best regards", "Kind regards", "Regards", "Sincerely",
	"Yours sincerely", "Yours faithfully", "Thank you", "Thanks",
}

var defaultTags = []string{
	"heiz", "ish 2025", "kälte", "wärme", "kühlh", "lüftung", "tga",
	"messe", "medi", "pcm", "pharma", "logistik", "plan", "wett",
	"uni", "trak", "spei",
}

var defaultGenericDomains = []string{
	"gmail.com", "outlook.com", "yahoo.com", "hotmail.com", "icloud.com",
	"web.de", "posteo.de", "googlemail.com", "live.com", "aol.com",
	"msn.com", "mail.ru",
}

var defaultRoleKeywords = []string{
	"manager", "director", "supervisor", "officer", "head", "lead",
	"coordinator", "specialist", "consultant", "planning", "purchasing", "engineer",
}

// Words that disqualify an NER person candidate.
var defaultPersonStopWords = []string{
	"gmbh", "inc", "corp", "director", "manager", "geschaeftsfuehrer", "geschäftsführer",
}

var defaultDomainCompanies = map[string]string{
	"gov.my": "MPOB",
}

const defaultInternalDomain = "rubitherm"

// =============================================================================
// Rules
// =============================================================================

// Rules holds the keyword lists that drive extraction. Zero-valued lists
// in a rules file fall back to the built-in defaults.
type Rules struct {
	SignOffs        []string          `yaml:"sign_offs"`
	Tags            []string          `yaml:"tags"`
	GenericDomains  []string          `yaml:"generic_domains"`
	RoleKeywords    []string          `yaml:"role_keywords"`
	PersonStopWords []string          `yaml:"person_stop_words"`
	DomainCompanies map[string]string `yaml:"domain_companies"`
	InternalDomain  string            `yaml:"internal_domain"`

	signOffRe     *regexp.Regexp
	formStopRes   []*regexp.Regexp
	genericDomain map[string]struct{}
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *Rules {
	r := &Rules{}
	r.applyDefaults()
	r.compile()
	return r
}

// LoadRules reads a YAML rules file. An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses YAML rule overrides.
func ParseRules(data []byte) (*Rules, error) {
	r := &Rules{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	r.applyDefaults()
	r.compile()
	return r, nil
}

func (r *Rules) applyDefaults() {
	if len(r.SignOffs) == 0 {
		r.SignOffs = defaultSignOffs
	}
	if len(r.Tags) == 0 {
		r.Tags = defaultTags
	}
	if len(r.GenericDomains) == 0 {
		r.GenericDomains = defaultGenericDomains
	}
	if len(r.RoleKeywords) == 0 {
		r.RoleKeywords = defaultRoleKeywords
	}
	if len(r.PersonStopWords) == 0 {
		r.PersonStopWords = defaultPersonStopWords
	}
	if r.DomainCompanies == nil {
		r.DomainCompanies = defaultDomainCompanies
	}
	if r.InternalDomain == "" {
		r.InternalDomain = defaultInternalDomain
	}
}

func (r *Rules) compile() {
	r.signOffRe = regexp.MustCompile(`(?i)(?:` + quoteAll(r.SignOffs) + `)`)

	// Form messages also stop at "Best greetings".
	formSignOffs := append([]string{"Best greetings"}, r.SignOffs...)
	r.formStopRes = make([]*regexp.Regexp, 0, len(formHeaderStops)+1)
	for _, h := range formHeaderStops {
		r.formStopRes = append(r.formStopRes, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(h)+`\b`))
	}
	r.formStopRes = append(r.formStopRes, regexp.MustCompile(`(?i)(?:`+quoteAll(formSignOffs)+`)`))

	r.genericDomain = make(map[string]struct{}, len(r.GenericDomains))
	for _, d := range r.GenericDomains {
		r.genericDomain[strings.ToLower(d)] = struct{}{}
	}
}

// IsGenericDomain reports whether domain is a free-mail provider.
func (r *Rules) IsGenericDomain(domain string) bool {
	_, ok := r.genericDomain[strings.ToLower(domain)]
	return ok
}

// IsInternal reports whether s belongs to the receiving organisation.
func (r *Rules) IsInternal(s string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(r.InternalDomain))
}

// HasSignOff reports whether line contains a closing phrase.
func (r *Rules) HasSignOff(line string) bool {
	return r.signOffRe.MatchString(line)
}

func quoteAll(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}
