package enrichment

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
	"mailparser_server/core/service/bodyparse"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/publicsuffix"
)

const (
	maxSummaryPages     = 5
	maxSummarySentences = 3
	minSentenceLen      = 40
	maxSentenceLen      = 250
)

var (
	aboutPageKeywords = []string{"about", "vision", "mission", "who-we-are", "company", "corporate"}
	summaryKeywords   = []string{
		"about", "vision", "mission", "objective", "focus", "establish",
		"function", "research", "development", "sustain", "industry",
	}
)

// WebSummarizer builds a short company description from the sender's website.
type WebSummarizer struct {
	fetcher   out.SiteFetcher
	isGeneric func(domain string) bool
}

// NewWebSummarizer creates a summarizer. isGeneric filters free-mail domains
// and may be nil.
func NewWebSummarizer(fetcher out.SiteFetcher, isGeneric func(string) bool) *WebSummarizer {
	if isGeneric == nil {
		isGeneric = func(string) bool { return false }
	}
	return &WebSummarizer{fetcher: fetcher, isGeneric: isGeneric}
}

// PickWebsite returns the first usable site: an extracted website, else the
// registrable sender domain. Generic mail domains never qualify.
func (w *WebSummarizer) PickWebsite(websites []string, from string) string {
	for _, site := range websites {
		u := normalizeSiteURL(site)
		if u == nil {
			continue
		}
		if !w.isGeneric(strings.TrimPrefix(u.Hostname(), "www.")) {
			return u.String()
		}
	}

	host := SenderDomain(from)
	if host == "" || w.isGeneric(host) {
		return ""
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		host = etld1
	}
	return "https://www." + host
}

// Summarize fetches site plus up to four about-style pages and keeps the
// best scoring sentences.
func (w *WebSummarizer) Summarize(ctx context.Context, site string) (*domain.WebSummary, error) {
	base, err := url.Parse(site)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("web summary: invalid url %q", site)
	}

	home, err := w.fetcher.Fetch(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("web summary: %w", err)
	}

	pages := append([]string{site}, relevantLinks(base, home)...)
	if len(pages) > maxSummaryPages {
		pages = pages[:maxSummaryPages]
	}

	var text strings.Builder
	text.WriteString(flatText(home))
	for _, page := range pages[1:] {
		if ctx.Err() != nil {
			break
		}
		body, err := w.fetcher.Fetch(ctx, page)
		if err != nil {
			continue
		}
		text.WriteString(" ")
		text.WriteString(flatText(body))
	}

	return &domain.WebSummary{
		Website: site,
		Pages:   pages,
		Summary: SummarizeText(text.String(), maxSummarySentences),
	}, nil
}

// SummarizeText scores sentences by keyword hits and returns the top n,
// best score first and shorter sentences first on ties.
func SummarizeText(text string, n int) []string {
	type scored struct {
		score int
		text  string
	}

	var candidates []scored
	for _, s := range splitSentences(text) {
		length := utf8.RuneCountInString(s)
		if length <= minSentenceLen || length >= maxSentenceLen {
			continue
		}
		lower := strings.ToLower(s)
		score := 0
		for _, k := range summaryKeywords {
			if strings.Contains(lower, k) {
				score++
			}
		}
		candidates = append(candidates, scored{score: score, text: strings.TrimSpace(s)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return utf8.RuneCountInString(candidates[i].text) < utf8.RuneCountInString(candidates[j].text)
	})

	out := []string{}
	for i := 0; i < len(candidates) && i < n; i++ {
		out = append(out, candidates[i].text)
	}
	return out
}

// splitSentences cuts after '.', '!' or '?' when followed by spaces.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(text) && text[j] == ' ' {
			j++
		}
		if j == i+1 {
			continue
		}
		out = append(out, text[start:i+1])
		start = j
		i = j - 1
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func flatText(page string) string {
	return strings.Join(strings.Fields(bodyparse.VisibleText(page)), " ")
}

// relevantLinks returns same-site links whose href or anchor text names an
// about-style page, resolved against base and de-duplicated.
func relevantLinks(base *url.URL, page string) []string {
	baseSite := registrable(base.Hostname())

	var out []string
	seen := map[string]bool{base.String(): true}

	z := html.NewTokenizer(strings.NewReader(page))
	var href string
	var anchorText strings.Builder
	inAnchor := false

	flush := func() {
		inAnchor = false
		if href == "" {
			return
		}
		hay := strings.ToLower(href + " " + anchorText.String())
		if !containsAny(hay, aboutPageKeywords) {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if registrable(abs.Hostname()) != baseSite {
			return
		}
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A {
				continue
			}
			if inAnchor {
				flush()
			}
			inAnchor = true
			href = ""
			anchorText.Reset()
			for _, a := range tok.Attr {
				if a.Key == "href" {
					href = a.Val
				}
			}
		case html.TextToken:
			if inAnchor {
				anchorText.Write(z.Text())
			}
		case html.EndTagToken:
			if inAnchor {
				if name, _ := z.TagName(); string(name) == "a" {
					flush()
				}
			}
		}
	}
}

func registrable(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld1
	}
	return host
}

func normalizeSiteURL(site string) *url.URL {
	site = strings.TrimSpace(strings.TrimRight(site, ".,;>"))
	if site == "" {
		return nil
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return nil
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	return u
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
