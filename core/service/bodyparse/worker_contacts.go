package bodyparse

import (
	"regexp"
	"sort"
	"strings"
)

// Contact candidate types.
const (
	CandidateEmail = "EMAIL"
	CandidateURL   = "URL"
	CandidateTel   = "TEL"
)

const telSeparators = `[\s\x{00A0}\x{202F}\-\x{2013}./·]`

var candidatePatterns = []struct {
	kind string
	res  []*regexp.Regexp
}{
	{CandidateEmail, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`),
	}},
	{CandidateURL, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhttps?://[^\s)]+`),
		regexp.MustCompile(`(?i)\bwww\.[a-z0-9\-]+(?:\.[a-z]{2,})+(?:/[^\s)]*)?`),
	}},
	{CandidateTel, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:\b(?:Tel\.?|Telefon|Phone|Mob\.?|Mobile|Handy)\s*[:\-]?\s*)?` +
			`(?:(?:\+|00)\d{1,3}\s*(?:\(\s*0\s*\)\s*)?)?` +
			`(?:\(?0?\d{1,5}\)?` + telSeparators + `?)` +
			`\d{2,4}(?:` + telSeparators + `?\d{2,4}){1,4}\b`),
	}},
}

// Candidate is a contact detail found on one body line.
type Candidate struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
	Line   int      `json:"line"`  // 1-based
	CLine  int      `json:"cline"` // compact index, blank lines skipped
}

// FindCandidates applies the EMAIL/URL/TEL patterns line by line. Phone
// matches are ignored on lines that mention weekdays or months, since
// those are dates.
func FindCandidates(lines []string) []Candidate {
	var out []Candidate
	compact := 0
	for idx, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		compact++
		calendarLine := calendarRe.MatchString(line)

		for _, p := range candidatePatterns {
			if p.kind == CandidateTel && calendarLine {
				continue
			}
			var hits []string
			for _, re := range p.res {
				hits = append(hits, re.FindAllString(line, -1)...)
			}
			if len(hits) == 0 {
				continue
			}
			out = append(out, Candidate{Type: p.kind, Values: uniqueStrings(hits), Line: idx + 1, CLine: compact})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CLine < out[j].CLine })
	return out
}

// Cluster groups candidates on neighbouring lines, or one header segment.
type Cluster struct {
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Items     []Candidate `json:"items"`
	Header    bool        `json:"header"`
}

// ClusterCandidates groups candidates whose compact lines are at most
// maxGap apart. Cluster spans are reported in original line numbers.
func ClusterCandidates(cands []Candidate, maxGap int) []Cluster {
	if len(cands) == 0 {
		return nil
	}
	var clusters []Cluster
	cur := []Candidate{cands[0]}
	last := cands[0].CLine
	for _, c := range cands[1:] {
		if c.CLine-last <= maxGap {
			cur = append(cur, c)
		} else {
			clusters = append(clusters, newCluster(cur))
			cur = []Candidate{c}
		}
		last = c.CLine
	}
	return append(clusters, newCluster(cur))
}

func newCluster(items []Candidate) Cluster {
	c := Cluster{StartLine: items[0].Line, EndLine: items[0].Line, Items: items}
	for _, it := range items {
		if it.Line < c.StartLine {
			c.StartLine = it.Line
		}
		if it.Line > c.EndLine {
			c.EndLine = it.Line
		}
	}
	return c
}

func headerCluster(seg HeaderSegment) Cluster {
	c := Cluster{StartLine: seg.StartLine, EndLine: seg.EndLine, Header: true}
	for _, e := range seg.Entries {
		c.Items = append(c.Items, Candidate{Type: e.NormalizedKey, Values: []string{e.Value}, Line: e.Line, CLine: e.Line})
	}
	return c
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
