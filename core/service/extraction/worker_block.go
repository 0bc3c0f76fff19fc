package extraction

import (
	"regexp"
	"sort"
	"strings"
)

var headerLineRe = regexp.MustCompile(`(?i)^\s*(?:Von:|From:)`)

// signatureFallbackLines is how many trailing lines count as the signature
// when no sign-off is found.
const signatureFallbackLines = 10

// CustomerBlock returns the text from the last quoted "Von:"/"From:" header
// line to the end. Without a header line the whole text is returned.
func CustomerBlock(text string) string {
	lines := splitLines(text)
	start := 0
	for i := len(lines) - 1; i >= 0; i-- {
		if headerLineRe.MatchString(lines[i]) {
			start = i
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines[start:], "\n")
}

// SignatureBlock scans bottom-up for a sign-off and returns the lines after
// it, or the last lines when there is none.
func (r *Rules) SignatureBlock(lines []string) []string {
	for i := len(lines) - 1; i >= 0; i-- {
		if r.HasSignOff(lines[i]) {
			return lines[i+1:]
		}
	}
	if len(lines) > signatureFallbackLines {
		return lines[len(lines)-signatureFallbackLines:]
	}
	return lines
}

// ExtractTags returns the title-cased predefined tags found anywhere in text.
func (r *Rules) ExtractTags(text string) []string {
	lower := strings.ToLower(text)
	found := make(map[string]struct{})
	for _, tag := range r.Tags {
		if strings.Contains(lower, strings.ToLower(tag)) {
			found[titleCase(tag)] = struct{}{}
		}
	}
	tags := make([]string, 0, len(found))
	for t := range found {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// isFormInquiry reports whether a block looks like a web-form submission.
func isFormInquiry(block string) bool {
	return strings.Contains(block, "Name:") &&
		strings.Contains(block, "Company:") &&
		strings.Contains(block, "E-Mail:")
}
