package bodyparse

import (
	"regexp"
	"sort"
	"strings"
)

// Canonical quoted-header keys.
const (
	HeaderFrom    = "FROM"
	HeaderTo      = "TO"
	HeaderCC      = "CC"
	HeaderBCC     = "BCC"
	HeaderSubject = "SUBJECT"
	HeaderDate    = "DATE"
	HeaderSent    = "SENT"
	HeaderReplyTo = "REPLY_TO"
	HeaderSender  = "SENDER"
)

// headerAliases maps DE/EN/FR/ES labels of quoted reply headers to
// canonical keys.
var headerAliases = map[string]string{
	"from": HeaderFrom, "von": HeaderFrom, "absender": HeaderFrom, "de": HeaderFrom,
	"to": HeaderTo, "an": HeaderTo, "à": HeaderTo, "a": HeaderTo, "para": HeaderTo,
	"cc": HeaderCC, "kopie": HeaderCC, "kopie an": HeaderCC,
	"bcc": HeaderBCC, "blindkopie": HeaderBCC, "blindkopie an": HeaderBCC, "cci": HeaderBCC, "cco": HeaderBCC,
	"subject": HeaderSubject, "betreff": HeaderSubject, "objet": HeaderSubject, "asunto": HeaderSubject,
	"date": HeaderDate, "datum": HeaderDate, "fecha": HeaderDate,
	"sent": HeaderSent, "gesendet": HeaderSent, "gesendet am": HeaderSent,
	"envoyé": HeaderSent, "envoye": HeaderSent, "enviado": HeaderSent,
	"reply-to": HeaderReplyTo, "antwort an": HeaderReplyTo, "répondre à": HeaderReplyTo,
	"repondre a": HeaderReplyTo, "responder a": HeaderReplyTo,
	"sender": HeaderSender, "absenderadresse": HeaderSender, "expéditeur": HeaderSender,
	"expediteur": HeaderSender, "remitente": HeaderSender,
}

var (
	headerKeyRe      = compileHeaderKeys()
	continuationRe   = regexp.MustCompile(`^[\t ]+`)
	weekdayAlternate = `montag|dienstag|mittwoch|donnerstag|freitag|samstag|sonntag|` +
		`mo\.?|di\.?|mi\.?|do\.?|fr\.?|sa\.?|so\.?|` +
		`monday|tuesday|wednesday|thursday|friday|saturday|sunday|` +
		`mon\.?|tues?\.?|wed\.?|thu(?:r|rs)?\.?|fri\.?|sat\.?|sun\.?`
	monthAlternate = `januar|februar|märz|maerz|april|mai|juni|juli|august|september|oktober|november|dezember|` +
		`jan\.?|feb\.?|mrz\.?|apr\.?|jun\.?|jul\.?|aug\.?|sep\.?|sept\.?|okt\.?|nov\.?|dez\.?|` +
		`january|february|march|may|june|july|october|december|` +
		`mar\.?|may\.?|oct\.?|dec\.?`
	weekdayRe  = regexp.MustCompile(`(?i)\b(?:` + weekdayAlternate + `)\b`)
	calendarRe = regexp.MustCompile(`(?i)\b(?:` + weekdayAlternate + `|` + monthAlternate + `)\b`)
)

// compileHeaderKeys builds the label matcher, longest label first so
// "gesendet am" wins over "gesendet".
func compileHeaderKeys() *regexp.Regexp {
	keys := make([]string, 0, len(headerAliases))
	for k := range headerAliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)^\s*(` + strings.Join(quoted, "|") + `)\s*:\s*(.*)$`)
}

// HeaderEntry is one quoted header line (with continuations folded in).
type HeaderEntry struct {
	Key           string `json:"key"`
	NormalizedKey string `json:"normalized_key"`
	Value         string `json:"value"`
	Line          int    `json:"line"` // 1-based
}

// HeaderSegment is a run of consecutive quoted header lines.
type HeaderSegment struct {
	StartLine int               `json:"start_line"` // 1-based
	EndLine   int               `json:"end_line"`
	CStart    int               `json:"cstart"` // compact line index, blank lines skipped
	CEnd      int               `json:"cend"`
	Keys      []string          `json:"keys"`
	Headers   map[string]string `json:"headers"`
	Entries   []HeaderEntry     `json:"entries"`
}

func normalizeHeaderKey(raw string) string {
	if k, ok := headerAliases[strings.ToLower(raw)]; ok {
		return k
	}
	return strings.ToUpper(raw)
}

// ParseHeaderSegments finds quoted reply headers in a body. DATE and SENT
// values also get a *_ISO entry when the date can be parsed.
func ParseHeaderSegments(lines []string) []HeaderSegment {
	var segments []HeaderSegment
	compact := 0

	for i := 0; i < len(lines); {
		if strings.TrimSpace(lines[i]) != "" {
			compact++
		}
		m := headerKeyRe.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}

		seg := HeaderSegment{
			StartLine: i + 1,
			CStart:    compact,
			Headers:   make(map[string]string),
		}
		keys := make(map[string]struct{})

		for {
			value := strings.TrimSpace(m[2])
			j := i + 1
			for j < len(lines) && strings.TrimSpace(lines[j]) != "" && continuationRe.MatchString(lines[j]) {
				value += " " + strings.TrimSpace(lines[j])
				j++
			}

			key := normalizeHeaderKey(m[1])
			seg.Headers[key] = value
			if key == HeaderDate || key == HeaderSent {
				if iso := ParseDateISO(value); iso != "" {
					seg.Headers[key+"_ISO"] = iso
				}
			}
			seg.Entries = append(seg.Entries, HeaderEntry{Key: m[1], NormalizedKey: key, Value: value, Line: i + 1})
			keys[key] = struct{}{}

			i = j
			if i >= len(lines) {
				break
			}
			if m = headerKeyRe.FindStringSubmatch(lines[i]); m == nil {
				break
			}
			if strings.TrimSpace(lines[i]) != "" {
				compact++
			}
		}

		seg.EndLine = i
		seg.CEnd = seg.CStart
		for k := seg.StartLine; k < seg.EndLine; k++ {
			if strings.TrimSpace(lines[k]) != "" {
				seg.CEnd++
			}
		}
		for k := range keys {
			seg.Keys = append(seg.Keys, k)
		}
		sort.Strings(seg.Keys)
		segments = append(segments, seg)
	}
	return segments
}
