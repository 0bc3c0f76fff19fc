package bodyparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Month names in EN/DE/FR/ES, keyed by their folded form.
var monthNumbers = map[string]int{
	// English
	"january": 1, "jan": 1, "february": 2, "feb": 2, "march": 3, "mar": 3, "april": 4, "apr": 4,
	"may": 5, "june": 6, "jun": 6, "july": 7, "jul": 7, "august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9, "october": 10, "oct": 10, "november": 11, "nov": 11,
	"december": 12, "dec": 12,
	// German
	"januar": 1, "februar": 2, "maerz": 3, "mrz": 3, "mai": 5, "juni": 6, "juli": 7,
	"oktober": 10, "okt": 10, "dezember": 12, "dez": 12,
	// French
	"janvier": 1, "janv": 1, "fevrier": 2, "fevr": 2, "mars": 3, "avril": 4, "avr": 4,
	"juin": 6, "juillet": 7, "juil": 7, "aout": 8, "septembre": 9, "octobre": 10,
	"novembre": 11, "decembre": 12,
	// Spanish
	"enero": 1, "ene": 1, "febrero": 2, "marzo": 3, "abril": 4, "abr": 4, "mayo": 5,
	"junio": 6, "julio": 7, "agosto": 8, "ago": 8, "septiembre": 9, "setiembre": 9,
	"octubre": 10, "noviembre": 11, "diciembre": 12, "dic": 12,
}

var umlautReplacer = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

var (
	isoDateRe      = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})(?:[ T](\d{2}):(\d{2})(?::(\d{2}))?)?`)
	germanDateRe   = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	dayMonthYearRe = regexp.MustCompile(`(\d{1,2})\.?\s+([A-Za-zÀ-ÿ.]+)\s+(\d{4})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	monthDayYearRe = regexp.MustCompile(`([A-Za-zÀ-ÿ.]+)\s+(\d{1,2}),?\s+(\d{4})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
)

// foldToken lowercases, drops dots and strips accents ("Févr." -> "fevr").
func foldToken(t string) string {
	t = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t)), ".", "")
	t = umlautReplacer.Replace(t)
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, t)
	if err != nil {
		return t
	}
	return folded
}

// MonthNumber maps a month name in any supported language to 1-12, or 0.
func MonthNumber(name string) int {
	return monthNumbers[foldToken(name)]
}

// ParseDateISO normalizes a quoted "Date:"/"Gesendet:" value to
// YYYY-MM-DDTHH:MM:SS. Unrecognized values yield "".
func ParseDateISO(value string) string {
	s := weekdayRe.ReplaceAllString(strings.TrimSpace(value), " ")
	s = strings.ReplaceAll(s, ",", " ")

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return formatISO(atoi(m[1]), atoi(m[2]), atoi(m[3]), m[4:7])
	}
	if m := germanDateRe.FindStringSubmatch(s); m != nil {
		return formatISO(atoi(m[3]), atoi(m[2]), atoi(m[1]), m[4:7])
	}
	if m := dayMonthYearRe.FindStringSubmatch(s); m != nil {
		if mon := MonthNumber(m[2]); mon != 0 {
			return formatISO(atoi(m[3]), mon, atoi(m[1]), m[4:7])
		}
	}
	if m := monthDayYearRe.FindStringSubmatch(s); m != nil {
		if mon := MonthNumber(m[1]); mon != 0 {
			return formatISO(atoi(m[3]), mon, atoi(m[2]), m[4:7])
		}
	}
	return ""
}

func formatISO(year, month, day int, clock []string) string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d",
		year, month, day, atoi(clock[0]), atoi(clock[1]), atoi(clock[2]))
}

// atoi treats empty and malformed groups as zero.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
