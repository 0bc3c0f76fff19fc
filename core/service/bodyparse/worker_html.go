package bodyparse

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	htmlMarkerRe     = regexp.MustCompile(`<\s*(?:/?[A-Za-z]|!DOCTYPE|!--)`)
	bracketedEmailRe = regexp.MustCompile(`<\s*([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})\s*>`)
	spaceRunRe       = regexp.MustCompile(`[ \t]{2,}`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
)

// Elements rendered as line breaks.
var blockAtoms = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Table: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// Elements whose content is never visible.
var hiddenAtoms = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Head: true,
}

// VisibleText renders HTML as plain text with line structure kept.
// Input without tag markers is returned unchanged.
func VisibleText(s string) string {
	if !htmlMarkerRe.MatchString(s) {
		return s
	}
	// "<user@host>" would otherwise be read as a start tag.
	s = bracketedEmailRe.ReplaceAllString(s, "$1")

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return normalizeWhitespace(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if hiddenAtoms[tok.DataAtom] && tt == html.StartTagToken {
				hidden++
			}
			if blockAtoms[tok.DataAtom] {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			tok := z.Token()
			if hiddenAtoms[tok.DataAtom] && hidden > 0 {
				hidden--
			}
			if blockAtoms[tok.DataAtom] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
