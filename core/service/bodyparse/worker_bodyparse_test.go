package bodyparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateISO(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"iso", "2025-03-03 10:05", "2025-03-03T10:05:00"},
		{"german numeric", "12.11.2024 08:15:30", "2024-11-12T08:15:30"},
		{"german long", "Montag, 3. März 2025 10:00", "2025-03-03T10:00:00"},
		{"english short", "Mon, 3 Mar 2025", "2025-03-03T00:00:00"},
		{"english month first", "March 5, 2024 9:30", "2024-03-05T09:30:00"},
		{"french", "5 févr. 2025", "2025-02-05T00:00:00"},
		{"spanish", "7 enero 2025", "2025-01-07T00:00:00"},
		{"garbage", "sometime soon", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDateISO(tt.input))
		})
	}
}

func TestMonthNumber(t *testing.T) {
	assert.Equal(t, 3, MonthNumber("März"))
	assert.Equal(t, 3, MonthNumber("Maerz"))
	assert.Equal(t, 8, MonthNumber("août"))
	assert.Equal(t, 12, MonthNumber("Dic."))
	assert.Equal(t, 0, MonthNumber("Smarch"))
}

var quotedBody = strings.Join([]string{
	"Thanks!",
	"",
	"Von: Max <m@x.de>",
	"Gesendet: Montag, 3. März 2025 10:00",
	"An: info@rubitherm.com",
	"Betreff: Anfrage",
	"   Teil 2",
	"",
	"Hallo",
}, "\n")

func TestParseHeaderSegments(t *testing.T) {
	segs := ParseHeaderSegments(splitLines(quotedBody))
	require.Len(t, segs, 1)

	seg := segs[0]
	assert.Equal(t, 3, seg.StartLine)
	assert.Equal(t, 7, seg.EndLine)
	assert.Equal(t, []string{HeaderFrom, HeaderSent, HeaderSubject, HeaderTo}, seg.Keys)
	assert.Equal(t, "Max <m@x.de>", seg.Headers[HeaderFrom])
	assert.Equal(t, "Anfrage Teil 2", seg.Headers[HeaderSubject])
	assert.Equal(t, "2025-03-03T10:00:00", seg.Headers["SENT_ISO"])
	require.Len(t, seg.Entries, 4)
	assert.Equal(t, "Gesendet", seg.Entries[1].Key)
}

func TestParse_BodyWindowFromLastHeader(t *testing.T) {
	res := Parse(quotedBody, 0, BottomUp)

	require.NotNil(t, res.BodyWindow)
	assert.Equal(t, BottomUp, res.Strategy)
	assert.Equal(t, 3, res.BodyWindow.StartLine)
	assert.Equal(t, 9, res.BodyWindow.EndLine)
	// Bracketed addresses lose their brackets in the visible text.
	assert.True(t, strings.HasPrefix(res.BodyWindow.Text, "Von: Max m@x.de"))
	assert.True(t, strings.HasSuffix(res.BodyWindow.Text, "Hallo"))

	require.NotEmpty(t, res.Clusters)
	assert.True(t, res.Clusters[0].Header, "selection starts at the cut")
}

func TestParse_TopDown(t *testing.T) {
	res := Parse(quotedBody, 1, TopDown)

	assert.Equal(t, TopDown, res.Strategy)
	assert.Nil(t, res.BodyWindow)
	assert.Len(t, res.Clusters, 3)
}

func TestBodyWindow_NoHeader(t *testing.T) {
	w := BodyWindow("\nHi\n\nBest\nAnn\n")

	assert.Equal(t, 2, w.StartLine)
	assert.Equal(t, 5, w.EndLine)
	assert.Equal(t, "Hi\n\nBest\nAnn", w.Text)
}

func TestBodyWindow_Empty(t *testing.T) {
	w := BodyWindow("   \n")
	assert.Equal(t, 0, w.StartLine)
	assert.Equal(t, "", w.Text)
}

func TestFindCandidates(t *testing.T) {
	lines := []string{"Tel: +49 621 123 456", "Montag 12 33 44 55", "", "www.rubitherm.de"}

	got := FindCandidates(lines)

	require.Len(t, got, 2)
	assert.Equal(t, CandidateTel, got[0].Type)
	assert.Equal(t, []string{"Tel: +49 621 123 456"}, got[0].Values)
	assert.Equal(t, 1, got[0].CLine)
	assert.Equal(t, Candidate{Type: CandidateURL, Values: []string{"www.rubitherm.de"}, Line: 4, CLine: 3}, got[1])
}

func TestClusterCandidates(t *testing.T) {
	cands := []Candidate{
		{Type: CandidateEmail, Line: 1, CLine: 1},
		{Type: CandidateTel, Line: 2, CLine: 2},
		{Type: CandidateURL, Line: 6, CLine: 4},
	}

	got := ClusterCandidates(cands, 1)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].StartLine)
	assert.Equal(t, 2, got[0].EndLine)
	assert.Len(t, got[0].Items, 2)
	assert.Equal(t, 6, got[1].StartLine)
	assert.Nil(t, ClusterCandidates(nil, 1))
}

func TestVisibleText(t *testing.T) {
	input := `<html><head><style>p{}</style></head><body><p>Hallo&nbsp;Welt</p>` +
		`Kontakt: <a href="http://hidden">Link</a><br>Mail <max@x.de><script>var a;</script></body></html>`

	assert.Equal(t, "Hallo Welt\nKontakt: Link\nMail max@x.de", VisibleText(input))
	assert.Equal(t, "plain <3 text", VisibleText("plain <3 text"))
}

const multipartEML = "From: \"Anna Schmidt\" <anna@acme.de>\r\n" +
	"To: info@rubitherm.com\r\n" +
	"Subject: =?UTF-8?Q?Anfrage_W=C3=A4rmespeicher?=\r\n" +
	"Message-ID: <abc@acme.de>\r\n" +
	"Date: Mon, 3 Mar 2025 10:00:00 +0100\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Hallo, wir m=C3=B6chten ein Angebot.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Hallo</p>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf; name=\"a.pdf\"\r\n" +
	"Content-Disposition: attachment; filename=\"a.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0=\r\n" +
	"--XYZ--\r\n"

func TestReadEML_Multipart(t *testing.T) {
	parsed, err := ReadEML([]byte(multipartEML))
	require.NoError(t, err)

	assert.Equal(t, "Anfrage Wärmespeicher", parsed.Meta.Subject)
	assert.Contains(t, parsed.Meta.From, "anna@acme.de")
	assert.Equal(t, "info@rubitherm.com", parsed.Meta.To)
	assert.Equal(t, "<abc@acme.de>", parsed.Meta.MessageID)
	assert.Equal(t, "Mon, 3 Mar 2025 10:00:00 +0100", parsed.Meta.Date)
	assert.Contains(t, parsed.Plain, "wir möchten ein Angebot.")
	assert.Contains(t, parsed.HTML, "<p>Hallo</p>")
	assert.NotContains(t, parsed.Plain, "JVBERi0")
}

func TestReadEML_HTMLOnly(t *testing.T) {
	raw := "From: a@b.de\r\nSubject: Hi\r\nContent-Type: text/html; charset=utf-8\r\n\r\n<div>Guten Tag</div><div>Anna</div>\r\n"

	parsed, err := ReadEML([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "Guten Tag\n\nAnna", parsed.Plain)
}
