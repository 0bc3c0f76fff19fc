package enrichment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mailparser_server/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSignatureLLM struct {
	info   *domain.PersonInfo
	err    error
	prompt string
}

func (s *stubSignatureLLM) ExtractSignature(_ context.Context, text string) (*domain.PersonInfo, error) {
	s.prompt = text
	return s.info, s.err
}

type stubFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("404")
	}
	return page, nil
}

func TestGuessPerson(t *testing.T) {
	tests := []struct {
		name    string
		meta    domain.MailMeta
		wantNm  string
		wantCtx string
	}{
		{
			name:   "display name",
			meta:   domain.MailMeta{From: `"Anna Schmidt" <anna@firma.de>`, Subject: "Anfrage"},
			wantNm: "Anna Schmidt",
		},
		{
			name: "bare address",
			meta: domain.MailMeta{From: "anna@firma.de"},
		},
		{
			name:    "job application",
			meta:    domain.MailMeta{From: "Max <max@web.de>", Subject: "Bewerbung als Werkstudent"},
			wantNm:  "Max",
			wantCtx: ContextJobApplication,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := GuessPerson(tt.meta)
			assert.Equal(t, tt.meta.From, p.SenderRaw)
			assert.Equal(t, tt.wantNm, p.NameGuess)
			assert.Equal(t, tt.wantCtx, p.Context)
		})
	}
}

func TestGuessCompany(t *testing.T) {
	c := GuessCompany(domain.MailMeta{To: " info@rubitherm.com ", Subject: "Anfrage Angebot PCM"})
	assert.Equal(t, "info@rubitherm.com", c.TargetOrg)
	assert.Equal(t, TopicOffer, c.Topic)

	c = GuessCompany(domain.MailMeta{Subject: "Frage zu Lieferzeiten"})
	assert.Empty(t, c.Topic)
}

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "firma.de", SenderDomain("Anna <Anna@Firma.DE>"))
	assert.Equal(t, "mail.example.co.uk", SenderDomain("x@mail.example.co.uk"))
	assert.Empty(t, SenderDomain("no address here"))
}

func TestSignatureReader(t *testing.T) {
	t.Run("prefixes sender and fills lists", func(t *testing.T) {
		llm := &stubSignatureLLM{info: &domain.PersonInfo{FirstName: "Anna", Email: []string{"anna@firma.de"}}}
		r := NewSignatureReader(llm)

		info, err := r.Read(context.Background(), "Anna Schmidt\nFirma GmbH", "anna@firma.de")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(llm.prompt, "FROM_ADDRESS: anna@firma.de\n\n"))
		assert.Equal(t, "Anna", info.FirstName)
		assert.NotNil(t, info.Phone)
		assert.NotNil(t, info.URL)
		assert.NotNil(t, info.Address)
	})

	t.Run("falls back to body emails", func(t *testing.T) {
		llm := &stubSignatureLLM{info: &domain.PersonInfo{LastName: "Muster"}}
		r := NewSignatureReader(llm)

		window := "Max Muster\nmax@muster.de\nVertrieb: max@muster.de, sales@muster.de"
		info, err := r.Read(context.Background(), window, "")
		require.NoError(t, err)
		assert.Equal(t, window, llm.prompt)
		assert.Equal(t, []string{"max@muster.de", "sales@muster.de"}, info.Email)
	})

	t.Run("empty window", func(t *testing.T) {
		r := NewSignatureReader(&stubSignatureLLM{})
		_, err := r.Read(context.Background(), " \n ", "x@y.de")
		assert.Error(t, err)
	})

	t.Run("llm error", func(t *testing.T) {
		r := NewSignatureReader(&stubSignatureLLM{err: errors.New("boom")})
		_, err := r.Read(context.Background(), "Max", "")
		assert.Error(t, err)
	})
}

func TestPickWebsite(t *testing.T) {
	generic := func(d string) bool { return d == "gmail.com" || d == "web.de" }
	w := NewWebSummarizer(&stubFetcher{}, generic)

	tests := []struct {
		name     string
		websites []string
		from     string
		want     string
	}{
		{"extracted site", []string{"http://www.firma.de"}, "a@firma.de", "https://www.firma.de"},
		{"skips generic site", []string{"www.gmail.com", "shop.firma.de"}, "", "https://shop.firma.de"},
		{"sender domain", nil, "Anna <anna@mail.firma.de>", "https://www.firma.de"},
		{"generic sender", nil, "anna@web.de", ""},
		{"nothing", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.PickWebsite(tt.websites, tt.from))
		})
	}
}

func TestSummarizeText(t *testing.T) {
	text := "Welcome. " +
		"We focus on research and development of thermal storage. " +
		"The company was founded in Hamburg many years ago by engineers. " +
		"Our mission serves the whole industry sustainably. " +
		"Contact us today for a quick price estimate and delivery! " +
		"Our vision guides everything we build here at the plant."

	got := SummarizeText(text, 3)
	assert.Equal(t, []string{
		"Our mission serves the whole industry sustainably.",
		"We focus on research and development of thermal storage.",
		"Our vision guides everything we build here at the plant.",
	}, got)

	assert.Equal(t, []string{}, SummarizeText("Too short. Also short!", 3))
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Version 2.5 ships now. Really?  Yes! done")
	assert.Equal(t, []string{"Version 2.5 ships now.", "Really?", "Yes!", "done"}, got)
}

func TestWebSummarizerSummarize(t *testing.T) {
	home := `<html><body><nav>
<a href="/about-us">Über uns</a>
<a href="https://other.com/about">Extern</a>
<a href="/kontakt">Kontakt</a>
<a href="mailto:about@firma.de">Mail</a>
<a href="https://shop.firma.de/company#top">Shop</a>
</nav><p>Hi.</p></body></html>`
	about := `<html><head><title>x</title></head><body>
<p>We focus on research and development of thermal storage.</p>
<p>Our mission serves the whole industry sustainably.</p>
</body></html>`

	f := &stubFetcher{pages: map[string]string{
		"https://www.firma.de":          home,
		"https://www.firma.de/about-us": about,
	}}
	w := NewWebSummarizer(f, nil)

	sum, err := w.Summarize(context.Background(), "https://www.firma.de")
	require.NoError(t, err)

	assert.Equal(t, "https://www.firma.de", sum.Website)
	assert.Equal(t, []string{
		"https://www.firma.de",
		"https://www.firma.de/about-us",
		"https://shop.firma.de/company",
	}, sum.Pages)
	assert.Equal(t, []string{
		"Our mission serves the whole industry sustainably.",
		"We focus on research and development of thermal storage.",
	}, sum.Summary)
	assert.NotContains(t, f.fetched, "https://other.com/about")
}

func TestWebSummarizerHomeFailure(t *testing.T) {
	w := NewWebSummarizer(&stubFetcher{}, nil)

	_, err := w.Summarize(context.Background(), "https://www.firma.de")
	assert.Error(t, err)

	_, err = w.Summarize(context.Background(), "not a url")
	assert.Error(t, err)
}
