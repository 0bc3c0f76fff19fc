package nlp

import (
	"testing"

	"mailparser_server/core/port/out"
	"mailparser_server/core/service/extraction"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitiesEmptyText(t *testing.T) {
	r := NewProseRecognizer(zerolog.Nop())
	assert.Nil(t, r.Entities(""))
	assert.Nil(t, r.Entities("   \n"))
}

func TestSentenceLines(t *testing.T) {
	lines, prepared := sentenceLines("  John Miller \n\nSales Director\nLondon.\nCall us!")
	assert.Equal(t, []string{"John Miller", "Sales Director", "London.", "Call us!"}, lines)
	assert.Equal(t, "John Miller.\nSales Director.\nLondon.\nCall us!", prepared)
}

func TestLineOf(t *testing.T) {
	lines := []string{"John Miller", "Berlin, Germany", "John Miller"}
	assert.Equal(t, 0, lineOf(lines, 0, "John Miller"))
	assert.Equal(t, 2, lineOf(lines, 1, "John Miller"))
	assert.Equal(t, 1, lineOf(lines, 0, "Berlin , Germany"))
	assert.Equal(t, -1, lineOf(lines, 0, "Paris"))
}

func TestEntitiesSignatureLines(t *testing.T) {
	r := NewProseRecognizer(zerolog.Nop())

	ents := r.Entities("John Miller\nSales Director\nLondon")

	var person *out.Entity
	for i := range ents {
		assert.Contains(t, []string{out.EntityPerson, out.EntityLocation}, ents[i].Label)
		if ents[i].Label == out.EntityPerson {
			person = &ents[i]
			break
		}
	}
	require.NotNil(t, person, "entities: %+v", ents)
	assert.Equal(t, "John Miller", person.Text)
	assert.Equal(t, 0, person.Line)
}

func TestModelLoadedOnce(t *testing.T) {
	r := NewProseRecognizer(zerolog.Nop())
	r.Warmup()
	require.NotNil(t, r.model)

	first := r.model
	r.Entities("Anna Schmidt\nBerlin")
	assert.Same(t, first, r.model)
}

func TestExtractorNameFallback(t *testing.T) {
	ex := extraction.NewExtractor(nil, NewProseRecognizer(zerolog.Nop()))

	tests := []struct {
		name string
		text string
	}{
		{"name only", "Hello,\nplease send us details.\nBest regards\nJohn Miller"},
		{"name with role and city", "Hello,\nplease send us details.\nBest regards\nJohn Miller\nSales Director\nLondon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ex.Extract(tt.text)
			require.NotNil(t, res.Data.FirstName)
			require.NotNil(t, res.Data.LastName)
			assert.Equal(t, "John", *res.Data.FirstName)
			assert.Equal(t, "Miller", *res.Data.LastName)
		})
	}
}
