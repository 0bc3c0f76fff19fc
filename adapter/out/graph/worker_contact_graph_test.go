package graph

import (
	"testing"
	"time"

	"mailparser_server/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInquiryParams(t *testing.T) {
	first := "Anna"
	id := uuid.New()
	result := &domain.ProcessedEmail{
		ID:     id,
		Meta:   domain.MailMeta{Subject: "Anfrage PCM"},
		Source: domain.SourceGmail,
		Extraction: &domain.ExtractionResult{Data: domain.ExtractedData{
			FirstName: &first,
			Email:     []string{"Anna@Firma.de"},
			Company:   []string{"Firma GmbH"},
		}},
		Intention: &domain.IntentResult{
			Intent:         domain.IntentOffer,
			Confidence:     0.9,
			ActiveCategory: []string{"phasecube"},
		},
		Web:         &domain.WebSummary{Website: "https://www.firma.de"},
		ProcessedAt: time.Unix(1700000000, 0),
	}

	p := inquiryParams(result)
	require.NotNil(t, p)
	assert.Equal(t, id.String(), p["id"])
	assert.Equal(t, "anna@firma.de", p["email"])
	assert.Equal(t, "Anna", p["firstName"])
	assert.Nil(t, p["lastName"])
	assert.Nil(t, p["phone"])
	assert.Equal(t, "Firma GmbH", p["company"])
	assert.Equal(t, "https://www.firma.de", p["website"])
	assert.Equal(t, "offer", p["intent"])
	assert.Equal(t, []string{"phasecube"}, p["categories"])
	assert.Equal(t, int64(1700000000), p["processedAt"])
}

func TestInquiryParamsWithoutSender(t *testing.T) {
	assert.Nil(t, inquiryParams(nil))
	assert.Nil(t, inquiryParams(&domain.ProcessedEmail{}))
	assert.Nil(t, inquiryParams(&domain.ProcessedEmail{Extraction: &domain.ExtractionResult{}}))
}
