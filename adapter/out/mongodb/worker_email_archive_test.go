package mongodb

import (
	"strings"
	"testing"
	"time"

	"mailparser_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybeCompress(t *testing.T) {
	small := []byte("Subject: hi\r\n\r\nshort")
	data, compressed, err := maybeCompress(small)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, small, data)

	large := []byte(strings.Repeat("Sehr geehrte Damen und Herren, ", 100))
	data, compressed, err = maybeCompress(large)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Less(t, len(data), len(large))

	back, err := decompress(data)
	require.NoError(t, err)
	assert.Equal(t, large, back)
}

func TestToDocument(t *testing.T) {
	first := "Anna"
	result := &domain.ProcessedEmail{
		ID:       uuid.New(),
		Meta:     domain.MailMeta{From: "anna@firma.de", Subject: "Anfrage", MessageID: "<1@firma.de>"},
		Source:   domain.SourceIMAP,
		SourceID: "12",
		Extraction: &domain.ExtractionResult{
			ExtractedBy: domain.MethodDirectEmail,
			Data:        domain.ExtractedData{FirstName: &first, Email: []string{"anna@firma.de"}},
		},
		Intention:   &domain.IntentResult{Intent: domain.IntentRequest},
		ProcessedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	doc, err := toDocument(result, []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, result.ID.String(), doc.ID)
	assert.Equal(t, "<1@firma.de>", doc.MessageID)
	assert.Equal(t, "anna@firma.de", doc.SenderEmail)
	assert.Equal(t, "request", doc.Intent)
	assert.Equal(t, 3, doc.RawSize)
	assert.False(t, doc.Compressed)

	var back domain.ProcessedEmail
	require.NoError(t, json.Unmarshal(doc.Result, &back))
	assert.Equal(t, result.ID, back.ID)
	assert.Equal(t, "Anna", *back.Extraction.Data.FirstName)
}
