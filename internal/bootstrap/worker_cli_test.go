package bootstrap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mailparser_server/adapter/out/provider"
	"mailparser_server/config"
	"mailparser_server/core/service/pipeline"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directEML = "From: Anna Schmidt <anna.schmidt@firma-beispiel.de>\r\n" +
	"To: info@rubitherm.com\r\n" +
	"Subject: Anfrage Angebot PCM\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Sehr geehrte Damen und Herren,\r\n" +
	"bitte senden Sie uns ein Angebot.\r\n" +
	"\r\n" +
	"Mit freundlichen Grüßen\r\n" +
	"Anna Schmidt\r\n" +
	"Firma Beispiel GmbH\r\n" +
	"Tel: +49 30 1234567\r\n"

func TestRunParseAndExport(t *testing.T) {
	dir := t.TempDir()
	emlPath := filepath.Join(dir, "inquiry.eml")
	require.NoError(t, os.WriteFile(emlPath, []byte(directEML), 0o644))

	svc := pipeline.NewService(pipeline.Deps{})

	var out bytes.Buffer
	require.NoError(t, RunParse(context.Background(), svc, []string{emlPath}, &out))

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "file", result["source"])

	resultsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, "1.json"), out.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, "broken.json"), []byte("{"), 0o644))

	var csvOut bytes.Buffer
	require.NoError(t, RunExport(resultsDir, "", &csvOut))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(csvOut.String(), "\ufeff")), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "anna.schmidt@firma-beispiel.de")
}

func TestRunParseReportsFailures(t *testing.T) {
	svc := pipeline.NewService(pipeline.Deps{})

	err := RunParse(context.Background(), svc, nil, &bytes.Buffer{})
	assert.Error(t, err)

	err = RunParse(context.Background(), svc, []string{filepath.Join(t.TempDir(), "missing.eml")}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "1 of 1 files failed")
}

func TestMailSourceConfig(t *testing.T) {
	cfg := &config.Config{
		MailSource:           "gmail",
		IMAPHost:             "outlook.office365.com",
		IMAPPort:             993,
		IMAPUser:             "info@rubitherm.com",
		IMAPMailbox:          "INBOX",
		AuthMethod:           config.AuthXOAuth2,
		TenantID:             "tenant",
		GmailCredentialsJSON: `{"installed":{}}`,
		GmailTokenJSON:       `{"access_token":"t"}`,
		GmailUser:            "me",
	}

	fc := mailSourceConfig(cfg)

	assert.Equal(t, "gmail", fc.Kind)
	assert.Equal(t, []byte(`{"installed":{}}`), fc.Gmail.CredentialsJSON)
	assert.Equal(t, []byte(`{"access_token":"t"}`), fc.Gmail.TokenJSON)
	assert.Equal(t, "me", fc.Gmail.User)
	assert.Equal(t, "outlook.office365.com", fc.IMAP.Host)
	assert.Equal(t, 993, fc.IMAP.Port)
	assert.Equal(t, config.AuthXOAuth2, fc.IMAP.AuthMethod)
	assert.Equal(t, "tenant", fc.TenantID)

	cfg.GmailCredentialsJSON = "not json"
	_, err := provider.NewMailSource(context.Background(), mailSourceConfig(cfg), nil, zerolog.Nop())
	assert.Error(t, err)
}
