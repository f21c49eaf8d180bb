package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/grant-drafter/ingestion"
)

func TestLoadSubmissionFile(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.pdf")
	require.NoError(t, os.WriteFile(deck, []byte("%PDF-1.4"), 0o644))

	path := filepath.Join(dir, "submission.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
company:
  name: Acme Inc.
  website: acme.example
  competitors_uvp: Cheaper robots
grant:
  program_name: Innovate Grant
  amount: "50000"
budget: Staff 40k
attachments:
  - `+deck+`
  - https://acme.example/about
application_form: https://grants.example/form.pdf
`), 0o644))

	sf, err := loadSubmissionFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Cheaper robots", sf.profile().CompetitorsUVP)
	assert.Equal(t, "Innovate Grant", sf.grant().ProgramName)

	sub, err := sf.submission()
	require.NoError(t, err)
	assert.Equal(t, "acme.example", sub.Website)
	require.Len(t, sub.Attachments, 2)
	assert.Equal(t, ingestion.KindPDFFile, sub.Attachments[0].Kind)
	assert.Equal(t, "deck.pdf", sub.Attachments[0].Name)
	assert.Equal(t, ingestion.KindWebURL, sub.Attachments[1].Kind)
	assert.Nil(t, sub.Guidelines)
	require.NotNil(t, sub.ApplicationForm)
	assert.Equal(t, ingestion.KindPDFURL, sub.ApplicationForm.Kind)
}

func TestReadAnswerSkipsBlankLines(t *testing.T) {
	var out bytes.Buffer
	scanner := bufio.NewScanner(strings.NewReader("\n   \nMarch 2027\n"))

	answer, err := readAnswer(scanner, &out)
	require.NoError(t, err)
	assert.Equal(t, "March 2027", answer)
	assert.Equal(t, 2, strings.Count(out.String(), "Please enter an answer."))

	_, err = readAnswer(scanner, &out)
	assert.Error(t, err)
}

func TestFailedSources(t *testing.T) {
	extracted := ingestion.Extracted{
		Website: &ingestion.Extraction{Label: "Company Website", Text: "ok"},
		Attachments: []ingestion.Extraction{
			{Label: "PDF: deck.pdf", Err: &ingestion.SourceError{Kind: ingestion.ParseError, Source: "deck.pdf"}},
		},
	}
	failed := failedSources(extracted)
	require.Len(t, failed, 1)
	assert.Equal(t, "PDF: deck.pdf", failed[0].Label)
	assert.Len(t, allSources(extracted), 2)
}
