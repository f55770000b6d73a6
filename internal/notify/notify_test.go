package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/transaction/models"
)

func TestJobAddressesRequesterInTheirLanguage(t *testing.T) {
	tx := &models.Transaction{ID: "PRCAP1", Email: "ana@example.com", FirstName: "ana", LastName: "rivera", Language: models.LanguageEnglish}

	job, err := Job(tx, mailer.TemplateRejection, "No record")
	require.NoError(t, err)
	assert.Equal(t, jobs.Email, job.Class)

	args, ok := job.Payload.(jobs.EmailArgs)
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", args.To)
	assert.Contains(t, args.Text, "Greetings Ana Rivera")
	assert.Contains(t, args.Text, "No record")
	assert.NotEmpty(t, args.HTML)
}

func TestLanguageDefaultsToSpanish(t *testing.T) {
	assert.Equal(t, mailer.Spanish, Language(&models.Transaction{}))
	assert.Equal(t, mailer.English, Language(&models.Transaction{Language: models.LanguageEnglish}))
}
