// Package notify renders citizen notifications for a transaction and wraps
// them as EmailWorker jobs so they can be enqueued inside a save.
package notify

import (
	"gmq/internal/jobs"
	"gmq/internal/mailer"
	"gmq/internal/transaction/models"
)

// Language maps the transaction language onto the template locale.
func Language(tx *models.Transaction) mailer.Language {
	if tx.Language == models.LanguageEnglish {
		return mailer.English
	}
	return mailer.Spanish
}

// Render fills tpl for tx.
func Render(tx *models.Transaction, tpl mailer.Template, reason string) (mailer.Content, error) {
	return mailer.Render(tpl, Language(tx), mailer.Data{
		Name:          tx.FullName(),
		TransactionID: tx.ID,
		NumericID:     tx.NumericID,
		Reason:        reason,
	})
}

// Job renders tpl for tx as an EmailWorker job addressed to the requester.
func Job(tx *models.Transaction, tpl mailer.Template, reason string) (jobs.Job, error) {
	c, err := Render(tx, tpl, reason)
	if err != nil {
		return jobs.Job{}, err
	}
	return jobs.Job{
		Class: jobs.Email,
		Payload: jobs.EmailArgs{
			ID:      tx.ID,
			To:      tx.Email,
			Subject: c.Subject,
			Text:    c.Text,
			HTML:    c.HTML,
		},
	}, nil
}
