// Package jobs names the job classes and their argument shapes. Producers
// and workers both import it so the wire contract lives in one place.
package jobs

const (
	ReceiptEmail          = "ReceiptEmailWorker"
	Rapsheet              = "RapsheetWorker"
	RetrieveCertificate   = "RetrieveCertificateWorker"
	GenerateCertificate   = "GenerateCertificateWorker"
	FinalEmail            = "FinalEmailWorker"
	Email                 = "EmailWorker"
	CertificateValidation = "CertificateValidationWorker"
)

// IDArgs is the argument of jobs that only need the record id.
type IDArgs struct {
	ID string `json:"id"`
}

// RetrieveArgs asks RCI for the certificate, optionally through the callback.
type RetrieveArgs struct {
	ID                string `json:"id"`
	CallbackRequested bool   `json:"callback_requested"`
}

// FinalEmailArgs carries the rendered certificate email.
type FinalEmailArgs struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"`
	Subject  string `json:"subject,omitempty"`
	Text     string `json:"text"`
	HTML     string `json:"html"`
}

// EmailArgs is a generic notification.
type EmailArgs struct {
	ID      string `json:"id,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Job is a class and payload to enqueue alongside a record save.
type Job struct {
	Class   string
	Payload any
}
