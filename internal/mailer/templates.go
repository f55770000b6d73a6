package mailer

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	dErrors "gmq/pkg/domain-errors"
)

// Template names a notification.
type Template string

const (
	TemplateReceipt      Template = "receipt"
	TemplateCertificate  Template = "certificate"
	TemplateRejection    Template = "rejection"
	TemplateFailure      Template = "failure"
	TemplateManualReview Template = "manual_review"
)

// Language selects the message locale. Anything other than English renders
// in Spanish.
type Language string

const (
	English Language = "english"
	Spanish Language = "spanish"
)

// Data fills template placeholders.
type Data struct {
	Name          string
	TransactionID string
	NumericID     int64
	Reason        string
}

// Content is a rendered notification.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

type localized struct {
	subject string
	text    string
	html    string
}

var catalog = map[Template]map[Language]localized{
	TemplateReceipt: {
		Spanish: {
			subject: "Recibimos su solicitud de Certificado de Antecedentes Penales",
			text:    "Saludos {{.Name}},\n\nHemos recibido su solicitud de Certificado de Antecedentes Penales. Su número de transacción es {{.TransactionID}}.\n\nLe notificaremos por este medio cuando su certificado esté listo.\n\nPR.gov",
			html:    "<p>Saludos {{.Name}},</p><p>Hemos recibido su solicitud de Certificado de Antecedentes Penales. Su número de transacción es <strong>{{.TransactionID}}</strong>.</p><p>Le notificaremos por este medio cuando su certificado esté listo.</p><p>PR.gov</p>",
		},
		English: {
			subject: "We received your Certificate of Good Standing request",
			text:    "Greetings {{.Name}},\n\nWe have received your Certificate of Good Standing request. Your transaction number is {{.TransactionID}}.\n\nWe will notify you by email when your certificate is ready.\n\nPR.gov",
			html:    "<p>Greetings {{.Name}},</p><p>We have received your Certificate of Good Standing request. Your transaction number is <strong>{{.TransactionID}}</strong>.</p><p>We will notify you by email when your certificate is ready.</p><p>PR.gov</p>",
		},
	},
	TemplateCertificate: {
		Spanish: {
			subject: "Su Certificado de Antecedentes Penales",
			text:    "Saludos {{.Name}},\n\nAdjunto encontrará su Certificado de Antecedentes Penales correspondiente a la transacción {{.TransactionID}}.\n\nPR.gov",
			html:    "<p>Saludos {{.Name}},</p><p>Adjunto encontrará su Certificado de Antecedentes Penales correspondiente a la transacción <strong>{{.TransactionID}}</strong>.</p><p>PR.gov</p>",
		},
		English: {
			subject: "Your Certificate of Good Standing",
			text:    "Greetings {{.Name}},\n\nAttached you will find your Certificate of Good Standing for transaction {{.TransactionID}}.\n\nPR.gov",
			html:    "<p>Greetings {{.Name}},</p><p>Attached you will find your Certificate of Good Standing for transaction <strong>{{.TransactionID}}</strong>.</p><p>PR.gov</p>",
		},
	},
	TemplateRejection: {
		Spanish: {
			subject: "No pudimos emitir su Certificado de Antecedentes Penales",
			text:    "Saludos {{.Name}},\n\nNo pudimos emitir un certificado para la transacción {{.TransactionID}}.\n\n{{.Reason}}\n\nPR.gov",
			html:    "<p>Saludos {{.Name}},</p><p>No pudimos emitir un certificado para la transacción <strong>{{.TransactionID}}</strong>.</p><p>{{.Reason}}</p><p>PR.gov</p>",
		},
		English: {
			subject: "We could not issue your Certificate of Good Standing",
			text:    "Greetings {{.Name}},\n\nWe could not issue a certificate for transaction {{.TransactionID}}.\n\n{{.Reason}}\n\nPR.gov",
			html:    "<p>Greetings {{.Name}},</p><p>We could not issue a certificate for transaction <strong>{{.TransactionID}}</strong>.</p><p>{{.Reason}}</p><p>PR.gov</p>",
		},
	},
	TemplateFailure: {
		Spanish: {
			subject: "Problema procesando su solicitud",
			text:    "Saludos {{.Name}},\n\nOcurrió un problema procesando la transacción {{.TransactionID}} y no pudimos completarla. Por favor intente nuevamente más tarde.\n\nPR.gov",
			html:    "<p>Saludos {{.Name}},</p><p>Ocurrió un problema procesando la transacción <strong>{{.TransactionID}}</strong> y no pudimos completarla. Por favor intente nuevamente más tarde.</p><p>PR.gov</p>",
		},
		English: {
			subject: "Problem processing your request",
			text:    "Greetings {{.Name}},\n\nA problem occurred while processing transaction {{.TransactionID}} and we could not complete it. Please try again later.\n\nPR.gov",
			html:    "<p>Greetings {{.Name}},</p><p>A problem occurred while processing transaction <strong>{{.TransactionID}}</strong> and we could not complete it. Please try again later.</p><p>PR.gov</p>",
		},
	},
	TemplateManualReview: {
		Spanish: {
			subject: "Su solicitud está en revisión",
			text:    "Saludos {{.Name}},\n\nSu solicitud {{.TransactionID}} requiere una revisión manual por un analista de la Policía de Puerto Rico. Le notificaremos cuando la revisión concluya.\n\nPR.gov",
			html:    "<p>Saludos {{.Name}},</p><p>Su solicitud <strong>{{.TransactionID}}</strong> requiere una revisión manual por un analista de la Policía de Puerto Rico. Le notificaremos cuando la revisión concluya.</p><p>PR.gov</p>",
		},
		English: {
			subject: "Your request is under review",
			text:    "Greetings {{.Name}},\n\nYour request {{.TransactionID}} requires a manual review by a Puerto Rico Police analyst. We will notify you once the review concludes.\n\nPR.gov",
			html:    "<p>Greetings {{.Name}},</p><p>Your request <strong>{{.TransactionID}}</strong> requires a manual review by a Puerto Rico Police analyst. We will notify you once the review concludes.</p><p>PR.gov</p>",
		},
	},
}

type compiled struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = compile()

func compile() map[Template]map[Language]compiled {
	out := make(map[Template]map[Language]compiled, len(catalog))
	for name, langs := range catalog {
		out[name] = make(map[Language]compiled, len(langs))
		for lang, l := range langs {
			id := string(name) + "." + string(lang)
			out[name][lang] = compiled{
				subject: l.subject,
				text:    texttemplate.Must(texttemplate.New(id).Parse(l.text)),
				html:    htmltemplate.Must(htmltemplate.New(id).Parse(l.html)),
			}
		}
	}
	return out
}

// Render fills template t in lang. Names are title-cased for the greeting.
func Render(t Template, lang Language, data Data) (Content, error) {
	langs, ok := templates[t]
	if !ok {
		return Content{}, dErrors.New(dErrors.CodeInternal, "unknown email template "+string(t))
	}
	if lang != English {
		lang = Spanish
	}
	tpl := langs[lang]
	data.Name = titleName(data.Name, lang)

	var text, html bytes.Buffer
	if err := tpl.text.Execute(&text, data); err != nil {
		return Content{}, dErrors.Wrap(err, dErrors.CodeInternal, "render email text")
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return Content{}, dErrors.Wrap(err, dErrors.CodeInternal, "render email html")
	}
	return Content{Subject: tpl.subject, Text: text.String(), HTML: html.String()}, nil
}

func titleName(name string, lang Language) string {
	tag := language.Spanish
	if lang == English {
		tag = language.English
	}
	return cases.Title(tag).String(strings.ToLower(strings.TrimSpace(name)))
}
