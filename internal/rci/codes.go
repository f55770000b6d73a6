package rci

// Business codes carried in RCI 400 responses.
const (
	CodeMissingParameters = 1001
	CodeInvalidLength     = 2001
	CodeNotFound          = 2002
	CodeInvalidSSN        = 2003
	CodeInvalidLicense    = 2004
	CodeInvalidName       = 2005
	CodeFuzzyMatch        = 3001
	CodeRecordFound       = 4001
)

// Outcome is how a 400 code affects the transaction.
type Outcome int

const (
	// OutcomeUnknown codes are treated as transient failures.
	OutcomeUnknown Outcome = iota
	OutcomeRejected
	OutcomeManualReview
)

type codeInfo struct {
	outcome Outcome
	spanish string
	english string
}

var codeTable = map[int]codeInfo{
	CodeMissingParameters: {OutcomeRejected,
		"La información provista está incompleta. Por favor verifique los datos e intente nuevamente.",
		"The information provided is incomplete. Please verify your data and try again."},
	CodeInvalidLength: {OutcomeRejected,
		"La información provista no es válida. Por favor verifique los datos e intente nuevamente.",
		"The information provided is not valid. Please verify your data and try again."},
	CodeNotFound: {OutcomeRejected,
		"No encontramos un registro que coincida con la información provista.",
		"We could not find a record matching the information provided."},
	CodeInvalidSSN: {OutcomeRejected,
		"El número de seguro social provisto no coincide con nuestros registros.",
		"The social security number provided does not match our records."},
	CodeInvalidLicense: {OutcomeRejected,
		"El número de licencia provisto no coincide con nuestros registros.",
		"The license number provided does not match our records."},
	CodeInvalidName: {OutcomeRejected,
		"El nombre provisto no coincide con nuestros registros.",
		"The name provided does not match our records."},
	CodeFuzzyMatch: {OutcomeManualReview,
		"Su solicitud requiere revisión manual por un analista.",
		"Your request requires a manual review by an analyst."},
	CodeRecordFound: {OutcomeRejected,
		"No es posible emitir un certificado negativo por medios electrónicos. Por favor visite un cuartel de la Policía de Puerto Rico.",
		"A negative certificate cannot be issued electronically. Please visit a Puerto Rico Police station."},
}

// Classify returns the outcome of a 400 code.
func Classify(code int) Outcome {
	return codeTable[code].outcome
}

// Message returns the citizen-facing explanation of code. english selects
// the language; unknown codes return an empty string.
func Message(code int, english bool) string {
	info, ok := codeTable[code]
	if !ok {
		return ""
	}
	if english {
		return info.english
	}
	return info.spanish
}
