package models

import (
	"fmt"

	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/sentinel"
)

// State is a transaction's position in the processing pipeline.
type State string

const (
	StateNew      State = "new"
	StateReceived State = "received"

	StateSendingReceipt  State = "sending_receipt"
	StateReceiptSent     State = "receipt_sent"
	StateRetryingReceipt State = "retrying_receipt"
	StateFailedReceipt   State = "failed_receipt"

	StateValidatingRapsheet       State = "validating_rapsheet"
	StateRapsheetValidated        State = "rapsheet_validated"
	StateRapsheetValidationFailed State = "rapsheet_validation_failed"
	StateRetryingRapsheet         State = "retrying_rapsheet"
	StateFailedRapsheet           State = "failed_rapsheet"
	StateManualReview             State = "manual_review"
	StateReviewCompleted          State = "review_completed"

	StateWaitingForCertificate State = "waiting_for_certificate"

	StateRetrievingCertificate State = "retrieving_certificate"
	StateCertificateRetrieved  State = "certificate_retrieved"
	StateRetryingRetrieval     State = "retrying_retrieval"
	StateFailedRetrieval       State = "failed_retrieval"

	StateCertificateReady   State = "certificate_ready"
	StateGeneratingPDF      State = "generating_pdf"
	StateRetryingGeneration State = "retrying_generation"
	StateFailedGeneration   State = "failed_generation"

	StateMailingCertificate State = "mailing_certificate"
	StateRetryingMailing    State = "retrying_mailing"
	StateFailedMailing      State = "failed_mailing"

	StateDone State = "done"
)

// AllStates lists every state.
func AllStates() []State {
	return []State{
		StateNew, StateReceived,
		StateSendingReceipt, StateReceiptSent, StateRetryingReceipt, StateFailedReceipt,
		StateValidatingRapsheet, StateRapsheetValidated, StateRapsheetValidationFailed,
		StateRetryingRapsheet, StateFailedRapsheet, StateManualReview, StateReviewCompleted,
		StateWaitingForCertificate,
		StateRetrievingCertificate, StateCertificateRetrieved, StateRetryingRetrieval, StateFailedRetrieval,
		StateCertificateReady, StateGeneratingPDF, StateRetryingGeneration, StateFailedGeneration,
		StateMailingCertificate, StateRetryingMailing, StateFailedMailing,
		StateDone,
	}
}

// IsTerminal reports whether no worker moves the transaction further on its own.
func (s State) IsTerminal() bool {
	switch s {
	case StateDone, StateRapsheetValidationFailed,
		StateFailedReceipt, StateFailedRapsheet, StateFailedRetrieval,
		StateFailedGeneration, StateFailedMailing:
		return true
	}
	return false
}

// IsFailed reports whether s is a retries-exhausted state.
func (s State) IsFailed() bool {
	switch s {
	case StateFailedReceipt, StateFailedRapsheet, StateFailedRetrieval,
		StateFailedGeneration, StateFailedMailing:
		return true
	}
	return false
}

// Event triggers a transition.
type Event string

const (
	EventSaveFirst          Event = "save_first"
	EventStartReceipt       Event = "start_receipt"
	EventReceiptSent        Event = "receipt_sent"
	EventStartValidation    Event = "start_validation"
	EventValidationOK       Event = "validation_ok"
	EventValidationRejected Event = "validation_rejected"
	EventValidationFuzzy    Event = "validation_fuzzy"
	EventReviewComplete     Event = "review_complete"
	EventAwaitCertificate   Event = "await_certificate"
	EventStartRetrieval     Event = "start_retrieval"
	EventRetrieved          Event = "retrieved"
	EventCertificateReady   Event = "certificate_ready"
	EventStartGeneration    Event = "start_generation"
	EventPDFWritten         Event = "pdf_written"
	EventStartMailing       Event = "start_mailing"
	EventMailSent           Event = "mail_sent"
	EventRetry              Event = "retry"
	EventFail               Event = "fail"
	EventRequeue            Event = "requeue"
)

type edge struct {
	from  State
	event Event
}

// transitions is the complete machine. Start events are accepted from their
// own in-progress state and from the stage's retrying state so that a
// redelivered job can run again.
var transitions = map[edge]State{
	{StateNew, EventSaveFirst}: StateReceived,

	{StateReceived, EventStartReceipt}:        StateSendingReceipt,
	{StateSendingReceipt, EventStartReceipt}:  StateSendingReceipt,
	{StateRetryingReceipt, EventStartReceipt}: StateSendingReceipt,
	{StateSendingReceipt, EventReceiptSent}:   StateReceiptSent,
	{StateSendingReceipt, EventRetry}:         StateRetryingReceipt,
	{StateSendingReceipt, EventFail}:          StateFailedReceipt,
	{StateRetryingReceipt, EventFail}:         StateFailedReceipt,

	{StateReceiptSent, EventStartValidation}:           StateValidatingRapsheet,
	{StateReceiptSent, EventAwaitCertificate}:          StateWaitingForCertificate,
	{StateValidatingRapsheet, EventStartValidation}:    StateValidatingRapsheet,
	{StateRetryingRapsheet, EventStartValidation}:      StateValidatingRapsheet,
	{StateValidatingRapsheet, EventValidationOK}:       StateRapsheetValidated,
	{StateValidatingRapsheet, EventValidationRejected}: StateRapsheetValidationFailed,
	{StateValidatingRapsheet, EventValidationFuzzy}:    StateManualReview,
	{StateValidatingRapsheet, EventRetry}:              StateRetryingRapsheet,
	{StateValidatingRapsheet, EventFail}:               StateFailedRapsheet,
	{StateRetryingRapsheet, EventFail}:                 StateFailedRapsheet,

	{StateManualReview, EventReviewComplete}:        StateReviewCompleted,
	{StateReviewCompleted, EventAwaitCertificate}:   StateWaitingForCertificate,
	{StateReviewCompleted, EventStartRetrieval}:     StateRetrievingCertificate,
	{StateReviewCompleted, EventValidationRejected}: StateRapsheetValidationFailed,

	{StateRapsheetValidated, EventAwaitCertificate}: StateWaitingForCertificate,
	{StateRapsheetValidated, EventStartRetrieval}:   StateRetrievingCertificate,

	{StateWaitingForCertificate, EventStartRetrieval}:   StateRetrievingCertificate,
	{StateWaitingForCertificate, EventCertificateReady}: StateCertificateReady,

	{StateRetrievingCertificate, EventStartRetrieval}:  StateRetrievingCertificate,
	{StateRetryingRetrieval, EventStartRetrieval}:      StateRetrievingCertificate,
	{StateDone, EventStartRetrieval}:                   StateRetrievingCertificate,
	{StateRetrievingCertificate, EventRetrieved}:       StateCertificateRetrieved,
	{StateRetrievingCertificate, EventRetry}:           StateRetryingRetrieval,
	{StateRetrievingCertificate, EventFail}:            StateFailedRetrieval,
	{StateRetryingRetrieval, EventFail}:                StateFailedRetrieval,
	{StateCertificateRetrieved, EventAwaitCertificate}: StateWaitingForCertificate,
	{StateCertificateRetrieved, EventCertificateReady}: StateCertificateReady,

	{StateCertificateReady, EventCertificateReady}:  StateCertificateReady,
	{StateCertificateReady, EventStartGeneration}:   StateGeneratingPDF,
	{StateGeneratingPDF, EventStartGeneration}:      StateGeneratingPDF,
	{StateRetryingGeneration, EventStartGeneration}: StateGeneratingPDF,
	{StateGeneratingPDF, EventPDFWritten}:           StateMailingCertificate,
	{StateGeneratingPDF, EventRetry}:                StateRetryingGeneration,
	{StateGeneratingPDF, EventFail}:                 StateFailedGeneration,
	{StateRetryingGeneration, EventFail}:            StateFailedGeneration,

	{StateMailingCertificate, EventStartMailing}: StateMailingCertificate,
	{StateRetryingMailing, EventStartMailing}:    StateMailingCertificate,
	{StateMailingCertificate, EventMailSent}:     StateDone,
	{StateMailingCertificate, EventRetry}:        StateRetryingMailing,
	{StateMailingCertificate, EventFail}:         StateFailedMailing,
	{StateRetryingMailing, EventFail}:            StateFailedMailing,
}

// Next returns the state event leads to from s.
func Next(s State, e Event) (State, bool) {
	to, ok := transitions[edge{s, e}]
	return to, ok
}

// Events lists the events accepted from s.
func (s State) Events() []Event {
	var out []Event
	for k := range transitions {
		if k.from == s {
			out = append(out, k.event)
		}
	}
	return out
}

func invalidTransition(id string, from State, e Event) error {
	return dErrors.Wrap(
		fmt.Errorf("%w: %s on %s", sentinel.ErrInvalidState, e, from),
		dErrors.CodeInvalidState,
		fmt.Sprintf("transaction %s cannot %s from %s", id, e, from),
	)
}

// Stage names an externally requeueable pipeline stage.
type Stage string

const (
	StageReceipt    Stage = "receipt"
	StageRapsheet   Stage = "rapsheet"
	StageRetrieval  Stage = "retrieval"
	StageGeneration Stage = "generation"
)

// Stages lists requeueable stages in pipeline order.
func Stages() []Stage {
	return []Stage{StageReceipt, StageRapsheet, StageRetrieval, StageGeneration}
}

// EntryState is the state a stage's worker expects to start from.
func (s Stage) EntryState() (State, bool) {
	switch s {
	case StageReceipt:
		return StateReceived, true
	case StageRapsheet:
		return StateReceiptSent, true
	case StageRetrieval:
		return StateWaitingForCertificate, true
	case StageGeneration:
		return StateCertificateReady, true
	}
	return "", false
}
