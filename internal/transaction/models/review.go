package models

// Analyst decision codes sent with a completed manual review.
const (
	DecisionApproved = 100 // no record; the negative certificate may be issued
	DecisionRejected = 200
)

// ValidDecision reports whether code is a known analyst decision.
func ValidDecision(code int) bool {
	return code == DecisionApproved || code == DecisionRejected
}

// Default location labels recorded as a transaction moves between systems.
const (
	LocationGMQ  = "PR.gov GMQ"
	LocationRCI  = "SIJC RCI"
	LocationPRPD = "PRPD"
	LocationMail = "Mail"
)
