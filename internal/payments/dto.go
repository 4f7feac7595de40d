package payments

// Notification is the payment gateway's asynchronous callback payload.
type Notification struct {
	OrderRef          string `json:"order_id" validate:"required"`
	StatusCode        string `json:"status_code" validate:"required"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	SignatureKey      string `json:"signature_key" validate:"required"`
	TransactionStatus string `json:"transaction_status" validate:"required"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// Outcome describes what the reconciler did with a notification.
type Outcome string

const (
	// OutcomeApplied means the order status changed and side effects ran.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means a guard suppressed the candidate transition.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored means the gateway status maps to no candidate.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnknownOrder means the order reference matched nothing. The
	// gateway still gets a success response so it stops retrying.
	OutcomeUnknownOrder Outcome = "unknown_order"
	// OutcomeRejected means the signature did not verify.
	OutcomeRejected Outcome = "rejected_signature"
)
