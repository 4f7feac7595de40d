package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a checkout transaction.
type TransactionStatus string

const (
	TransactionStatusWaitingPayment   TransactionStatus = "WAITING_PAYMENT"
	TransactionStatusPaidWaitingAdmin TransactionStatus = "PAID_WAITING_ADMIN"
	TransactionStatusOnProcess        TransactionStatus = "ON_PROCESS"
	TransactionStatusOnDelivery       TransactionStatus = "ON_DELIVERY"
	TransactionStatusCompleted        TransactionStatus = "COMPLETED"
	TransactionStatusFailed           TransactionStatus = "FAILED"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusWaitingPayment,
	TransactionStatusPaidWaitingAdmin,
	TransactionStatusOnProcess,
	TransactionStatusOnDelivery,
	TransactionStatusCompleted,
	TransactionStatusFailed,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (t TransactionStatus) IsTerminal() bool {
	return t == TransactionStatusCompleted || t == TransactionStatusFailed
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
