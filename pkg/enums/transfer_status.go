package enums

import "fmt"

// TransferStatus tracks the lifecycle of a channel stock transfer request.
type TransferStatus string

const (
	TransferStatusRequested TransferStatus = "requested"
	TransferStatusApproved  TransferStatus = "approved"
	TransferStatusExecuted  TransferStatus = "executed"
	TransferStatusRejected  TransferStatus = "rejected"
)

var validTransferStatuses = []TransferStatus{
	TransferStatusRequested,
	TransferStatusApproved,
	TransferStatusExecuted,
	TransferStatusRejected,
}

// String implements fmt.Stringer.
func (t TransferStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransferStatus.
func (t TransferStatus) IsValid() bool {
	for _, candidate := range validTransferStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the transfer can no longer change state.
func (t TransferStatus) IsTerminal() bool {
	return t == TransferStatusExecuted || t == TransferStatusRejected
}

// ParseTransferStatus converts raw input into a TransferStatus.
func ParseTransferStatus(value string) (TransferStatus, error) {
	for _, candidate := range validTransferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer status %q", value)
}
