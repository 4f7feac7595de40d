package enums

import "fmt"

// VoucherClaimStatus tracks a user's hold on a voucher.
type VoucherClaimStatus string

const (
	VoucherClaimStatusClaimed  VoucherClaimStatus = "CLAIMED"
	VoucherClaimStatusReserved VoucherClaimStatus = "RESERVED"
	VoucherClaimStatusUsed     VoucherClaimStatus = "USED"
)

var validVoucherClaimStatuses = []VoucherClaimStatus{
	VoucherClaimStatusClaimed,
	VoucherClaimStatusReserved,
	VoucherClaimStatusUsed,
}

// String implements fmt.Stringer.
func (v VoucherClaimStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VoucherClaimStatus.
func (v VoucherClaimStatus) IsValid() bool {
	for _, candidate := range validVoucherClaimStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherClaimStatus converts raw input into a VoucherClaimStatus.
func ParseVoucherClaimStatus(value string) (VoucherClaimStatus, error) {
	for _, candidate := range validVoucherClaimStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher claim status %q", value)
}
