package enums

import "fmt"

// ReferralRedemptionStatus tracks a referral code redemption tied to a transaction.
type ReferralRedemptionStatus string

const (
	ReferralRedemptionStatusPending  ReferralRedemptionStatus = "PENDING"
	ReferralRedemptionStatusSuccess  ReferralRedemptionStatus = "SUCCESS"
	ReferralRedemptionStatusCanceled ReferralRedemptionStatus = "CANCELED"
)

var validReferralRedemptionStatuses = []ReferralRedemptionStatus{
	ReferralRedemptionStatusPending,
	ReferralRedemptionStatusSuccess,
	ReferralRedemptionStatusCanceled,
}

// String implements fmt.Stringer.
func (r ReferralRedemptionStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReferralRedemptionStatus.
func (r ReferralRedemptionStatus) IsValid() bool {
	for _, candidate := range validReferralRedemptionStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferralRedemptionStatus converts raw input into a ReferralRedemptionStatus.
func ParseReferralRedemptionStatus(value string) (ReferralRedemptionStatus, error) {
	for _, candidate := range validReferralRedemptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid referral redemption status %q", value)
}
