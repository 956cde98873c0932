package enums

import "fmt"

// OfferStatus tracks an offer through its lifecycle.
type OfferStatus string

const (
	OfferStatusDraft    OfferStatus = "draft"
	OfferStatusSent     OfferStatus = "sent"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusDeclined OfferStatus = "declined"
)

var validOfferStatuses = []OfferStatus{
	OfferStatusDraft,
	OfferStatusSent,
	OfferStatusAccepted,
	OfferStatusDeclined,
}

// String implements fmt.Stringer.
func (s OfferStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OfferStatus.
func (s OfferStatus) IsValid() bool {
	for _, candidate := range validOfferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to target.
// Accepted and declined are terminal.
func (s OfferStatus) CanTransitionTo(target OfferStatus) bool {
	switch s {
	case OfferStatusDraft:
		return target == OfferStatusSent
	case OfferStatusSent:
		return target == OfferStatusAccepted || target == OfferStatusDeclined
	default:
		return false
	}
}

// ParseOfferStatus converts raw input into an OfferStatus.
func ParseOfferStatus(value string) (OfferStatus, error) {
	for _, candidate := range validOfferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer status %q", value)
}
