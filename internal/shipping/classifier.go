package shipping

import "strings"

// StatusClassifier maps free-form carrier status copy onto the three events
// the fulfillment flow reacts to. Carrier vocabulary is inconsistent across
// providers and languages, so classification is substring-based and each
// table is easy to extend.
type StatusClassifier interface {
	IsDelivered(status string) bool
	IsFailed(status string) bool
	IsShippingStarted(status string) bool
}

// Event is the classified meaning of a carrier status string.
type Event string

const (
	EventNone            Event = "none"
	EventShippingStarted Event = "shipping_started"
	EventDelivered       Event = "delivered"
	EventFailed          Event = "failed"
)

// Classify runs the classifier predicates in priority order: a delivered or
// failed signal wins over a shipping-started one.
func Classify(classifier StatusClassifier, status string) Event {
	switch {
	case classifier.IsDelivered(status):
		return EventDelivered
	case classifier.IsFailed(status):
		return EventFailed
	case classifier.IsShippingStarted(status):
		return EventShippingStarted
	default:
		return EventNone
	}
}

var (
	deliveredMarkers = []string{
		"delivered",
		"diterima",
		"received by",
		"pod",
	}
	failedMarkers = []string{
		"failed",
		"failure",
		"returned",
		"return to",
		"gagal",
		"dikembalikan",
		"cancel",
	}
	shippingStartedMarkers = []string{
		"picked up",
		"pickup",
		"manifest",
		"in transit",
		"on the way",
		"on process",
		"dikirim",
		"diangkut",
		"drop off",
	}
)

type substringClassifier struct{}

// NewSubstringClassifier returns the default classifier backed by fixed
// marker tables.
func NewSubstringClassifier() StatusClassifier {
	return substringClassifier{}
}

func (substringClassifier) IsDelivered(status string) bool {
	return matchesAny(status, deliveredMarkers)
}

func (substringClassifier) IsFailed(status string) bool {
	return matchesAny(status, failedMarkers)
}

func (substringClassifier) IsShippingStarted(status string) bool {
	return matchesAny(status, shippingStartedMarkers)
}

func matchesAny(status string, markers []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if normalized == "" {
		return false
	}
	for _, marker := range markers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}
