package models

import "strings"

// Intent is the closed set of caller purposes the receptionist understands.
type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentHours           Intent = "hours"
	IntentMenu            Intent = "menu"
	IntentPricing         Intent = "pricing"
	IntentDirection       Intent = "direction"
	IntentReservation     Intent = "reservation"
	IntentOrder           Intent = "order"
	IntentGeneralQuestion Intent = "general_question"
	IntentGoodbye         Intent = "goodbye"
	IntentUnknown         Intent = "unknown"
)

var allIntents = []Intent{
	IntentGreeting,
	IntentHours,
	IntentMenu,
	IntentPricing,
	IntentDirection,
	IntentReservation,
	IntentOrder,
	IntentGeneralQuestion,
	IntentGoodbye,
	IntentUnknown,
}

var intentAliases = map[string]Intent{
	"location":   IntentDirection,
	"directions": IntentDirection,
	"address":    IntentDirection,
	"general":    IntentGeneralQuestion,
	"question":   IntentGeneralQuestion,
	"booking":    IntentReservation,
	"prices":     IntentPricing,
}

// AllIntents returns the enumeration in declaration order.
func AllIntents() []Intent {
	out := make([]Intent, len(allIntents))
	copy(out, allIntents)
	return out
}

// ParseIntent maps a free-form label onto the enumeration. Anything it does
// not recognize becomes IntentUnknown.
func ParseIntent(label string) Intent {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.Trim(s, " \t\r\n.,;:!?\"'`*")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")

	for _, in := range allIntents {
		if string(in) == s {
			return in
		}
	}
	if in, ok := intentAliases[s]; ok {
		return in
	}
	return IntentUnknown
}

// IsTransactional reports whether the intent is handled by the order or
// reservation accumulator.
func (i Intent) IsTransactional() bool {
	return i == IntentOrder || i == IntentReservation
}

// Provenance identifies the cascade stage that produced a classification.
type Provenance string

const (
	ProvenanceClassifier         Provenance = "classifier"
	ProvenanceRule               Provenance = "rule"
	ProvenanceGenerativeFallback Provenance = "generative_fallback"
	ProvenanceNone               Provenance = "none"
)

type Classification struct {
	Intent     Intent     `json:"intent"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
}

// Unclassified is the result when no cascade stage produced a label.
func Unclassified() Classification {
	return Classification{Intent: IntentUnknown, Confidence: 0, Provenance: ProvenanceNone}
}
