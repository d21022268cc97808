package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"restaurant-receptionist/internal/facts/factstest"
	"restaurant-receptionist/internal/models"
)

func TestMatcher_Match(t *testing.T) {
	m := NewDefault(factstest.Snapshot().Catalog())

	tests := []struct {
		name string
		text string
		want models.Intent
		ok   bool
	}{
		{"hours", "What time do you close tonight?", models.IntentHours, true},
		{"reservation beats hours", "Can I book a table for when you open?", models.IntentReservation, true},
		{"pricing beats order", "How much is the falafel wrap?", models.IntentPricing, true},
		{"catalog item is an order", "Two falafel wraps please", models.IntentOrder, true},
		{"synonym is an order", "a coca cola", models.IntentOrder, true},
		{"explicit order phrase", "I'd like to order for pickup", models.IntentOrder, true},
		{"direction", "Where are you located?", models.IntentDirection, true},
		{"parking is direction", "Is there parking nearby", models.IntentDirection, true},
		{"dietary is menu", "Do you have vegan options", models.IntentMenu, true},
		{"menu", "Can I see the menu", models.IntentMenu, true},
		{"goodbye", "Thanks, bye!", models.IntentGoodbye, true},
		{"greeting", "Hi there", models.IntentGreeting, true},
		{"word boundary", "this is high quality", models.IntentUnknown, false},
		{"no rule", "tell me a joke", models.IntentUnknown, false},
		{"empty", "   ", models.IntentUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMatcher_SkipsEmptyRules(t *testing.T) {
	m := NewMatcher([]Rule{{Intent: models.IntentMenu}, {Intent: models.IntentGreeting, Phrases: []string{"hello"}}}, nil)
	got, ok := m.Match("hello")
	assert.True(t, ok)
	assert.Equal(t, models.IntentGreeting, got)
}
