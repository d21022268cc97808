package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		label    string
		expected Intent
	}{
		{"hours", IntentHours},
		{"  Reservation. ", IntentReservation},
		{"general question", IntentGeneralQuestion},
		{"Location", IntentDirection},
		{"**menu**", IntentMenu},
		{"weather", IntentUnknown},
		{"", IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseIntent(tt.label))
		})
	}
}

func TestCents_String(t *testing.T) {
	assert.Equal(t, "$42.00", Cents(4200).String())
	assert.Equal(t, "$3.50", CentsFromDollars(3.5).String())
	assert.Equal(t, "$0.07", Cents(7).String())
	assert.Equal(t, "-$1.25", Cents(-125).String())
	assert.Equal(t, Cents(1999), CentsFromDollars(19.99))
}

func TestOrder_TotalIsRecomputed(t *testing.T) {
	wrap := CatalogItem{Name: "Falafel Wrap", Price: 1400}
	coke := CatalogItem{Name: "Coke", Price: 350}

	o := Order{Items: []LineItem{NewLineItem(3, wrap), NewLineItem(2, coke)}}
	assert.Equal(t, Cents(4200), o.Items[0].LineTotal)
	assert.Equal(t, Cents(700), o.Items[1].LineTotal)
	assert.Equal(t, Cents(4900), o.Total())

	// a stale LineTotal never leaks into the total
	o.Items[0].LineTotal = 1
	assert.Equal(t, Cents(4900), o.Total())
}

func TestReservation_Completeness(t *testing.T) {
	r := Reservation{}
	assert.False(t, r.IsComplete())
	assert.Equal(t, []string{"party size", "date", "time"}, r.Missing())

	four := 4
	day := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	r.PartySize = &four
	r.Date = &day
	assert.False(t, r.IsComplete())

	r.Time = &TimeOfDay{Hour: 19}
	assert.True(t, r.IsComplete())

	slot, ok := r.Slot(time.UTC)
	assert.True(t, ok)
	assert.Equal(t, 19, slot.Hour())
	assert.Equal(t, "7:00 PM", r.Time.Spoken())
	assert.Equal(t, "19:00", r.Time.String())

	clone := r.Clone()
	*clone.PartySize = 6
	assert.Equal(t, 4, *r.PartySize)
}
