package accumulator

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-receptionist/internal/facts/factstest"
	"restaurant-receptionist/internal/models"
)

func TestReservationParser_Dates(t *testing.T) {
	p := NewReservationParser(time.UTC, func() time.Time { return fixedNow })

	tests := []struct {
		text string
		want string
	}{
		{"tonight", "2026-10-19"},
		{"tomorrow evening", "2026-10-20"},
		{"the day after tomorrow", "2026-10-21"},
		{"this friday", "2026-10-23"},
		{"monday", "2026-10-19"},
		{"next monday", "2026-10-26"},
		{"october 25", "2026-10-25"},
		{"Oct 25th", "2026-10-25"},
		{"the 25th of october", "2026-10-25"},
		{"10/25", "2026-10-25"},
		{"the 25th", "2026-10-25"},
		{"the 5th", "2026-11-05"},
		{"january 3", "2027-01-03"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := p.Parse(tt.text)
			require.NotNil(t, got.Date)
			assert.Equal(t, tt.want, got.Date.Format("2006-01-02"))
		})
	}
}

func TestReservationParser_Times(t *testing.T) {
	p := NewReservationParser(time.UTC, func() time.Time { return fixedNow })

	tests := []struct {
		text string
		want string
	}{
		{"7pm", "19:00"},
		{"7:30 pm", "19:30"},
		{"at 7 p.m.", "19:00"},
		{"11 am", "11:00"},
		{"12 pm", "12:00"},
		{"19:00", "19:00"},
		{"at 7", "19:00"},
		{"around eight", "20:00"},
		{"8 o'clock", "20:00"},
		{"noon", "12:00"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := p.Parse(tt.text)
			require.NotNil(t, got.Time)
			assert.Equal(t, tt.want, got.Time.String())
		})
	}
}

func TestReservationParser_PartySize(t *testing.T) {
	p := NewReservationParser(time.UTC, func() time.Time { return fixedNow })

	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"a table for 4", 4, true},
		{"party of six", 6, true},
		{"we'll have 5 people", 5, true},
		{"just the two of us", 2, true},
		{"for 2 at 8pm", 2, true},
		{"for 7 pm", 0, false},
		{"I'd like a reservation for 7 pm tomorrow", 0, false},
		{"can I book a table for 7:30 tonight", 0, false},
		{"reservation for 8 o'clock", 0, false},
		{"a table for 4 tomorrow", 4, true},
		{"table for 2 at 7:30", 2, true},
		{"sometime tomorrow", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := p.Parse(tt.text)
			if !tt.ok {
				assert.Nil(t, got.PartySize)
				return
			}
			require.NotNil(t, got.PartySize)
			assert.Equal(t, tt.want, *got.PartySize)
		})
	}
}

func TestReservationParser_SpecialRequests(t *testing.T) {
	p := NewReservationParser(time.UTC, func() time.Time { return fixedNow })

	got := p.Parse("It's a birthday, and we need a high chair on the patio")

	assert.Equal(t, []string{"birthday celebration", "high chair", "outdoor seating"}, got.SpecialRequests)
	assert.True(t, p.Parse("hello there").Empty())
}

func TestMergeOrder(t *testing.T) {
	catalog := factstest.Snapshot().Catalog()
	wrap, _ := catalog.Lookup("Falafel Wrap")
	coke, _ := catalog.Lookup("Coke")
	prior := models.Order{
		State: models.OrderSummarizing,
		Items: []models.LineItem{models.NewLineItem(2, wrap), models.NewLineItem(1, coke)},
	}

	tests := []struct {
		name  string
		frags []OrderFragment
		want  []models.LineItem
	}{
		{"add existing", []OrderFragment{{Kind: FragmentAdd, Item: wrap, Quantity: 1}},
			[]models.LineItem{models.NewLineItem(3, wrap), models.NewLineItem(1, coke)}},
		{"set", []OrderFragment{{Kind: FragmentSet, Item: coke, Quantity: 4}},
			[]models.LineItem{models.NewLineItem(2, wrap), models.NewLineItem(4, coke)}},
		{"remove all", []OrderFragment{{Kind: FragmentRemove, Item: wrap}},
			[]models.LineItem{models.NewLineItem(1, coke)}},
		{"remove more than held", []OrderFragment{{Kind: FragmentRemove, Item: coke, Quantity: 3}},
			[]models.LineItem{models.NewLineItem(2, wrap)}},
		{"zero add ignored", []OrderFragment{{Kind: FragmentAdd, Item: coke, Quantity: 0}},
			[]models.LineItem{models.NewLineItem(2, wrap), models.NewLineItem(1, coke)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeOrder(prior, tt.frags)
			assert.Equal(t, tt.want, got.Items)
		})
	}

	// prior is never mutated
	assert.Equal(t, 2, prior.Items[0].Quantity)
	assert.Len(t, prior.Items, 2)
}

func TestMergeReservation_ReplacesFields(t *testing.T) {
	four, six := 4, 6
	seven := models.TimeOfDay{Hour: 19}
	prior := models.Reservation{PartySize: &four, Time: &seven, SpecialRequests: []string{"booth"}}

	got := MergeReservation(prior, ReservationFragments{PartySize: &six, SpecialRequests: []string{"booth", "window table"}})

	assert.Equal(t, 6, *got.PartySize)
	assert.Equal(t, "19:00", got.Time.String())
	assert.Equal(t, []string{"booth", "window table"}, got.SpecialRequests)
	assert.Equal(t, 4, *prior.PartySize)
}

func TestMergeOrder_RunningTotalProperty(t *testing.T) {
	items := factstest.Snapshot().Catalog().Items()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("total equals the sum of quantity times unit price", prop.ForAll(
		func(picks []int, qtys []int) bool {
			order := models.Order{}
			want := make(map[string]int)
			for i := 0; i < len(picks) && i < len(qtys); i++ {
				item := items[picks[i]%len(items)]
				order = MergeOrder(order, []OrderFragment{{Kind: FragmentAdd, Item: item, Quantity: qtys[i]}})
				want[item.Name] += qtys[i]
			}

			if len(order.Items) != len(want) {
				return false
			}
			var expected models.Cents
			for _, li := range order.Items {
				if li.Quantity != want[li.Name] || li.LineTotal != models.Cents(int64(li.Quantity))*li.UnitPrice {
					return false
				}
				expected += li.LineTotal
			}
			return order.Total() == expected
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOf(gen.IntRange(1, 12)),
	))

	properties.TestingRun(t)
}
