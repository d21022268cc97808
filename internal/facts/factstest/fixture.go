// Package factstest provides a business-data fixture for tests in other
// packages.
package factstest

import "restaurant-receptionist/internal/facts"

// HoursText is the stored hours string of the fixture.
const HoursText = "We're open Monday through Sunday from 11am to 10pm."

func Data() facts.BusinessData {
	return facts.BusinessData{
		BusinessName: "Cedar Garden Lebanese Kitchen",
		Description:  "Family-owned Lebanese restaurant serving wraps, grill plates and mezze.",
		HoursSummary: HoursText,
		Hours: map[string]string{
			"monday": "11am-10pm", "tuesday": "11am-10pm", "wednesday": "11am-10pm",
			"thursday": "11am-10pm", "friday": "11am-11pm", "saturday": "11am-11pm", "sunday": "12pm-9pm",
		},
		Address: facts.Address{
			Street: "418 Cedar Avenue", City: "Springfield", State: "IL", Zip: "62701",
			Phone: "(217) 555-0142", Website: "cedargarden.example",
		},
		Services: map[string]bool{"halal_meat": true, "catering": true},
		LocationInfo: map[string]string{
			"parking": "Free parking is available in the lot behind the restaurant.",
		},
		FAQ: []facts.FAQ{
			{Question: "Do you have vegetarian options?", Answer: "Yes, our falafel, hummus and fattoush are all vegetarian.", Tags: []string{"vegetarian", "vegan"}},
			{Question: "Is anything gluten-free?", Answer: "Our grill plates and salads can be made gluten-free.", Tags: []string{"gluten_free"}},
			{Question: "Do you cater?", Answer: "Yes, we cater events with trays of mezze and grill items. Please call 48 hours ahead.", Tags: []string{"catering"}},
		},
		MenuSections: []facts.MenuSection{
			{Name: "Wraps", Items: []facts.MenuItem{
				{Name: "Falafel Wrap", Price: 14.00, Synonyms: []string{"falafel sandwich"}},
				{Name: "Chicken Shawarma Wrap", Price: 15.50, Synonyms: []string{"chicken shawarma", "shawarma wrap"}},
			}},
			{Name: "Desserts", Items: []facts.MenuItem{
				{Name: "Baklava", Price: 6.00},
			}},
			{Name: "Drinks", Items: []facts.MenuItem{
				{Name: "Coke", Price: 3.50, Synonyms: []string{"coca cola", "cola"}},
				{Name: "Diet Coke", Price: 3.50},
			}},
		},
		Policies:         map[string]string{"cancellation": "Please cancel reservations at least two hours in advance."},
		ReservationRules: facts.ReservationRules{MinPartySize: 1, MaxPartySize: 12, LargePartyThreshold: 8, AdvanceBookingDays: 30},
		PopularItems:     []string{"Chicken Shawarma Wrap", "Falafel Wrap", "Baklava"},
	}
}

func Snapshot() *facts.Snapshot {
	return facts.NewSnapshot(Data())
}
