package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"restaurant-receptionist/internal/facts"
	"restaurant-receptionist/internal/models"
)

// Passage is one retrievable piece of business knowledge.
type Passage struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"-"`
}

// Retriever returns up to k passages relevant to query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

// Chunk splits a snapshot into passages: basic info, hours and location,
// one per menu section, one per FAQ entry, policies, reservation rules and
// special notes.
func Chunk(snap *facts.Snapshot) []Passage {
	data := snap.Data()
	var out []Passage

	basic := []string{data.BusinessName}
	if data.Description != "" {
		basic = append(basic, data.Description)
	}
	var services []string
	for k, v := range data.Services {
		if v {
			services = append(services, strings.ReplaceAll(k, "_", " "))
		}
	}
	sort.Strings(services)
	if len(services) > 0 {
		basic = append(basic, "Services: "+strings.Join(services, ", ")+".")
	}
	out = append(out, Passage{ID: "basic", Title: "About " + data.BusinessName, Text: strings.Join(basic, " ")})

	var loc []string
	if h := snap.Hours(); h != "" {
		loc = append(loc, h)
	}
	if addr := data.Address.String(); addr != "" {
		loc = append(loc, "Address: "+addr+".")
	}
	if data.Address.Phone != "" {
		loc = append(loc, "Phone: "+data.Address.Phone+".")
	}
	for _, k := range sortedKeys(data.LocationInfo) {
		loc = append(loc, data.LocationInfo[k])
	}
	if len(loc) > 0 {
		out = append(out, Passage{ID: "hours_location", Title: "Hours and location", Text: strings.Join(loc, " ")})
	}

	for _, section := range data.MenuSections {
		lines := make([]string, 0, len(section.Items))
		for _, it := range section.Items {
			line := fmt.Sprintf("%s (%s)", it.Name, models.CentsFromDollars(it.Price))
			if it.Description != "" {
				line += ": " + it.Description
			}
			lines = append(lines, line)
		}
		out = append(out, Passage{
			ID:    "menu." + strings.ReplaceAll(strings.ToLower(section.Name), " ", "_"),
			Title: "Menu: " + section.Name,
			Text:  section.Name + ": " + strings.Join(lines, "; ") + ".",
		})
	}

	for i, f := range data.FAQ {
		out = append(out, Passage{
			ID:    fmt.Sprintf("faq.%d", i),
			Title: f.Question,
			Text:  f.Question + " " + f.Answer,
		})
	}

	if len(data.Policies) > 0 {
		var lines []string
		for _, k := range sortedKeys(data.Policies) {
			lines = append(lines, data.Policies[k])
		}
		out = append(out, Passage{ID: "policies", Title: "Policies", Text: strings.Join(lines, " ")})
	}

	if rr := data.ReservationRules; rr.MaxPartySize > 0 || rr.AdvanceBookingDays > 0 {
		var lines []string
		if rr.MaxPartySize > 0 {
			lines = append(lines, fmt.Sprintf("Reservations are available for parties of %d to %d.", max(rr.MinPartySize, 1), rr.MaxPartySize))
		}
		if rr.LargePartyThreshold > 0 {
			lines = append(lines, fmt.Sprintf("Parties of %d or more should call ahead.", rr.LargePartyThreshold))
		}
		if rr.AdvanceBookingDays > 0 {
			lines = append(lines, fmt.Sprintf("Bookings open up to %d days in advance.", rr.AdvanceBookingDays))
		}
		out = append(out, Passage{ID: "reservations", Title: "Reservation rules", Text: strings.Join(lines, " ")})
	}

	if len(data.SpecialNotes) > 0 {
		out = append(out, Passage{ID: "notes", Title: "Special notes", Text: strings.Join(data.SpecialNotes, " ")})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
