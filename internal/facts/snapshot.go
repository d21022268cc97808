package facts

import (
	"fmt"
	"sort"
	"strings"

	"restaurant-receptionist/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var weekdayOrder = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// DayHours is one row of the hours table.
type DayHours struct {
	Day   string
	Hours string
}

// Snapshot is an immutable, indexed view over one BusinessData document.
// It is safe for concurrent use.
type Snapshot struct {
	data    BusinessData
	catalog models.Catalog
	facts   map[string]string
	dietary map[string]string
}

func NewSnapshot(data BusinessData) *Snapshot {
	s := &Snapshot{
		data:    data,
		catalog: buildCatalog(data),
		facts:   make(map[string]string),
		dietary: make(map[string]string),
	}
	s.indexFacts()
	s.indexDietary()
	return s
}

func buildCatalog(data BusinessData) models.Catalog {
	var items []models.CatalogItem
	for _, section := range data.MenuSections {
		for _, it := range section.Items {
			items = append(items, models.CatalogItem{
				Name:        it.Name,
				Price:       models.CentsFromDollars(it.Price),
				Section:     section.Name,
				Description: it.Description,
				Synonyms:    it.Synonyms,
				Tags:        it.Tags,
			})
		}
	}
	return models.NewCatalog(items...)
}

func (s *Snapshot) indexFacts() {
	put := func(k, v string) {
		if v != "" {
			s.facts[k] = v
		}
	}

	put("business_name", s.data.BusinessName)
	put("description", s.data.Description)
	put("hours", s.Hours())
	put("address", s.data.Address.String())
	put("phone", s.data.Address.Phone)
	put("website", s.data.Address.Website)
	for k, v := range s.data.LocationInfo {
		put(strings.ToLower(k), v)
	}
	for k, v := range s.data.Policies {
		put("policy."+strings.ToLower(k), v)
	}
	for _, f := range s.data.FAQ {
		for _, tag := range f.Tags {
			key := "faq." + strings.ToLower(tag)
			if _, exists := s.facts[key]; !exists {
				put(key, f.Answer)
			}
		}
	}
	for k, v := range s.data.Services {
		if v {
			put("service."+strings.ToLower(k), "yes")
		} else {
			put("service."+strings.ToLower(k), "no")
		}
	}
	if len(s.data.SpecialNotes) > 0 {
		put("special_notes", strings.Join(s.data.SpecialNotes, " "))
	}
	for k, v := range s.data.Facts {
		put(strings.ToLower(k), v)
	}
}

func (s *Snapshot) indexDietary() {
	for k, v := range s.data.Dietary {
		s.dietary[strings.ToLower(k)] = v
	}
	if s.data.Services["halal_meat"] || s.data.Services["halal"] {
		if _, ok := s.dietary["halal"]; !ok {
			s.dietary["halal"] = fmt.Sprintf("Yes, we serve halal meat at %s. If you have any specific questions or allergies, we're happy to help.", s.data.BusinessName)
		}
	}
	for _, flag := range []string{"vegetarian", "vegan", "gluten_free"} {
		if _, ok := s.dietary[flag]; ok {
			continue
		}
		if answer, ok := s.facts["faq."+flag]; ok {
			s.dietary[flag] = answer
		}
	}
}

// Hours returns the stored hours text verbatim when the document has one,
// otherwise a rendering of the hours table.
func (s *Snapshot) Hours() string {
	if s.data.HoursSummary != "" {
		return s.data.HoursSummary
	}
	table := s.HoursTable()
	if len(table) == 0 {
		return ""
	}
	// cases.Caser is stateful, one per call
	title := cases.Title(language.English)
	parts := make([]string, 0, len(table))
	for _, row := range table {
		parts = append(parts, fmt.Sprintf("%s: %s", title.String(row.Day), row.Hours))
	}
	return "Our hours are: " + strings.Join(parts, "; ")
}

// HoursTable returns the hours rows in weekday order, unknown keys last.
func (s *Snapshot) HoursTable() []DayHours {
	var out []DayHours
	seen := make(map[string]bool)
	for _, day := range weekdayOrder {
		for k, v := range s.data.Hours {
			if strings.ToLower(k) == day {
				out = append(out, DayHours{Day: day, Hours: v})
				seen[k] = true
			}
		}
	}
	var rest []string
	for k := range s.data.Hours {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, DayHours{Day: strings.ToLower(k), Hours: s.data.Hours[k]})
	}
	return out
}

func (s *Snapshot) Catalog() models.Catalog {
	return s.catalog
}

// Fact looks up a flattened fact key such as "parking", "policy.cancellation"
// or "faq.catering".
func (s *Snapshot) Fact(key string) (string, bool) {
	v, ok := s.facts[strings.ToLower(key)]
	return v, ok
}

// DietaryFlags maps a flag (halal, vegetarian, vegan, gluten_free) to the
// answer given to callers.
func (s *Snapshot) DietaryFlags() map[string]string {
	out := make(map[string]string, len(s.dietary))
	for k, v := range s.dietary {
		out[k] = v
	}
	return out
}

func (s *Snapshot) Address() Address {
	return s.data.Address
}

func (s *Snapshot) BusinessName() string {
	return s.data.BusinessName
}

func (s *Snapshot) ReservationRules() ReservationRules {
	return s.data.ReservationRules
}

func (s *Snapshot) PopularItems() []string {
	return append([]string(nil), s.data.PopularItems...)
}

// Data returns a copy of the underlying document header fields for
// chunking; slices and maps are shared and must not be mutated.
func (s *Snapshot) Data() BusinessData {
	return s.data
}

// TemplateData flattens the snapshot into the nested map consumed by
// response templates.
func (s *Snapshot) TemplateData() map[string]interface{} {
	menu := make(map[string]interface{})
	for _, section := range s.data.MenuSections {
		names := make([]string, 0, len(section.Items))
		for _, it := range section.Items {
			names = append(names, it.Name)
		}
		menu[sectionKey(section.Name)] = joinNatural(names)
	}

	out := map[string]interface{}{
		"menu": menu,
	}
	for k, v := range s.facts {
		if !strings.Contains(k, ".") {
			out[k] = v
		}
	}
	if len(s.data.PopularItems) > 0 {
		out["popular_items"] = joinNatural(s.data.PopularItems)
	}
	return out
}

func sectionKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// joinNatural renders "a, b and c".
func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
