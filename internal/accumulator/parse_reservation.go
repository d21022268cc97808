package accumulator

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
)

var (
	partyPhraseRe = regexp.MustCompile(`\b(?:table|party|reservation|booking|seating|seats?)\s+(?:for|of)\s+([a-z0-9]+)\b`)
	partyCountRe  = regexp.MustCompile(`\b([a-z0-9]+)\s+(?:people|persons|guests|adults|diners|of us)\b`)
	partyForRe    = regexp.MustCompile(`\bfor\s+([a-z0-9]+)\b`)

	// a number followed by one of these is a time, not a head count
	timeSuffixRe = regexp.MustCompile(`^(?:\s*(?:am|pm|a m|p m|o'?clock)\b|:[0-5]\d)`)

	dayAfterRe   = regexp.MustCompile(`\bday after tomorrow\b`)
	tomorrowRe   = regexp.MustCompile(`\btomorrow\b`)
	todayRe      = regexp.MustCompile(`\b(?:today|tonight|this evening)\b`)
	weekdayRe    = regexp.MustCompile(`\b(next\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)s?\b`)
	monthDayRe   = regexp.MustCompile(`\b(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	dayOfMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+of\s+(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)\b`)
	numericDate  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	ordinalDayRe = regexp.MustCompile(`\bthe\s+(\d{1,2}(?:st|nd|rd|th))\b`)

	meridiemRe = regexp.MustCompile(`\b(\d{1,2})(?::([0-5]\d))?\s*(am|pm|a m|p m)\b`)
	clockRe    = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	noonRe     = regexp.MustCompile(`\bnoon\b`)
	atHourRe   = regexp.MustCompile(`\b(?:at|around|by)\s+([a-z0-9]+)\b`)
	oclockRe   = regexp.MustCompile(`\b([a-z0-9]+)\s+o'?clock\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January, "feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March, "apr": time.April, "april": time.April, "may": time.May,
	"jun": time.June, "june": time.June, "jul": time.July, "july": time.July, "aug": time.August,
	"august": time.August, "sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October, "nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

var specialRequests = []struct {
	keywords []string
	request  string
}{
	{[]string{"birthday"}, "birthday celebration"},
	{[]string{"anniversary"}, "anniversary"},
	{[]string{"high chair", "highchair", "booster seat"}, "high chair"},
	{[]string{"wheelchair", "accessible"}, "wheelchair access"},
	{[]string{"outdoor", "outdoors", "outside", "patio"}, "outdoor seating"},
	{[]string{"window"}, "window table"},
	{[]string{"booth"}, "booth"},
	{[]string{"quiet"}, "quiet table"},
}

// ReservationParser extracts party size, date, time and special requests.
// Relative dates resolve against Now in Location.
type ReservationParser struct {
	Location *time.Location
	Now      func() time.Time
}

func NewReservationParser(loc *time.Location, now func() time.Time) *ReservationParser {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationParser{Location: loc, Now: now}
}

func (p *ReservationParser) Parse(text string) ReservationFragments {
	norm := features.Normalize(text)
	var out ReservationFragments
	if norm == "" {
		return out
	}

	now := p.Now().In(p.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.Location)

	if n, ok := parseParty(norm); ok {
		out.PartySize = &n
	}
	if d, ok := parseDate(norm, today); ok {
		out.Date = &d
	}
	if t, ok := parseTime(norm); ok {
		out.Time = &t
	}
	padded := " " + norm + " "
	for _, sr := range specialRequests {
		for _, kw := range sr.keywords {
			if strings.Contains(padded, " "+kw+" ") || strings.Contains(padded, " "+kw+"s ") {
				out.SpecialRequests = append(out.SpecialRequests, sr.request)
				break
			}
		}
	}
	return out
}

func parseParty(norm string) (int, bool) {
	for _, re := range []*regexp.Regexp{partyPhraseRe, partyCountRe, partyForRe} {
		for _, m := range re.FindAllStringSubmatchIndex(norm, -1) {
			n, ok := parseNumber(norm[m[2]:m[3]])
			if !ok || timeSuffixRe.MatchString(norm[m[3]:]) {
				continue
			}
			return n, true
		}
	}
	return 0, false
}

func parseDate(norm string, today time.Time) (time.Time, bool) {
	loc := today.Location()
	switch {
	case dayAfterRe.MatchString(norm):
		return today.AddDate(0, 0, 2), true
	case tomorrowRe.MatchString(norm):
		return today.AddDate(0, 0, 1), true
	case todayRe.MatchString(norm):
		return today, true
	}

	if m := weekdayRe.FindStringSubmatch(norm); m != nil {
		want := weekdays[m[2]]
		days := (int(want) - int(today.Weekday()) + 7) % 7
		if days == 0 && m[1] != "" {
			days = 7
		}
		return today.AddDate(0, 0, days), true
	}

	if m := monthDayRe.FindStringSubmatch(norm); m != nil {
		day, _ := strconv.Atoi(m[2])
		return resolveMonthDay(today, months[m[1]], day, 0)
	}
	if m := dayOfMonthRe.FindStringSubmatch(norm); m != nil {
		day, _ := strconv.Atoi(m[1])
		return resolveMonthDay(today, months[m[2]], day, 0)
	}
	if m := numericDate.FindStringSubmatch(norm); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year := 0
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		if month < 1 || month > 12 {
			return time.Time{}, false
		}
		return resolveMonthDay(today, time.Month(month), day, year)
	}
	if m := ordinalDayRe.FindStringSubmatch(norm); m != nil {
		day, ok := parseOrdinal(m[1])
		if !ok || day < 1 || day > 31 {
			return time.Time{}, false
		}
		d := time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, loc)
		if d.Day() != day {
			return time.Time{}, false
		}
		if d.Before(today) {
			d = time.Date(today.Year(), today.Month()+1, day, 0, 0, 0, 0, loc)
			if d.Day() != day {
				return time.Time{}, false
			}
		}
		return d, true
	}
	return time.Time{}, false
}

// resolveMonthDay picks the next occurrence of month/day on or after today
// unless year is given.
func resolveMonthDay(today time.Time, month time.Month, day, year int) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	y := year
	if y == 0 {
		y = today.Year()
	}
	d := time.Date(y, month, day, 0, 0, 0, 0, today.Location())
	if d.Month() != month {
		return time.Time{}, false
	}
	if year == 0 && d.Before(today) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

func parseTime(norm string) (models.TimeOfDay, bool) {
	if m := meridiemRe.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 {
			return models.TimeOfDay{}, false
		}
		pm := strings.HasPrefix(m[3], "p")
		switch {
		case pm && h != 12:
			h += 12
		case !pm && h == 12:
			h = 0
		}
		return models.TimeOfDay{Hour: h, Minute: minute}, true
	}
	if m := clockRe.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return models.TimeOfDay{Hour: evening(h), Minute: minute}, true
	}
	if noonRe.MatchString(norm) {
		return models.TimeOfDay{Hour: 12}, true
	}
	for _, re := range []*regexp.Regexp{atHourRe, oclockRe} {
		if m := re.FindStringSubmatch(norm); m != nil {
			if h, ok := parseNumber(m[1]); ok && h >= 1 && h <= 12 {
				return models.TimeOfDay{Hour: evening(h)}, true
			}
		}
	}
	return models.TimeOfDay{}, false
}

// evening reads a bare 1-10 as PM, the usual meaning for a dinner booking.
func evening(h int) int {
	if h >= 1 && h <= 10 {
		return h + 12
	}
	return h
}
