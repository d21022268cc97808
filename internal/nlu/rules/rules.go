package rules

import (
	"regexp"
	"sort"
	"strings"

	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
)

// Rule binds a set of phrases to one intent. Phrases match on word
// boundaries against normalized text.
type Rule struct {
	Intent  models.Intent
	Phrases []string
}

// DefaultRules is the fixed priority list. Earlier rules win when several
// fire on the same utterance.
var DefaultRules = []Rule{
	{models.IntentReservation, []string{
		"reservation", "reservations", "reserve", "book a table", "booking", "table for",
		"party of", "get a table", "make a booking",
	}},
	{models.IntentPricing, []string{
		"how much", "price", "prices", "pricing", "cost", "costs", "expensive", "cheap",
	}},
	{models.IntentOrder, []string{
		"order", "i'd like to get", "i want to get", "can i get", "could i get", "let me get",
		"i'll have", "i will have", "i'll take", "pickup", "pick up", "takeout", "take out",
		"to go", "delivery", "add", "another", "one more", "remove",
	}},
	{models.IntentHours, []string{
		"hours", "open", "opening", "close", "closing", "closed", "what time",
	}},
	{models.IntentDirection, []string{
		"address", "where are you", "located", "location", "directions", "how do i get there",
		"parking", "park", "phone number", "call you",
	}},
	{models.IntentMenu, []string{
		"menu", "dishes", "what do you have", "what do you serve", "specials", "vegetarian",
		"vegan", "halal", "gluten", "dietary", "allergy", "allergies", "catering", "cater",
		"recommend", "popular",
	}},
	{models.IntentGoodbye, []string{
		"bye", "goodbye", "good bye", "see you", "that's all", "that is all", "have a good",
	}},
	{models.IntentGreeting, []string{
		"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "howdy",
	}},
}

type compiledRule struct {
	intent models.Intent
	re     *regexp.Regexp
}

// Matcher evaluates rules in priority order.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher compiles rules. catalogTerms (item names and synonyms) are
// appended to the order rule so naming a dish reads as ordering it.
func NewMatcher(rules []Rule, catalogTerms []string) *Matcher {
	m := &Matcher{}
	for _, r := range rules {
		phrases := append([]string(nil), r.Phrases...)
		if r.Intent == models.IntentOrder {
			phrases = append(phrases, catalogTerms...)
		}
		if re := compile(phrases); re != nil {
			m.rules = append(m.rules, compiledRule{intent: r.Intent, re: re})
		}
	}
	return m
}

// NewDefault builds a Matcher from DefaultRules and the catalog terms.
func NewDefault(catalog models.Catalog) *Matcher {
	terms := make([]string, 0)
	for term := range catalog.Terms() {
		terms = append(terms, term)
	}
	return NewMatcher(DefaultRules, terms)
}

// Match returns the intent of the first rule that fires.
func (m *Matcher) Match(text string) (models.Intent, bool) {
	norm := features.Normalize(text)
	if norm == "" {
		return models.IntentUnknown, false
	}
	for _, r := range m.rules {
		if r.re.MatchString(norm) {
			return r.intent, true
		}
	}
	return models.IntentUnknown, false
}

// compile joins phrases into one alternation, longest first, with
// plural-tolerant word boundaries.
func compile(phrases []string) *regexp.Regexp {
	seen := make(map[string]bool)
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = features.Normalize(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		alts = append(alts, p)
	}
	if len(alts) == 0 {
		return nil
	}
	sort.Slice(alts, func(i, j int) bool {
		if len(alts[i]) != len(alts[j]) {
			return len(alts[i]) > len(alts[j])
		}
		return alts[i] < alts[j]
	})
	for i, p := range alts {
		parts := strings.Fields(p)
		for j := range parts {
			parts[j] = regexp.QuoteMeta(parts[j])
		}
		alts[i] = strings.Join(parts, `\s+`)
	}
	return regexp.MustCompile(`(?:^|\s)(?:` + strings.Join(alts, "|") + `)(?:e?s)?(?:\s|$)`)
}
