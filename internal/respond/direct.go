package respond

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"restaurant-receptionist/internal/facts"
	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
)

const directPrefix = "direct_fact."

var (
	hoursRe    = regexp.MustCompile(`\b(?:hours|open|opening|close|closing|closed)\b`)
	halalRe    = regexp.MustCompile(`\bhalal\b`)
	veganRe    = regexp.MustCompile(`\bvegan\b`)
	vegRe      = regexp.MustCompile(`\b(?:vegetarian|veggie|meatless)\b`)
	glutenRe   = regexp.MustCompile(`\b(?:gluten|celiac|coeliac)\b`)
	parkingRe  = regexp.MustCompile(`\bpark(?:ing)?\b`)
	cateringRe = regexp.MustCompile(`\bcater(?:ing|s)?\b`)
	priceRe    = regexp.MustCompile(`\b(?:how much|price|prices|cost|costs)\b`)
	addressRe  = regexp.MustCompile(`\b(?:address|where are you|where is the restaurant|located|location)\b`)
	phoneRe    = regexp.MustCompile(`\b(?:phone number|your number|call you|telephone)\b`)
)

// DirectFacts answers pattern-exact questions straight from the fact store,
// independent of the resolved intent.
type DirectFacts struct {
	snapshot func() *facts.Snapshot
}

func NewDirectFacts(snapshot func() *facts.Snapshot) *DirectFacts {
	return &DirectFacts{snapshot: snapshot}
}

type directRule struct {
	name   string
	match  func(norm string) bool
	answer func(snap *facts.Snapshot, norm string) (string, bool)
}

var directRules = []directRule{
	{"price", priceRe.MatchString, answerPrice},
	{"dietary.halal", halalRe.MatchString, dietary("halal")},
	{"dietary.vegan", veganRe.MatchString, dietary("vegan")},
	{"dietary.vegetarian", vegRe.MatchString, dietary("vegetarian")},
	{"dietary.gluten_free", glutenRe.MatchString, dietary("gluten_free")},
	{"catering", cateringRe.MatchString, answerCatering},
	{"parking", parkingRe.MatchString, fact("parking", "%s")},
	{"hours", hoursRe.MatchString, func(snap *facts.Snapshot, _ string) (string, bool) {
		h := snap.Hours()
		return h, h != ""
	}},
	{"address", addressRe.MatchString, fact("address", "We're located at %s.")},
	{"phone", phoneRe.MatchString, fact("phone", "You can reach us at %s.")},
}

// Answer returns the reply and its source tag when a pattern fires and the
// fact store holds the answer.
func (d *DirectFacts) Answer(utterance string) (string, string, bool) {
	norm := features.Normalize(utterance)
	if norm == "" {
		return "", "", false
	}
	snap := d.snapshot()
	for _, r := range directRules {
		if !r.match(norm) {
			continue
		}
		if text, ok := r.answer(snap, norm); ok {
			return text, directPrefix + r.name, true
		}
	}
	return "", "", false
}

func dietary(flag string) func(*facts.Snapshot, string) (string, bool) {
	return func(snap *facts.Snapshot, _ string) (string, bool) {
		v, ok := snap.DietaryFlags()[flag]
		return v, ok && v != ""
	}
}

func fact(key, format string) func(*facts.Snapshot, string) (string, bool) {
	return func(snap *facts.Snapshot, _ string) (string, bool) {
		v, ok := snap.Fact(key)
		if !ok || v == "" {
			return "", false
		}
		return fmt.Sprintf(format, v), true
	}
}

func answerCatering(snap *facts.Snapshot, _ string) (string, bool) {
	if v, ok := snap.Fact("faq.catering"); ok {
		return v, true
	}
	switch v, _ := snap.Fact("service.catering"); v {
	case "yes":
		return "Yes, we offer catering. Let me know the date and the size of your event.", true
	case "no":
		return "I'm sorry, we don't offer catering at the moment.", true
	}
	return "", false
}

// answerPrice names the price of every catalog item mentioned, longest
// names first so "diet coke" is not also read as "coke".
func answerPrice(snap *facts.Snapshot, norm string) (string, bool) {
	catalog := snap.Catalog()
	names := make(map[string]string)
	for term, name := range catalog.Terms() {
		if k := features.Normalize(term); k != "" {
			names[k] = name
		}
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	padded := " " + norm + " "
	seen := make(map[string]bool)
	var parts []string
	for _, k := range keys {
		idx, n := indexWord(padded, k)
		if idx < 0 {
			continue
		}
		// blank the match, keeping the delimiting spaces
		padded = padded[:idx+1] + strings.Repeat("_", n-2) + padded[idx+n-1:]
		item, ok := catalog.Lookup(names[k])
		if !ok || seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		parts = append(parts, priceSentence(item))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

// indexWord finds " k " or " ks " in padded and returns the index of the
// leading space and the length of the match.
func indexWord(padded, k string) (int, int) {
	for _, form := range []string{" " + k + " ", " " + k + "s "} {
		if i := strings.Index(padded, form); i >= 0 {
			return i, len(form)
		}
	}
	return -1, 0
}

func priceSentence(item models.CatalogItem) string {
	return fmt.Sprintf("The %s is %s.", item.Name, item.Price)
}
