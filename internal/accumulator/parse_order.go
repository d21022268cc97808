package accumulator

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
)

var asrRepairs = []struct {
	re *regexp.Regexp
	to string
}{
	{regexp.MustCompile(`\bshore\s+my\b`), "shawarma"},
	{regexp.MustCompile(`\b(?:shorma|shwarma|schwarma|shawerma|shawarmah)\b`), "shawarma"},
	{regexp.MustCompile(`\bsandwhich(?:es|s)\b`), "sandwiches"},
	{regexp.MustCompile(`\bsandwhich\b`), "sandwich"},
	{regexp.MustCompile(`\bfalafal\b`), "falafel"},
}

// fillers may sit between a quantity and the item it counts.
var fillers = map[string]bool{
	"more": true, "of": true, "the": true, "order": true, "orders": true, "x": true,
	"extra": true, "additional": true, "large": true, "small": true, "regular": true, "medium": true,
}

// orphanStop words after a bare number mean it is not counting an item.
var orphanStop = map[string]bool{
	"them": true, "those": true, "these": true, "please": true, "and": true, "people": true,
	"minutes": true, "pm": true, "am": true, "o'clock": true, "oclock": true, "for": true,
	"at": true, "thanks": true, "guests": true, "persons": true, "of": true, "us": true,
}

var (
	correctionMarkers = []string{" just ", " only ", " make that ", " make it ", " change ", " update ", " switch "}
	removalMarkers    = []string{" remove ", " drop ", " cancel ", " without ", " delete ", " take off ", " don't want ", " dont want ", " hold the ", " no more "}
	priceMarkers      = []string{" how much ", " price ", " prices ", " cost ", " costs "}
)

// OrderParser extracts order fragments against a catalog.
type OrderParser struct {
	terms      map[string]models.CatalogItem
	maxWords   int
	fuzzyTerms []string
}

func NewOrderParser(catalog models.Catalog) *OrderParser {
	p := &OrderParser{terms: make(map[string]models.CatalogItem)}
	for term, name := range catalog.Terms() {
		item, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		term = features.Normalize(term)
		if term == "" {
			continue
		}
		p.terms[term] = item
		if n := len(strings.Fields(term)); n > p.maxWords {
			p.maxWords = n
		}
		p.fuzzyTerms = append(p.fuzzyTerms, term)
	}
	sort.Strings(p.fuzzyTerms)
	return p
}

type span struct {
	start, end int
	item       models.CatalogItem
}

// Parse reads quantity+item instructions from text. Pieces that look like
// instructions but cannot be resolved are reported in Unresolved rather
// than dropped.
func (p *OrderParser) Parse(text string) OrderParse {
	norm := repairASR(features.Normalize(text))
	words := strings.Fields(norm)

	var out OrderParse
	claimed := make([]bool, len(words))
	matches := p.findMatches(words)

	prevEnd := 0
	for mi, m := range matches {
		for i := m.start; i < m.end; i++ {
			claimed[i] = true
		}
		window := words[prevEnd:m.start]
		windowText := " " + strings.Join(window, " ") + " "
		qty, qtyPos, hasQty, invalid := quantityBefore(words, prevEnd, m.start)
		qtyWord := ""
		if hasQty {
			claimed[qtyPos] = true
			qtyWord = words[qtyPos]
		}

		nextStart := len(words)
		if mi+1 < len(matches) {
			nextStart = matches[mi+1].start
		}
		prevEnd = m.end

		additive := strings.Contains(windowText, " more ") || strings.Contains(windowText, " another ")
		kind := FragmentAdd
		switch {
		case !additive && (containsAny(windowText, correctionMarkers) ||
			hasQty && (strings.Contains(windowText, " no ") || strings.Contains(windowText, " actually "))):
			kind = FragmentSet
			if n, pos, ok := quantityAfterTo(words, m.end, nextStart); ok {
				qty, hasQty, invalid = n, true, n <= 0
				qtyWord = words[pos]
				claimed[pos] = true
				prevEnd = pos + 1
			} else if swapsInto(words, m.end, nextStart) {
				// "change the coke to a diet coke"
				kind, hasQty, invalid = FragmentRemove, false, false
			}
		case containsAny(windowText, removalMarkers), endsWithNo(window) && !hasQty:
			kind = FragmentRemove
		}

		if kind == FragmentAdd && containsAny(windowText, priceMarkers) {
			out.PriceQueries = append(out.PriceQueries, m.item)
			continue
		}
		if invalid && kind != FragmentRemove {
			out.Unresolved = append(out.Unresolved, Unresolved{
				Text:   qtyWord + " " + strings.Join(words[m.start:m.end], " "),
				Reason: ReasonInvalidQuantity,
			})
			continue
		}
		if !hasQty {
			qty = 1
			if kind == FragmentRemove {
				qty = 0
			}
		}
		out.Fragments = append(out.Fragments, OrderFragment{Kind: kind, Item: m.item, Quantity: qty})
	}

	p.resolveOrphans(words, claimed, &out)
	return out
}

func (p *OrderParser) findMatches(words []string) []span {
	var out []span
	for i := 0; i < len(words); {
		matched := false
		for l := min(p.maxWords, len(words)-i); l >= 1; l-- {
			if item, ok := p.lookup(words[i : i+l]); ok {
				out = append(out, span{start: i, end: i + l, item: item})
				i += l
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return out
}

func (p *OrderParser) lookup(words []string) (models.CatalogItem, bool) {
	phrase := strings.Join(words, " ")
	if item, ok := p.terms[phrase]; ok {
		return item, true
	}
	for _, folded := range singulars(phrase) {
		if item, ok := p.terms[folded]; ok {
			return item, true
		}
	}
	return models.CatalogItem{}, false
}

// resolveOrphans handles quantities not attached to an exact match: a fuzzy
// catalog match on the following words, otherwise an unknown item.
func (p *OrderParser) resolveOrphans(words []string, claimed []bool, out *OrderParse) {
	for i, w := range words {
		if claimed[i] {
			continue
		}
		article := w == "a" || w == "an" || w == "another"
		n, isNum := parseNumber(w)
		if !isNum && !article {
			continue
		}
		if article {
			n = 1
		}

		j := i + 1
		for j < len(words) && fillers[words[j]] {
			j++
		}
		if j >= len(words) || claimed[j] || orphanStop[words[j]] || len(words[j]) < 3 {
			continue
		}
		if _, num := parseNumber(words[j]); num {
			continue
		}

		end := min(j+2, len(words))
		for end > j+1 && claimed[end-1] {
			end--
		}
		item, consumed, ok := p.fuzzyLookup(words[j:end])
		if ok {
			for k := j; k < j+consumed; k++ {
				claimed[k] = true
			}
			if n <= 0 {
				out.Unresolved = append(out.Unresolved, Unresolved{Text: w + " " + strings.Join(words[j:j+consumed], " "), Reason: ReasonInvalidQuantity})
				continue
			}
			out.Fragments = append(out.Fragments, OrderFragment{Kind: FragmentAdd, Item: item, Quantity: n})
			continue
		}
		if article {
			continue
		}
		out.Unresolved = append(out.Unresolved, Unresolved{Text: w + " " + words[j], Reason: ReasonUnknownItem})
	}
}

// fuzzyLookup tries the longest phrase first and reports how many words
// it consumed. Ambiguous best matches are rejected.
func (p *OrderParser) fuzzyLookup(words []string) (models.CatalogItem, int, bool) {
	for l := len(words); l >= 1; l-- {
		phrase := strings.Join(words[:l], " ")
		candidates := append([]string{phrase}, singulars(phrase)...)
		for _, pattern := range candidates {
			if len(pattern) < 4 {
				continue
			}
			matches := fuzzy.Find(pattern, p.fuzzyTerms)
			if len(matches) == 0 {
				continue
			}
			best := matches[0]
			if best.Str[0] != pattern[0] {
				continue
			}
			item := p.terms[best.Str]
			if len(matches) > 1 && matches[1].Score == best.Score && !strings.EqualFold(p.terms[matches[1].Str].Name, item.Name) {
				continue
			}
			return item, l, true
		}
	}
	return models.CatalogItem{}, 0, false
}

// quantityBefore scans back from end over fillers for a count. invalid is
// set for zero or negated counts.
func quantityBefore(words []string, start, end int) (qty, pos int, ok, invalid bool) {
	skipped := 0
	for i := end - 1; i >= start && skipped <= 3; i-- {
		w := words[i]
		if fillers[w] {
			skipped++
			continue
		}
		switch w {
		case "a", "an", "another":
			return 1, i, true, false
		}
		n, isNum := parseNumber(w)
		if !isNum {
			return 0, 0, false, false
		}
		negated := i > start && (words[i-1] == "minus" || words[i-1] == "negative")
		return n, i, true, n <= 0 || negated
	}
	return 0, 0, false, false
}

// quantityAfterTo reads "to 3" directly after an item.
func quantityAfterTo(words []string, from, limit int) (int, int, bool) {
	if from >= limit || from+1 >= len(words) || words[from] != "to" {
		return 0, 0, false
	}
	n, ok := parseNumber(words[from+1])
	return n, from + 1, ok
}

// swapsInto reports "to [a|an|the] <next item>" right after an item.
func swapsInto(words []string, from, nextStart int) bool {
	if from >= len(words) || words[from] != "to" || nextStart >= len(words) {
		return false
	}
	for i := from + 1; i < nextStart; i++ {
		switch words[i] {
		case "a", "an", "the", "one":
		default:
			return false
		}
	}
	return true
}

func endsWithNo(window []string) bool {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case "the", "any":
			continue
		case "no":
			return true
		default:
			return false
		}
	}
	return false
}

// singulars returns plural-folded variants of phrase's last word.
func singulars(phrase string) []string {
	var out []string
	if strings.HasSuffix(phrase, "es") {
		out = append(out, strings.TrimSuffix(phrase, "es"))
	}
	if strings.HasSuffix(phrase, "s") {
		out = append(out, strings.TrimSuffix(phrase, "s"))
	}
	return out
}

func repairASR(s string) string {
	for _, r := range asrRepairs {
		s = r.re.ReplaceAllString(s, r.to)
	}
	return s
}

func containsAny(padded string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(padded, m) {
			return true
		}
	}
	return false
}
