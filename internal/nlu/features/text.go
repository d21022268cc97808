package features

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// stopWords is a compact English list. Question words (what, when, where,
// how, much) are kept because they carry intent.
var stopWords = map[string]bool{
	"a": true, "about": true, "am": true, "an": true, "and": true, "any": true, "are": true,
	"as": true, "at": true, "be": true, "been": true, "but": true, "by": true, "can": true,
	"could": true, "did": true, "do": true, "does": true, "for": true, "from": true,
	"had": true, "has": true, "have": true, "he": true, "her": true, "him": true, "his": true,
	"i": true, "i'd": true, "i'm": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "it's": true, "its": true, "just": true, "me": true, "my": true, "of": true,
	"on": true, "or": true, "our": true, "please": true, "she": true, "so": true,
	"some": true, "that": true, "the": true, "their": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "those": true, "to": true,
	"too": true, "us": true, "was": true, "we": true, "were": true, "will": true,
	"with": true, "would": true, "you": true, "your": true, "you're": true,
}

// Normalize applies NFKC, Unicode case folding, folds curly apostrophes,
// replaces punctuation with spaces and collapses whitespace. It is the
// canonical text form used for features, rule matching and cache keys.
func Normalize(text string) string {
	s := norm.NFKC.String(text)
	s = cases.Fold().String(s)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '$' || r == ':' || r == '/':
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.Trim(strings.TrimSpace(b.String()), "':/")
}

// Tokenize returns unigram through ngramMax-gram tokens of the normalized
// text with stop words removed.
func Tokenize(text string, ngramMax int) []string {
	if ngramMax < 1 {
		ngramMax = 1
	}
	var words []string
	for _, w := range strings.Fields(Normalize(text)) {
		w = strings.Trim(w, "':/")
		if w == "" || stopWords[w] {
			continue
		}
		words = append(words, w)
	}

	tokens := make([]string, 0, len(words)*ngramMax)
	for n := 1; n <= ngramMax; n++ {
		for i := 0; i+n <= len(words); i++ {
			tokens = append(tokens, strings.Join(words[i:i+n], " "))
		}
	}
	return tokens
}
