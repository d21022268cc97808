package accumulator

import "strconv"

var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"dozen": 12, "couple": 2, "pair": 2,
}

// parseNumber reads a digit string or a number word.
func parseNumber(word string) (int, bool) {
	if n, ok := numberWords[word]; ok {
		return n, true
	}
	if n, err := strconv.Atoi(word); err == nil {
		return n, true
	}
	return 0, false
}

// parseOrdinal reads "25th", "1st", "3rd".
func parseOrdinal(word string) (int, bool) {
	if len(word) < 3 {
		return 0, false
	}
	switch word[len(word)-2:] {
	case "st", "nd", "rd", "th":
		n, err := strconv.Atoi(word[:len(word)-2])
		return n, err == nil
	}
	return 0, false
}
