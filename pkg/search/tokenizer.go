package search

import (
	"strings"
	"unicode"
)

// Tokenize case-folds and strips punctuation. Acronyms written with
// internal periods ("S.A.R.", "f.a.t.f") stay one token: a period
// between single letters joins rather than splits, so "S.A.R." and
// "SAR" index identically.
func Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(unicode.ToLower(r))
		case r == '.' && isAcronymPeriod(runes, i):
			// swallow the period, keep building the token
		default:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// isAcronymPeriod reports whether the period at index i sits in a
// letter-period-letter or trailing letter-period acronym pattern.
func isAcronymPeriod(runes []rune, i int) bool {
	if i == 0 || !unicode.IsLetter(runes[i-1]) {
		return false
	}
	// single letter before the period, e.g. the "A." in "S.A.R."
	if i >= 2 && unicode.IsLetter(runes[i-2]) {
		return false
	}
	// trailing period of an acronym ("S.A.R.") or one followed by
	// another single letter ("S.A")
	if i+1 >= len(runes) || !unicode.IsLetter(runes[i+1]) {
		return true
	}
	if i+2 < len(runes) && unicode.IsLetter(runes[i+2]) {
		return false
	}
	return true
}
