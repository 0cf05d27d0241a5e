// Package namefold canonicalizes display names for comparison.
//
// Two registrations count as the same person when their folded names are
// equal: "Иван " and "иван" collide, and so do "Семён" and "семен", because
// the club treats ё and е as the same letter in names.
package namefold

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const yoFolded = "е" // ё is spelled either way in Russian names

// Fold returns the canonical form of a display name: NFC-composed, Unicode
// case-folded, ё folded to е, runs of whitespace collapsed to a single
// space, ends trimmed. Total over all strings (Fold("") == "") and
// idempotent: Fold(Fold(s)) == Fold(s).
func Fold(s string) string {
	// NFC first so a decomposed ё (е + combining diaeresis) composes into
	// the single code point the replacement below matches.
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "ё", yoFolded)
	return strings.Join(strings.Fields(s), " ")
}

// Equal reports whether two display names fold to the same canonical form.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}
