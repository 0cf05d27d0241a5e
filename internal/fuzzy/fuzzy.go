// Package fuzzy matches a typed search string against a set of known names.
//
// Chat input is short and often misspelled ("ин" for "Инна", "петр" for
// "Пётр Семёнов"), so exact lookup is useless. Matching runs over folded
// names (namefold.Fold) and scores candidates in tiers; anything below
// MinScore is treated as no match.
package fuzzy

import (
	"strings"

	"github.com/heartpipes/clubbot/internal/namefold"
)

// Score tiers. The MinScore floor trades recall for precision: a lone token
// hit is accepted, shorter coincidences are not. Tune here, not inline.
const (
	ScoreExact      = 100 // folded query equals folded candidate
	ScoreAllTokens  = 80  // every query token is a substring of some candidate token
	ScoreFirstToken = 60  // the first query token is a substring of some candidate token
	ScoreAnyToken   = 40  // any query token is a substring of any candidate token
	MinScore        = 40
)

// Score rates candidate against query. Both are folded and tokenized on
// whitespace before comparison. Returns 0 when they are unrelated.
func Score(query, candidate string) int {
	q := namefold.Fold(query)
	c := namefold.Fold(candidate)
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return ScoreExact
	}

	qTokens := strings.Fields(q)
	cTokens := strings.Fields(c)

	all := true
	any := false
	first := false
	for i, qt := range qTokens {
		hit := false
		for _, ct := range cTokens {
			if strings.Contains(ct, qt) {
				hit = true
				break
			}
		}
		if hit {
			any = true
			if i == 0 {
				first = true
			}
		} else {
			all = false
		}
	}

	switch {
	case all:
		return ScoreAllTokens
	case first:
		return ScoreFirstToken
	case any:
		return ScoreAnyToken
	default:
		return 0
	}
}

// Match returns the best-scoring candidate at or above MinScore, or
// ("", false) when nothing qualifies. Ties go to the earliest candidate in
// the slice, which is why candidates is ordered and not a map.
func Match(query string, candidates []string) (string, bool) {
	best := ""
	bestScore := 0
	for _, c := range candidates {
		if s := Score(query, c); s > bestScore {
			best = c
			bestScore = s
		}
	}
	if bestScore < MinScore {
		return "", false
	}
	return best, true
}
