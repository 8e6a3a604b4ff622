package commerce

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// fold lowercases s for case-insensitive comparison and trims it.
func fold(s string) string {
	return strings.TrimSpace(folder.String(s))
}

// normalizeName folds s and reduces it to space-separated alphanumeric words.
func normalizeName(s string) string {
	words := strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

// searchWords returns the normalized query terms, dropping filler words.
func searchWords(query string) []string {
	var words []string
	for _, w := range strings.Fields(normalizeName(query)) {
		if stopWords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "for": true, "some": true, "any": true,
	"me": true, "i": true, "need": true, "want": true, "please": true, "of": true,
	"to": true, "with": true, "and": true, "in": true, "on": true, "under": true,
	"search": true, "find": true, "look": true, "looking": true, "show": true,
}

// similar reports whether two normalized strings approximately match: equal,
// or within one edit for strings of four or more characters.
func similar(a, b string) bool {
	if a == b {
		return true
	}
	if len([]rune(a)) < 4 || len([]rune(b)) < 4 {
		return false
	}
	return editDistance(a, b, 1) <= 1
}

// editDistance returns the Levenshtein distance between a and b, stopping
// early once it exceeds limit.
func editDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if d := len(ra) - len(rb); d > limit || -d > limit {
		return limit + 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
