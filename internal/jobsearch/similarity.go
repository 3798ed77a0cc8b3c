package jobsearch

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DuplicateThreshold is the title similarity above which two postings of the
// same company are considered the same job.
const DuplicateThreshold = 0.8

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func tokens(s string) []string {
	s = strings.ToLower(foldAccents(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}

// NormalizeTitle folds accents and case, drops punctuation and sorts the
// words, so word order does not matter.
func NormalizeTitle(title string) string {
	ts := tokens(title)
	sort.Strings(ts)
	return strings.Join(ts, " ")
}

// TitleSimilarity is 1 - editDistance/maxLen over normalized titles.
func TitleSimilarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	longest := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(longest)
}

// IsDuplicate reports whether two postings describe the same job.
func IsDuplicate(a, b Posting) bool {
	if !strings.EqualFold(strings.TrimSpace(a.Company), strings.TrimSpace(b.Company)) {
		return false
	}
	return TitleSimilarity(a.Title, b.Title) > DuplicateThreshold
}
