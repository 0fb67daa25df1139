package citation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// literalMatcher finds a literal needle inside text, case-insensitively.
// It is the single place where needles are escaped before they reach regexp.
type literalMatcher struct {
	re        *regexp.Regexp
	wordStart bool
	wordEnd   bool
}

// newLiteralMatcher builds a matcher for needle. The second result is false
// when the needle is blank and nothing could ever match. Each word matches in
// its composed or decomposed form, so source text in either form is found
// without rewriting it.
func newLiteralMatcher(needle string) (*literalMatcher, bool) {
	needle = normalizeNeedle(needle)
	if needle == "" {
		return nil, false
	}
	words := strings.Fields(needle)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = quoteForms(w)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(quoted, `\s+`))
	if err != nil {
		return nil, false
	}
	first, _ := utf8.DecodeRuneInString(needle)
	last, _ := utf8.DecodeLastRuneInString(needle)
	return &literalMatcher{
		re:        re,
		wordStart: isAlphaNumRune(first),
		wordEnd:   isAlphaNumRune(last),
	}, true
}

// quoteForms quotes w and its NFD form as alternatives when they differ.
func quoteForms(w string) string {
	composed := regexp.QuoteMeta(norm.NFC.String(w))
	decomposed := regexp.QuoteMeta(norm.NFD.String(w))
	if composed == decomposed {
		return composed
	}
	return `(?:` + composed + `|` + decomposed + `)`
}

// find returns the byte range of the first match that sits on word boundaries.
func (m *literalMatcher) find(text string) (int, int, bool) {
	return m.next(text, 0)
}

// findAll returns every non-overlapping match on word boundaries.
func (m *literalMatcher) findAll(text string) [][2]int {
	var out [][2]int
	for pos := 0; pos < len(text); {
		start, end, ok := m.next(text, pos)
		if !ok {
			break
		}
		out = append(out, [2]int{start, end})
		pos = end
	}
	return out
}

// next scans from pos. A candidate rejected by the boundary check only moves
// the scan one rune forward, so an overlapping occurrence is still found.
func (m *literalMatcher) next(text string, pos int) (int, int, bool) {
	for pos <= len(text) {
		loc := m.re.FindStringIndex(text[pos:])
		if loc == nil {
			return 0, 0, false
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && m.onBoundary(text, start, end) {
			return start, end, true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			return 0, 0, false
		}
		pos = start + size
	}
	return 0, 0, false
}

func (m *literalMatcher) onBoundary(text string, start, end int) bool {
	if m.wordStart && start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		if isAlphaNumRune(before) || unicode.Is(unicode.Mn, before) {
			return false
		}
	}
	if m.wordEnd && end < len(text) {
		after, _ := utf8.DecodeRuneInString(text[end:])
		if isAlphaNumRune(after) || unicode.Is(unicode.Mn, after) {
			return false
		}
	}
	return true
}

func isAlphaNumRune(r rune) bool {
	if r == 0 || r == utf8.RuneError {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
