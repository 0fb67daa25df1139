package citation

import (
	"strconv"
	"strings"
)

var superscriptDigits = []rune{'⁰', '¹', '²', '³', '⁴', '⁵', '⁶', '⁷', '⁸', '⁹'}

// Format renders the reference mark for the n-th citation (1-based).
func (s Style) Format(n int) string {
	num := strconv.Itoa(n)
	switch s {
	case StyleBracketed:
		return "[" + num + "]"
	case StyleSuperscript:
		var b strings.Builder
		for _, r := range num {
			if r >= '0' && r <= '9' {
				b.WriteRune(superscriptDigits[r-'0'])
				continue
			}
			b.WriteRune(r)
		}
		return b.String()
	default:
		return num
	}
}

// ParseStyle maps user input to a Style, defaulting to StyleNumbered.
func ParseStyle(v string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(v))) {
	case StyleBracketed:
		return StyleBracketed
	case StyleSuperscript:
		return StyleSuperscript
	default:
		return StyleNumbered
	}
}

// ReferenceNumber returns the 1-based rank encoded in a link ID, or 0.
func ReferenceNumber(linkID string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(linkID, "link_"))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
