package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralMatcher(t *testing.T) {
	cases := []struct {
		needle     string
		text       string
		start, end int
		found      bool
	}{
		{needle: "HubSpot CRM", text: "use hubspot   crm", start: 4, end: 17, found: true},
		{needle: "crm", text: "crmish CRM", start: 7, end: 10, found: true},
		{needle: "$5 plan", text: "the $5 plan", start: 4, end: 11, found: true},
		{needle: "Node.js", text: "Nodexjs Node.js", start: 8, end: 15, found: true},
		{needle: "C#", text: "C#, F#", start: 0, end: 2, found: true},
		{needle: "café", text: "un café noir", start: 0, end: 0, found: false},
		{needle: "東京", text: "in 東京 now", start: 3, end: 9, found: true},
		{needle: "art", text: "smart start", start: 0, end: 0, found: false},
	}
	for _, tc := range cases {
		t.Run(tc.needle, func(t *testing.T) {
			m, ok := newLiteralMatcher(tc.needle)
			require.True(t, ok)
			start, end, found := m.find(tc.text)
			assert.Equal(t, tc.found, found)
			if tc.found {
				assert.Equal(t, tc.start, start)
				assert.Equal(t, tc.end, end)
			}
		})
	}
}

func TestLiteralMatcherBlankNeedle(t *testing.T) {
	_, ok := newLiteralMatcher("   ")
	assert.False(t, ok)
}

func TestLiteralMatcherFindAll(t *testing.T) {
	m, ok := newLiteralMatcher("go")
	require.True(t, ok)
	assert.Equal(t, [][2]int{{0, 2}, {11, 13}}, m.findAll("Go gopher, go."))

	m, ok = newLiteralMatcher("a-a")
	require.True(t, ok)
	assert.Equal(t, [][2]int{{3, 6}}, m.findAll("xa-a-a"))
	start, end, found := m.find("xa-a-a")
	require.True(t, found)
	assert.Equal(t, [2]int{3, 6}, [2]int{start, end})
}

func TestLiteralMatcherCanonicalForms(t *testing.T) {
	m, ok := newLiteralMatcher("Caf\u00e9")
	require.True(t, ok)
	assert.Equal(t, [][2]int{{0, 5}, {6, 12}}, m.findAll("caf\u00e9 CAFE\u0301"))
}

func TestNormalizeKeywords(t *testing.T) {
	assert.Equal(t, []string{"CRM", "sales tools"}, normalizeKeywords([]string{"CRM", " crm ", "", "sales   tools"}))
	assert.Nil(t, normalizeKeywords(nil))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "ABC 1\tx\ny", NormalizeText("  ＡＢＣ １\tx\ny\x00 "))
}
