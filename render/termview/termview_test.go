package termview

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"yashubustudio/citelink/citation"
	"yashubustudio/citelink/render"
)

var sgr = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func plain(s string) string {
	return sgr.ReplaceAllString(s, "")
}

func unit(t *testing.T) *render.Unit {
	t.Helper()
	u := render.NewUnit(nil, render.Handlers{}, nil)
	u.Update(render.Props{
		Text: "Use Notion with Acme.",
		Recommendations: []citation.Recommendation{
			{AdID: "n", Title: "Notion", URL: "https://notion.example", Reason: "Docs"},
			{AdID: "x", Title: "Xero", URL: "https://xero.example"},
		},
		Options:      citation.Options{ExternalLinks: map[string]string{"Acme": "https://acme.example"}},
		Style:        citation.StyleSuperscript,
		Theme:        citation.Theme{AccentColor: "#3B82F6"},
		ShowTooltips: true,
	})
	return u
}

func TestRenderPlainTerminal(t *testing.T) {
	u := unit(t)
	u.Enter("link_1")
	out := plain(NewRenderer(Options{}).RenderUnit(u))
	assert.Equal(t, "Use Notion¹ (Docs) with Acme. Xero²", out)
	assert.NotContains(t, out, "\x1b]8;;")
}

func TestRenderHyperlinks(t *testing.T) {
	u := unit(t)
	out := NewRenderer(Options{Hyperlinks: true}).RenderUnit(u)
	assert.Contains(t, out, "\x1b]8;;https://notion.example\x1b\\")
	assert.Contains(t, out, "\x1b]8;;https://acme.example\x1b\\")
	assert.Contains(t, out, "\x1b]8;;\x1b\\")
}

func TestReferences(t *testing.T) {
	u := unit(t)
	r := NewRenderer(Options{})
	refs := plain(r.References(u.Annotated(), citation.StyleBracketed))
	assert.Equal(t, "[1] Notion https://notion.example\n[2] Xero https://xero.example", refs)
	assert.Empty(t, r.References(citation.Annotated{}, citation.StyleNumbered))
}
