// Package termview renders citation units for terminals using lipgloss.
package termview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"yashubustudio/citelink/citation"
	"yashubustudio/citelink/render"
)

// Options controls terminal output.
type Options struct {
	// Hyperlinks wraps links in OSC 8 escape sequences.
	Hyperlinks bool
	// Width wraps the text when positive.
	Width int
}

// Renderer holds the styles used for terminal output.
type Renderer struct {
	opts      Options
	markStyle lipgloss.Style
	tipStyle  lipgloss.Style
}

// NewRenderer creates a terminal renderer.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{
		opts:      opts,
		markStyle: lipgloss.NewStyle().Faint(true),
		tipStyle:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
	}
}

// Render draws nodes as a single styled string.
func (r *Renderer) Render(nodes []render.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case render.NodeRecommendation:
			style := lipgloss.NewStyle().Underline(true).Bold(n.Hovered)
			if n.Color != "" {
				style = style.Foreground(lipgloss.Color(n.Color))
			}
			b.WriteString(r.link(n.URL, style.Render(n.Text)))
			if n.Ref != "" {
				b.WriteString(r.markStyle.Render(n.Ref))
			}
			if n.Tooltip != "" {
				b.WriteString(" ")
				b.WriteString(r.tipStyle.Render("(" + n.Tooltip + ")"))
			}
		case render.NodeExternal:
			style := lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(n.Color))
			b.WriteString(r.link(n.URL, style.Render(n.Text)))
		default:
			// Unstyled so multi-line text is not padded into a block.
			b.WriteString(n.Text)
		}
	}
	out := b.String()
	if r.opts.Width > 0 {
		out = lipgloss.NewStyle().Width(r.opts.Width).Render(out)
	}
	return out
}

// RenderUnit renders the current state of u.
func (r *Renderer) RenderUnit(u *render.Unit) string {
	return r.Render(u.Nodes())
}

// References lists the markers of a pass as footnotes, one per line.
func (r *Renderer) References(a citation.Annotated, style citation.Style) string {
	if len(a.Markers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(a.Markers))
	for _, m := range a.Markers {
		mark := style.Format(citation.ReferenceNumber(m.ID))
		line := r.markStyle.Render(mark) + " " + m.Recommendation.Label() + " " + r.link(m.Recommendation.Link(), m.Recommendation.Link())
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) link(url, label string) string {
	if !r.opts.Hyperlinks || url == "" {
		return label
	}
	return "\x1b]8;;" + url + "\x1b\\" + label + "\x1b]8;;\x1b\\"
}
