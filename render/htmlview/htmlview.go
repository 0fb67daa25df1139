// Package htmlview renders citation units as sanitized HTML fragments.
package htmlview

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"yashubustudio/citelink/render"
)

// StylesheetID identifies the shared citation stylesheet inside a Document.
const StylesheetID = "citelink-unit"

// Stylesheet styles the classes emitted by Renderer.
const Stylesheet = `.citelink-unit{line-height:1.6}
.citelink-ref{text-decoration:underline;text-underline-offset:2px;cursor:pointer}
.citelink-ref.is-hovered{font-weight:600}
.citelink-mark{font-size:.75em;margin-left:1px}
.citelink-external{text-decoration:underline dotted}
.citelink-tooltip{display:inline-block;margin-left:4px;padding:0 4px;border-radius:4px;background:#111827;color:#fff;font-size:.8em}`

// Renderer builds HTML with x/net/html and passes it through a bluemonday
// policy that only admits the markup the renderer produces.
//
// A rendered page has no LinkTracker behind it. By default recommendation
// anchors point straight at the destination, so clicks in an exported page
// are not tracked. WithClickEndpoint routes them through a tracking URL
// instead.
type Renderer struct {
	policy   *bluemonday.Policy
	endpoint string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClickEndpoint makes recommendation anchors link to endpoint with the
// link id, ad id and destination in the query string. The endpoint is
// expected to record the click and redirect.
func WithClickEndpoint(endpoint string) Option {
	return func(r *Renderer) {
		r.endpoint = strings.TrimSpace(endpoint)
	}
}

// NewRenderer creates a renderer with the citation sanitization policy.
func NewRenderer(opts ...Option) *Renderer {
	p := bluemonday.NewPolicy()
	p.AllowElements("span", "a", "sup")
	p.AllowAttrs("class", "title").Globally()
	p.AllowDataAttributes()
	p.AllowStyles("color", "font-family").Globally()
	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	r := &Renderer{policy: p}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render returns the sanitized HTML fragment for nodes.
func (r *Renderer) Render(nodes []render.Node) (string, error) {
	root := element(atom.Span, "citelink-unit")
	if len(nodes) > 0 && nodes[0].Font != "" {
		root.Attr = append(root.Attr, html.Attribute{Key: "style", Val: "font-family:" + nodes[0].Font})
	}
	for _, n := range nodes {
		root.AppendChild(r.buildNode(n))
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// RenderUnit renders the current state of u.
func (r *Renderer) RenderUnit(u *render.Unit) (string, error) {
	return r.Render(u.Nodes())
}

// clickURL returns the tracking URL for a recommendation anchor, or the
// destination itself when no endpoint is set. Destinations the policy would
// reject are passed through unchanged so the sanitizer still drops them.
func (r *Renderer) clickURL(n render.Node) string {
	if r.endpoint == "" {
		return n.URL
	}
	dest, err := url.Parse(n.URL)
	if err != nil {
		return n.URL
	}
	switch strings.ToLower(dest.Scheme) {
	case "http", "https", "mailto":
	default:
		return n.URL
	}
	q := url.Values{}
	q.Set("link_id", n.LinkID)
	if n.Recommendation != nil {
		q.Set("ad_id", n.Recommendation.AdID)
	}
	q.Set("url", n.URL)
	sep := "?"
	if strings.Contains(r.endpoint, "?") {
		sep = "&"
	}
	return r.endpoint + sep + q.Encode()
}

func (r *Renderer) buildNode(n render.Node) *html.Node {
	switch n.Kind {
	case render.NodeRecommendation:
		class := "citelink-ref"
		if n.Hovered {
			class += " is-hovered"
		}
		a := element(atom.A, class)
		a.Attr = append(a.Attr,
			html.Attribute{Key: "href", Val: r.clickURL(n)},
			html.Attribute{Key: "data-link-id", Val: n.LinkID},
			html.Attribute{Key: "style", Val: "color:" + n.Color},
		)
		if n.Recommendation != nil {
			a.Attr = append(a.Attr, html.Attribute{Key: "data-ad-id", Val: n.Recommendation.AdID})
		}
		if n.Tooltip != "" {
			a.Attr = append(a.Attr, html.Attribute{Key: "title", Val: n.Tooltip})
		}
		a.AppendChild(text(n.Text))
		if n.Ref != "" {
			sup := element(atom.Sup, "citelink-mark")
			sup.AppendChild(text(n.Ref))
			a.AppendChild(sup)
		}
		if n.Tooltip != "" {
			tip := element(atom.Span, "citelink-tooltip")
			tip.AppendChild(text(n.Tooltip))
			wrap := element(atom.Span, "citelink-anchor")
			wrap.AppendChild(a)
			wrap.AppendChild(tip)
			return wrap
		}
		return a
	case render.NodeExternal:
		a := element(atom.A, "citelink-external")
		a.Attr = append(a.Attr,
			html.Attribute{Key: "href", Val: n.URL},
			html.Attribute{Key: "style", Val: "color:" + n.Color},
		)
		a.AppendChild(text(n.Text))
		return a
	default:
		return text(n.Text)
	}
}

func element(a atom.Atom, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Document collects rendered units into one HTML page. Stylesheets are
// registered through EnsureStylesheet, so a page carries each one once no
// matter how many units are appended.
type Document struct {
	title  string
	sheets []stylesheet
	body   []string
}

type stylesheet struct {
	id  string
	css string
}

// NewDocument starts an empty page.
func NewDocument(title string) *Document {
	return &Document{title: title}
}

// EnsureStylesheet adds css under id unless a sheet with that id exists.
// It reports whether the sheet was added.
func (d *Document) EnsureStylesheet(id, css string) bool {
	for _, s := range d.sheets {
		if s.id == id {
			return false
		}
	}
	d.sheets = append(d.sheets, stylesheet{id: id, css: css})
	return true
}

// AppendUnit adds a rendered fragment wrapped in a paragraph and makes sure
// the citation stylesheet is present.
func (d *Document) AppendUnit(fragment string) {
	d.EnsureStylesheet(StylesheetID, Stylesheet)
	d.body = append(d.body, "<p>"+fragment+"</p>")
}

// HTML returns the full page.
func (d *Document) HTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	if d.title != "" {
		b.WriteString("<title>")
		b.WriteString(html.EscapeString(d.title))
		b.WriteString("</title>")
	}
	for _, s := range d.sheets {
		fmt.Fprintf(&b, "<style id=%q>%s</style>", html.EscapeString(s.id), s.css)
	}
	b.WriteString("</head><body>\n")
	for _, frag := range d.body {
		b.WriteString(frag)
		b.WriteString("\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}
