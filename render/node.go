package render

import (
	"strconv"
	"strings"

	"yashubustudio/citelink/citation"
)

// ExternalColor is used for external links so they stand apart from
// recommendation links drawn in the accent colour.
const ExternalColor = "#059669"

// NodeKind discriminates view nodes.
type NodeKind int

const (
	NodeText NodeKind = iota
	NodeRecommendation
	NodeExternal
)

// Node is one renderable piece of a citation unit.
type Node struct {
	// Key is derived from the segment position and stays stable while the
	// segment order does.
	Key    string
	Kind   NodeKind
	Text   string
	LinkID string
	// Ref is the formatted reference mark, e.g. "[2]".
	Ref     string
	URL     string
	Color   string
	Font    string
	Hovered bool
	Tooltip string
	// Recommendation is set for NodeRecommendation.
	Recommendation *citation.Recommendation
}

// IsLink reports whether the node is clickable.
func (n Node) IsLink() bool {
	return n.Kind == NodeRecommendation || n.Kind == NodeExternal
}

// Nodes builds the view tree for the current pass.
func (u *Unit) Nodes() []Node {
	u.mu.Lock()
	annotated := u.annotated
	props := u.props
	hovered := make(map[string]bool, len(u.hovered))
	for k, v := range u.hovered {
		hovered[k] = v
	}
	u.mu.Unlock()
	return BuildNodes(annotated, props, hovered)
}

// BuildNodes converts annotated segments into nodes. A recommendation
// segment whose marker is missing becomes plain text.
func BuildNodes(a citation.Annotated, props Props, hovered map[string]bool) []Node {
	theme := props.Theme
	nodes := make([]Node, 0, len(a.Segments))
	for i, seg := range a.Segments {
		node := Node{
			Key:  "seg-" + strconv.Itoa(i),
			Kind: NodeText,
			Text: seg.Text,
			Font: theme.FontFamily,
		}
		switch seg.Kind {
		case citation.SegmentRecommendation:
			m, ok := a.Marker(seg.LinkID)
			if !ok {
				break
			}
			rec := m.Recommendation.Clone()
			node.Kind = NodeRecommendation
			node.LinkID = seg.LinkID
			node.Ref = props.Style.Format(citation.ReferenceNumber(seg.LinkID))
			node.URL = rec.Link()
			node.Color = theme.AccentColor
			node.Hovered = hovered[seg.LinkID]
			if node.Hovered && props.ShowTooltips {
				node.Tooltip = tooltipFor(rec)
			}
			node.Recommendation = &rec
		case citation.SegmentExternal:
			node.Kind = NodeExternal
			node.URL = seg.URL
			node.Color = ExternalColor
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func tooltipFor(rec citation.Recommendation) string {
	if reason := strings.TrimSpace(rec.Reason); reason != "" {
		return reason
	}
	return rec.Label()
}

// CleanText joins node text, which equals the plain text of the pass.
func CleanText(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(n.Text)
	}
	return b.String()
}
