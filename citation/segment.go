package citation

import (
	"fmt"
	"strings"
)

// SegmentKind discriminates the variants of Segment.
type SegmentKind int

const (
	// SegmentText is verbatim text.
	SegmentText SegmentKind = iota
	// SegmentRecommendation is a clickable reference to a ranked recommendation.
	SegmentRecommendation
	// SegmentExternal is a caller supplied name linked to an arbitrary URL.
	SegmentExternal
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentText:
		return "text"
	case SegmentRecommendation:
		return "recommendation"
	case SegmentExternal:
		return "external"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Segment is one piece of annotated text.
type Segment struct {
	Kind SegmentKind
	// Text is the plain text, or the clickable label for links.
	Text string
	// Origin is the source substring a link replaced. Empty for inserted links.
	Origin string
	// LinkID references a Marker for SegmentRecommendation.
	LinkID string
	// URL is the target of SegmentExternal.
	URL string
	// Synthetic marks connective text added by the engine.
	Synthetic bool
}

// IsLink reports whether the segment is clickable.
func (s Segment) IsLink() bool {
	return s.Kind == SegmentRecommendation || s.Kind == SegmentExternal
}

// Marker pairs a ranked recommendation with the label that becomes clickable.
type Marker struct {
	ID             string
	Recommendation Recommendation
	Label          string
	// Offset is the byte offset of the first label occurrence in Annotated.Plain.
	Offset int
}

// Annotated is the result of one Insert pass.
type Annotated struct {
	Segments []Segment
	// Markers are ordered by rank; IDs are unique within the pass.
	Markers []Marker
}

// Plain renders the text with every link reduced to its label.
func (a Annotated) Plain() string {
	var b strings.Builder
	for _, seg := range a.Segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Source reconstructs the text the pass started from: synthetic text and
// inserted links are dropped and replaced substrings restored.
func (a Annotated) Source() string {
	var b strings.Builder
	for _, seg := range a.Segments {
		switch {
		case seg.Kind == SegmentText && !seg.Synthetic:
			b.WriteString(seg.Text)
		case seg.IsLink():
			b.WriteString(seg.Origin)
		}
	}
	return b.String()
}

// Marker looks up a marker by link ID.
func (a Annotated) Marker(id string) (Marker, bool) {
	for _, m := range a.Markers {
		if m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

// LinkCount counts recommendation link segments.
func (a Annotated) LinkCount() int {
	n := 0
	for _, seg := range a.Segments {
		if seg.Kind == SegmentRecommendation {
			n++
		}
	}
	return n
}

// LinkID formats the identifier for the recommendation at ranked position idx.
func LinkID(idx int) string {
	return fmt.Sprintf("link_%d", idx+1)
}

// segmentList is the working buffer used while inserting.
type segmentList []Segment

// searchable reports whether matching may look inside seg.
func searchable(seg Segment) bool {
	return seg.Kind == SegmentText && !seg.Synthetic && seg.Text != ""
}

// replaceRange splits the text segment at idx so that [start,end) becomes repl.
func (l segmentList) replaceRange(idx, start, end int, repl ...Segment) segmentList {
	seg := l[idx]
	parts := make([]Segment, 0, len(repl)+2)
	if start > 0 {
		parts = append(parts, Segment{Kind: SegmentText, Text: seg.Text[:start]})
	}
	parts = append(parts, repl...)
	if end < len(seg.Text) {
		parts = append(parts, Segment{Kind: SegmentText, Text: seg.Text[end:]})
	}
	out := make(segmentList, 0, len(l)+len(parts)-1)
	out = append(out, l[:idx]...)
	out = append(out, parts...)
	out = append(out, l[idx+1:]...)
	return out
}

func (l segmentList) appendText(text string, synthetic bool) segmentList {
	if text == "" {
		return l
	}
	return append(l, Segment{Kind: SegmentText, Text: text, Synthetic: synthetic})
}

// finish assigns marker offsets and drops empty text segments.
func finish(segs segmentList, ranked []Recommendation, linked map[int]string) Annotated {
	out := Annotated{Segments: make([]Segment, 0, len(segs))}
	offsets := make(map[string]int, len(linked))
	labels := make(map[string]string, len(linked))
	pos := 0
	for _, seg := range segs {
		if seg.Kind == SegmentText && seg.Text == "" {
			continue
		}
		if seg.Kind == SegmentRecommendation {
			if _, seen := offsets[seg.LinkID]; !seen {
				offsets[seg.LinkID] = pos
				labels[seg.LinkID] = seg.Text
			}
		}
		pos += len(seg.Text)
		out.Segments = append(out.Segments, seg)
	}
	for idx, rec := range ranked {
		id, ok := linked[idx]
		if !ok {
			continue
		}
		off, placed := offsets[id]
		if !placed {
			continue
		}
		out.Markers = append(out.Markers, Marker{
			ID:             id,
			Recommendation: rec.Clone(),
			Label:          labels[id],
			Offset:         off,
		})
	}
	return out
}
