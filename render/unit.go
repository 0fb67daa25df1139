// Package render turns annotated citation text into view nodes and keeps the
// small amount of interactive state a citation unit needs.
package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"yashubustudio/citelink/citation"
)

// Click is the payload handed to a LinkTracker.
type Click struct {
	AdID      string
	ProductID string
	URL       string
	Metadata  map[string]string
}

// LinkTracker records a click and is responsible for opening the link.
type LinkTracker interface {
	TrackClick(ctx context.Context, c Click) error
}

// Handlers are optional host callbacks.
type Handlers struct {
	OnRecommendationClick func(adID, url string)
	OnHover               func(rec citation.Recommendation)
	// OnTextUpdate receives the label-only text once per recompute when
	// Props.RealTime is set.
	OnTextUpdate func(clean string)
}

// Props are the inputs of a citation unit.
type Props struct {
	Text            string
	Recommendations []citation.Recommendation
	Options         citation.Options
	Style           citation.Style
	Theme           citation.Theme
	RealTime        bool
	ShowTooltips    bool
}

// PropsFromConfig builds props from a loaded configuration.
func PropsFromConfig(cfg citation.Config, text string, recs []citation.Recommendation) Props {
	return Props{
		Text:            text,
		Recommendations: recs,
		Options:         cfg.Options(),
		Style:           cfg.Style,
		Theme:           cfg.Theme,
		RealTime:        cfg.RealTime,
		ShowTooltips:    cfg.ShowTooltips,
	}
}

// Unit is a stateful citation unit. It is safe for concurrent use; handlers
// are always invoked without the internal lock held.
type Unit struct {
	mu       sync.Mutex
	tracker  LinkTracker
	handlers Handlers
	logger   *zap.Logger

	props     Props
	computed  bool
	annotated citation.Annotated
	pass      string
	hovered   map[string]bool
	current   string
}

// NewUnit creates an empty unit. tracker may be nil.
func NewUnit(tracker LinkTracker, handlers Handlers, logger *zap.Logger) *Unit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Unit{
		tracker:  tracker,
		handlers: handlers,
		logger:   logger,
		hovered:  make(map[string]bool),
	}
}

// Update stores props and recomputes the annotation when the text, the
// recommendations or the insert options changed. It reports whether a
// recompute happened.
func (u *Unit) Update(props Props) bool {
	u.mu.Lock()
	changed := !u.computed ||
		props.Text != u.props.Text ||
		!sameRecommendations(props.Recommendations, u.props.Recommendations) ||
		!sameOptions(props.Options, u.props.Options)
	props.Recommendations = cloneRecommendations(props.Recommendations)
	u.props = props
	if !changed {
		u.mu.Unlock()
		return false
	}
	annotated := citation.Insert(props.Text, props.Recommendations, props.Options)
	u.annotated = annotated
	u.computed = true
	u.pass = uuid.NewString()
	u.hovered = make(map[string]bool)
	u.current = ""
	pass := u.pass
	notify := props.RealTime && u.handlers.OnTextUpdate != nil
	u.mu.Unlock()

	u.logger.Debug("citation unit recomputed",
		zap.String("pass", pass),
		zap.Int("markers", len(annotated.Markers)),
		zap.Int("segments", len(annotated.Segments)))
	if notify {
		u.handlers.OnTextUpdate(annotated.Plain())
	}
	return true
}

// Annotated returns the current insert result.
func (u *Unit) Annotated() citation.Annotated {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.annotated
}

// Plain returns the current text with links reduced to their labels.
func (u *Unit) Plain() string {
	return u.Annotated().Plain()
}

// Pass identifies the current recompute.
func (u *Unit) Pass() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pass
}

// Props returns the last props passed to Update.
func (u *Unit) Props() Props {
	u.mu.Lock()
	defer u.mu.Unlock()
	p := u.props
	p.Recommendations = cloneRecommendations(p.Recommendations)
	return p
}

// Enter marks a recommendation link as hovered.
func (u *Unit) Enter(linkID string) {
	u.mu.Lock()
	m, ok := u.annotated.Marker(linkID)
	if !ok {
		u.mu.Unlock()
		return
	}
	u.hovered[linkID] = true
	u.current = linkID
	onHover := u.handlers.OnHover
	u.mu.Unlock()

	if onHover != nil {
		onHover(m.Recommendation.Clone())
	}
}

// Leave clears the hover flag of a link.
func (u *Unit) Leave(linkID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.hovered, linkID)
	if u.current == linkID {
		u.current = ""
	}
}

// Hovered returns the recommendation under the pointer, if any.
func (u *Unit) Hovered() (citation.Recommendation, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.current == "" {
		return citation.Recommendation{}, false
	}
	m, ok := u.annotated.Marker(u.current)
	if !ok {
		return citation.Recommendation{}, false
	}
	return m.Recommendation.Clone(), true
}

// Click handles activation of a recommendation link. The unit never opens
// the URL itself; that is left to the tracker. Unknown IDs are ignored.
func (u *Unit) Click(ctx context.Context, linkID string) error {
	u.mu.Lock()
	m, ok := u.annotated.Marker(linkID)
	pass := u.pass
	strategy := u.props.Options.Strategy.Normalize()
	tracker := u.tracker
	onClick := u.handlers.OnRecommendationClick
	u.mu.Unlock()
	if !ok {
		u.logger.Debug("click on unknown link ignored", zap.String("link", linkID))
		return nil
	}

	rec := m.Recommendation
	url := rec.Link()
	if onClick != nil {
		onClick(rec.AdID, url)
	}
	if tracker == nil {
		return nil
	}
	err := tracker.TrackClick(ctx, Click{
		AdID:      rec.AdID,
		ProductID: rec.ProductID,
		URL:       url,
		Metadata: map[string]string{
			"link_id":  linkID,
			"pass_id":  pass,
			"label":    m.Label,
			"strategy": string(strategy),
			"source":   "citation_unit",
		},
	})
	if err != nil {
		u.logger.Warn("click tracking failed", zap.String("ad_id", rec.AdID), zap.Error(err))
		return fmt.Errorf("track click: %w", err)
	}
	return nil
}

func cloneRecommendations(recs []citation.Recommendation) []citation.Recommendation {
	if recs == nil {
		return nil
	}
	out := make([]citation.Recommendation, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
