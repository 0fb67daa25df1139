package app

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"yashubustudio/citelink/citation"
	"yashubustudio/citelink/render"
)

type recordingTracker struct {
	clicks []render.Click
}

func (r *recordingTracker) TrackClick(_ context.Context, c render.Click) error {
	r.clicks = append(r.clicks, c)
	return nil
}

func newTestUI(t *testing.T) (*uiState, *recordingTracker) {
	t.Helper()
	a := test.NewTempApp(t)
	logger := zaptest.NewLogger(t)
	svc := citation.NewService(nil, citation.Config{RealTime: true, ShowTooltips: true}, logger)
	tracker := &recordingTracker{}
	u := buildUI(a, svc, tracker, binding.NewString(), logger)
	t.Cleanup(u.stopWatching)
	return u, tracker
}

func hubspot() citation.Recommendation {
	return citation.Recommendation{
		AdID:             "hs",
		Title:            "HubSpot CRM",
		Reason:           "Free tier",
		IntentMatchScore: 0.9,
		AdmeshLink:       "https://track.example/hs",
	}
}

func TestUIRendersHyperlinkSegments(t *testing.T) {
	u, tracker := newTestUI(t)
	u.input.SetText("Try HubSpot CRM today.")
	u.setRecommendations([]citation.Recommendation{hubspot()})

	var links []*widget.HyperlinkSegment
	for _, seg := range u.output.Segments {
		if h, ok := seg.(*widget.HyperlinkSegment); ok {
			links = append(links, h)
		}
	}
	require.Len(t, links, 1)
	assert.Equal(t, "HubSpot CRM1", links[0].Text)
	require.NotNil(t, links[0].URL)
	assert.Equal(t, "https://track.example/hs", links[0].URL.String())

	require.NotNil(t, links[0].OnTapped)
	links[0].OnTapped()
	require.Len(t, tracker.clicks, 1)
	assert.Equal(t, "hs", tracker.clicks[0].AdID)
	assert.Equal(t, "link_1", tracker.clicks[0].Metadata["link_id"])

	clean, err := u.cleanBind.Get()
	require.NoError(t, err)
	assert.Equal(t, "Try HubSpot CRM today.", clean)
	assert.Len(t, u.chips.Objects, 1)
}

func TestUIChipHoverShowsTooltip(t *testing.T) {
	u, _ := newTestUI(t)
	u.input.SetText("Try HubSpot CRM today.")
	u.setRecommendations([]citation.Recommendation{hubspot()})
	require.Len(t, u.chips.Objects, 1)

	chip, ok := u.chips.Objects[0].(*citationChip)
	require.True(t, ok)
	chip.MouseIn(nil)
	tip, _ := u.tooltipBind.Get()
	assert.Equal(t, "HubSpot CRM: Free tier", tip)
	assert.Equal(t, widget.HighImportance, chip.Importance)

	chip.MouseOut()
	tip, _ = u.tooltipBind.Get()
	assert.Empty(t, tip)

	u.tooltips.SetChecked(false)
	chip = u.chips.Objects[0].(*citationChip)
	chip.MouseIn(nil)
	tip, _ = u.tooltipBind.Get()
	assert.Empty(t, tip)
}

func TestUIStrategyChangeRecomputes(t *testing.T) {
	u, _ := newTestUI(t)
	var saved []citation.Config
	u.persist = func(c citation.Config) { saved = append(saved, c) }

	u.input.SetText("No product names here.")
	u.setRecommendations([]citation.Recommendation{hubspot()})
	passBefore := u.unit.Pass()

	u.strategy.SetSelected(labelFor(strategyChoices, string(citation.StrategyAppend)))
	assert.Equal(t, citation.StrategyAppend, u.service.Config().Strategy)
	require.NotEmpty(t, saved)
	assert.Equal(t, citation.StrategyAppend, saved[len(saved)-1].Strategy)
	assert.NotEqual(t, passBefore, u.unit.Pass())
	assert.Len(t, u.unit.Annotated().Markers, 1)
	assert.Contains(t, u.unit.Plain(), "HubSpot CRM")
}

func TestUIStyleSelectChangesReference(t *testing.T) {
	u, _ := newTestUI(t)
	u.input.SetText("Try HubSpot CRM today.")
	u.setRecommendations([]citation.Recommendation{hubspot()})

	u.style.SetSelected(labelFor(styleChoices, string(citation.StyleBracketed)))
	for _, seg := range u.output.Segments {
		if h, ok := seg.(*widget.HyperlinkSegment); ok {
			assert.Equal(t, "HubSpot CRM[1]", h.Text)
		}
	}
}

func TestUILoadRecommendationFile(t *testing.T) {
	u, _ := newTestUI(t)
	path := filepath.Join(t.TempDir(), "recs.json")
	body := `[{"ad_id":"n1","title":"Notion","intent_match_score":0.7,"url":"https://notion.example"}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	u.input.SetText("We use Notion daily.")
	require.NoError(t, u.loadRecommendationFile(path))
	assert.Equal(t, path, u.service.Config().RecommendationsPath)
	require.Len(t, u.recommendations(), 1)
	require.Len(t, u.unit.Annotated().Markers, 1)
	assert.Equal(t, "Notion", u.unit.Annotated().Markers[0].Label)

	assert.Error(t, u.loadRecommendationFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestUIWatchTextFileLoadsContent(t *testing.T) {
	u, _ := newTestUI(t)
	path := filepath.Join(t.TempDir(), "draft.txt")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffline one\r\nline two"), 0o644))

	require.NoError(t, u.watchTextFile(path))
	assert.Equal(t, "line one\nline two", u.input.Text)
	assert.NotNil(t, u.watcher)
}

func TestUIPageHTML(t *testing.T) {
	u, _ := newTestUI(t)
	u.input.SetText("Try HubSpot CRM today.")
	u.setRecommendations([]citation.Recommendation{hubspot()})

	page, err := u.pageHTML()
	require.NoError(t, err)
	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, `data-link-id="link_1"`)
}

func TestChoiceLookupFallsBack(t *testing.T) {
	assert.Equal(t, strategyChoices[0].Label, labelFor(strategyChoices, "bogus"))
	assert.Equal(t, strategyChoices[0].Value, valueFor(strategyChoices, "bogus"))
	assert.Equal(t, string(citation.StyleSuperscript), valueFor(styleChoices, labelFor(styleChoices, "superscript")))
}

func TestAccentTheme(t *testing.T) {
	th := newAccentTheme("#f00")
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, th.Color(theme.ColorNamePrimary, theme.VariantLight))
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, th.Color(theme.ColorNameHyperlink, theme.VariantDark))

	_, ok := parseHexColor("#12345")
	assert.False(t, ok)
	_, ok = parseHexColor("zzzzzz")
	assert.False(t, ok)
	c, ok := parseHexColor("3B82F6")
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}, c)
}

func TestLogCaptureKeepsTail(t *testing.T) {
	b := binding.NewString()
	lc := newLogCapture(b, 2)
	n, err := lc.Write([]byte("one\r\ntwo\n\nthree\n"))
	require.NoError(t, err)
	assert.Equal(t, len("one\r\ntwo\n\nthree\n"), n)
	got, _ := b.Get()
	assert.Equal(t, "two\nthree", got)

	logger := newLogger(lc)
	logger.Info("hello pane")
	got, _ = b.Get()
	assert.Contains(t, got, "hello pane")
}
