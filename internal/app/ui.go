package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"yashubustudio/citelink/citation"
	"yashubustudio/citelink/internal/watch"
	"yashubustudio/citelink/render"
	"yashubustudio/citelink/render/htmlview"
)

type choice struct {
	Value string
	Label string
}

var strategyChoices = []choice{
	{Value: string(citation.StrategyAuto), Label: "自動 (タイトル/キーワード)"},
	{Value: string(citation.StrategyTemplate), Label: "テンプレート"},
	{Value: string(citation.StrategyKeywords), Label: "カスタムパターン"},
	{Value: string(citation.StrategyAppend), Label: "末尾に列挙"},
}

var styleChoices = []choice{
	{Value: string(citation.StyleNumbered), Label: "番号 1"},
	{Value: string(citation.StyleBracketed), Label: "角括弧 [1]"},
	{Value: string(citation.StyleSuperscript), Label: "上付き ¹"},
}

type uiState struct {
	service *citation.Service
	unit    *render.Unit
	logger  *zap.Logger
	// persist saves configuration changes; nil disables saving.
	persist func(citation.Config)

	recsMu sync.Mutex
	recs   []citation.Recommendation

	watchMu sync.Mutex
	watcher *watch.FileWatcher

	w        fyne.Window
	input    *widget.Entry
	template *widget.Entry
	strategy *widget.Select
	style    *widget.Select
	realTime *widget.Check
	tooltips *widget.Check
	output   *widget.RichText
	chips    *fyne.Container

	statusBind  binding.String
	cleanBind   binding.String
	tooltipBind binding.String
	logBind     binding.String
}

func buildUI(a fyne.App, svc *citation.Service, tracker render.LinkTracker, logBind binding.String, logger *zap.Logger) *uiState {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &uiState{service: svc, logger: logger, logBind: logBind}
	cfg := svc.Config()
	u.w = a.NewWindow("Citation Preview - AdMesh")

	u.statusBind = binding.NewString()
	_ = u.statusBind.Set("準備完了")
	u.cleanBind = binding.NewString()
	u.tooltipBind = binding.NewString()

	u.unit = render.NewUnit(tracker, render.Handlers{
		OnRecommendationClick: func(adID, link string) {
			u.setStatus(fmt.Sprintf("クリック: %s", adID))
		},
		OnHover: func(rec citation.Recommendation) {
			if u.service.Config().ShowTooltips {
				_ = u.tooltipBind.Set(tooltipText(rec))
			}
		},
		OnTextUpdate: func(clean string) {
			_ = u.cleanBind.Set(clean)
		},
	}, logger)

	u.input = widget.NewMultiLineEntry()
	u.input.SetPlaceHolder("ここに本文を入力")
	u.input.Wrapping = fyne.TextWrapWord
	u.input.OnChanged = func(string) {
		if u.service.Config().RealTime {
			u.refresh()
		}
	}

	u.template = widget.NewEntry()
	u.template.SetPlaceHolder("テンプレート 例: おすすめは {product1} です")
	u.template.SetText(cfg.Template)
	u.template.OnChanged = func(s string) {
		u.updateConfig(func(c *citation.Config) { c.Template = s })
	}

	u.strategy = widget.NewSelect(choiceLabels(strategyChoices), nil)
	u.strategy.SetSelected(labelFor(strategyChoices, string(cfg.Strategy)))
	u.strategy.OnChanged = func(label string) {
		v := valueFor(strategyChoices, label)
		u.updateConfig(func(c *citation.Config) { c.Strategy = citation.Strategy(v) })
	}

	u.style = widget.NewSelect(choiceLabels(styleChoices), nil)
	u.style.SetSelected(labelFor(styleChoices, string(cfg.Style)))
	u.style.OnChanged = func(label string) {
		v := valueFor(styleChoices, label)
		u.updateConfig(func(c *citation.Config) { c.Style = citation.ParseStyle(v) })
	}

	u.realTime = widget.NewCheck("リアルタイム更新", nil)
	u.realTime.SetChecked(cfg.RealTime)
	u.realTime.OnChanged = func(on bool) {
		u.updateConfig(func(c *citation.Config) { c.RealTime = on })
	}

	u.tooltips = widget.NewCheck("ツールチップ表示", nil)
	u.tooltips.SetChecked(cfg.ShowTooltips)
	u.tooltips.OnChanged = func(on bool) {
		if !on {
			_ = u.tooltipBind.Set("")
		}
		u.updateConfig(func(c *citation.Config) { c.ShowTooltips = on })
	}

	u.output = widget.NewRichText()
	u.output.Wrapping = fyne.TextWrapWord
	u.chips = container.NewVBox()

	applyBtn := widget.NewButtonWithIcon("反映", theme.ViewRefreshIcon(), func() { u.refresh() })
	recsBtn := widget.NewButtonWithIcon("推薦読込", theme.FolderOpenIcon(), func() { u.onLoadRecommendations() })
	linksBtn := widget.NewButtonWithIcon("外部リンク読込", theme.ContentAddIcon(), func() { u.onLoadExternalLinks() })
	textBtn := widget.NewButtonWithIcon("本文ファイル監視", theme.VisibilityIcon(), func() { u.onWatchTextFile() })
	exportBtn := widget.NewButtonWithIcon("HTML出力", theme.DocumentSaveIcon(), func() { u.onExportHTML() })
	rescoreBtn := widget.NewButtonWithIcon("スコア再計算", theme.MediaReplayIcon(), func() { u.rescore(u.recommendations()) })

	logLabel := widget.NewLabelWithData(logBind)
	logLabel.Wrapping = fyne.TextWrapWord
	logScroll := container.NewVScroll(logLabel)
	logScroll.SetMinSize(fyne.NewSize(200, 120))

	tooltipLabel := widget.NewLabelWithData(u.tooltipBind)
	tooltipLabel.Wrapping = fyne.TextWrapWord
	cleanLabel := widget.NewLabelWithData(u.cleanBind)
	cleanLabel.Wrapping = fyne.TextWrapWord

	left := container.NewVBox(
		widget.NewLabelWithStyle("本文", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewStack(u.input),
		container.NewGridWithColumns(3, applyBtn, recsBtn, linksBtn),
		container.NewGridWithColumns(3, textBtn, exportBtn, rescoreBtn),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("設定", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.strategy,
		u.style,
		u.template,
		container.NewHBox(u.realTime, u.tooltips),
		widget.NewLabelWithData(u.statusBind),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("ログ", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		logScroll,
	)

	preview := container.NewVScroll(u.output)
	preview.SetMinSize(fyne.NewSize(360, 240))
	side := container.NewVBox(
		widget.NewLabelWithStyle("引用", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.chips,
		tooltipLabel,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("クリーンテキスト", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		cleanLabel,
	)
	right := container.NewVSplit(preview, container.NewVScroll(side))
	split := container.NewHSplit(left, right)
	split.Offset = 0.4

	u.w.SetContent(split)
	u.w.Resize(fyne.NewSize(1180, 760))
	u.w.SetOnClosed(u.stopWatching)
	u.refresh()
	return u
}

// refresh recomputes the unit when its inputs changed and redraws the view.
func (u *uiState) refresh() {
	props := render.PropsFromConfig(u.service.Config(), u.input.Text, u.recommendations())
	if u.unit.Update(props) {
		annotated := u.unit.Annotated()
		u.setStatus(fmt.Sprintf("リンク %d件 / 推薦 %d件", len(annotated.Markers), len(props.Recommendations)))
		_ = u.tooltipBind.Set("")
	}
	u.redraw()
}

func (u *uiState) redraw() {
	u.output.Segments = u.richSegments(u.unit.Nodes())
	u.output.Refresh()
	u.rebuildChips()
}

func (u *uiState) richSegments(nodes []render.Node) []widget.RichTextSegment {
	segs := make([]widget.RichTextSegment, 0, len(nodes))
	for _, n := range nodes {
		switch n.Kind {
		case render.NodeRecommendation:
			linkID := n.LinkID
			seg := &widget.HyperlinkSegment{Text: n.Text + n.Ref, URL: parseURL(n.URL)}
			seg.OnTapped = func() { u.onCitationTapped(linkID) }
			segs = append(segs, seg)
		case render.NodeExternal:
			// No OnTapped: the segment opens its URL directly.
			segs = append(segs, &widget.HyperlinkSegment{Text: n.Text, URL: parseURL(n.URL)})
		default:
			segs = append(segs, &widget.TextSegment{Text: n.Text, Style: widget.RichTextStyleInline})
		}
	}
	return segs
}

func (u *uiState) rebuildChips() {
	style := u.unit.Props().Style
	annotated := u.unit.Annotated()
	objs := make([]fyne.CanvasObject, 0, len(annotated.Markers))
	for _, m := range annotated.Markers {
		mark := style.Format(citation.ReferenceNumber(m.ID))
		text := fmt.Sprintf("%s %s", mark, m.Recommendation.Label())
		objs = append(objs, newCitationChip(text, m.ID, u.onChipEnter, u.onChipLeave, u.onCitationTapped))
	}
	u.chips.Objects = objs
	u.chips.Refresh()
}

func (u *uiState) onChipEnter(linkID string) {
	u.unit.Enter(linkID)
}

func (u *uiState) onChipLeave(linkID string) {
	u.unit.Leave(linkID)
	if _, ok := u.unit.Hovered(); !ok {
		_ = u.tooltipBind.Set("")
	}
}

func (u *uiState) onCitationTapped(linkID string) {
	if err := u.unit.Click(context.Background(), linkID); err != nil {
		dialog.ShowError(err, u.w)
	}
}

func (u *uiState) updateConfig(mutate func(*citation.Config)) {
	cfg := u.service.Config()
	mutate(&cfg)
	u.service.UpdateConfig(cfg)
	if u.persist != nil {
		u.persist(u.service.Config())
	}
	u.refresh()
}

func (u *uiState) recommendations() []citation.Recommendation {
	u.recsMu.Lock()
	defer u.recsMu.Unlock()
	return append([]citation.Recommendation(nil), u.recs...)
}

func (u *uiState) setRecommendations(recs []citation.Recommendation) {
	u.recsMu.Lock()
	u.recs = recs
	u.recsMu.Unlock()
	u.refresh()
}

func (u *uiState) loadRecommendationFile(path string) error {
	recs, err := citation.ParseRecommendationFile(path)
	if err != nil {
		return fmt.Errorf("推薦ファイルの読み込みに失敗しました: %w", err)
	}
	u.logger.Info("recommendations loaded", zap.String("path", path), zap.Int("count", len(recs)))
	if u.service.Config().RecommendationsPath != path {
		u.updateConfig(func(c *citation.Config) { c.RecommendationsPath = path })
	}
	u.rescore(recs)
	return nil
}

// rescore fills intent scores in the background when scoring is enabled.
func (u *uiState) rescore(recs []citation.Recommendation) {
	if u.service.Config().Scoring.Mode == citation.ScoringOff {
		u.setRecommendations(recs)
		return
	}
	text := u.input.Text
	u.setStatus("スコア計算中...")
	go func() {
		scored, err := u.service.PrepareRecommendations(context.Background(), text, recs)
		fyne.Do(func() {
			if err != nil {
				u.logger.Warn("scoring failed", zap.Error(err))
				dialog.ShowError(err, u.w)
				scored = recs
			}
			u.setRecommendations(scored)
		})
	}()
}

func (u *uiState) onLoadRecommendations() {
	u.openFile([]string{".json", ".yaml", ".yml", ".csv", ".tsv"}, func(path string) error {
		return u.loadRecommendationFile(path)
	})
}

func (u *uiState) onLoadExternalLinks() {
	u.openFile([]string{".json", ".yaml", ".yml", ".csv", ".tsv"}, func(path string) error {
		links, err := citation.ParseExternalLinks(path)
		if err != nil {
			return fmt.Errorf("外部リンクの読み込みに失敗しました: %w", err)
		}
		u.logger.Info("external links loaded", zap.String("path", path), zap.Int("count", len(links)))
		u.updateConfig(func(c *citation.Config) { c.ExternalLinks = links })
		return nil
	})
}

func (u *uiState) onWatchTextFile() {
	u.openFile([]string{".txt", ".md"}, func(path string) error {
		return u.watchTextFile(path)
	})
}

// watchTextFile loads path into the editor and keeps following it.
func (u *uiState) watchTextFile(path string) error {
	text, err := citation.ReadTextFile(path)
	if err != nil {
		return err
	}
	u.input.SetText(text)
	u.refresh()

	w, err := watch.New(path, func(text string) {
		fyne.Do(func() {
			u.input.SetText(text)
			u.refresh()
		})
	}, u.logger)
	if err != nil {
		return err
	}
	if err := w.Start(context.Background()); err != nil {
		return err
	}
	u.watchMu.Lock()
	prev := u.watcher
	u.watcher = w
	u.watchMu.Unlock()
	if prev != nil {
		prev.Stop()
	}
	return nil
}

func (u *uiState) stopWatching() {
	u.watchMu.Lock()
	w := u.watcher
	u.watcher = nil
	u.watchMu.Unlock()
	if w != nil {
		w.Stop()
	}
}

func (u *uiState) onExportHTML() {
	page, err := u.pageHTML()
	if err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil || uc == nil {
			return
		}
		defer uc.Close()
		if _, err := uc.Write([]byte(page)); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.logger.Info("html exported", zap.String("uri", uc.URI().String()))
	}, u.w)
	fd.SetFileName("citation.html")
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".html"}))
	fd.Show()
}

func (u *uiState) pageHTML() (string, error) {
	fragment, err := htmlview.NewRenderer().RenderUnit(u.unit)
	if err != nil {
		return "", err
	}
	doc := htmlview.NewDocument("Citation Preview")
	doc.AppendUnit(fragment)
	return doc.HTML(), nil
}

func (u *uiState) openFile(exts []string, load func(path string) error) {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		if err := load(path); err != nil {
			u.logger.Warn("load failed", zap.String("path", path), zap.Error(err))
			dialog.ShowError(err, u.w)
		}
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter(exts))
	fd.Show()
}

func (u *uiState) setStatus(text string) {
	_ = u.statusBind.Set(text)
}

func tooltipText(rec citation.Recommendation) string {
	if reason := strings.TrimSpace(rec.Reason); reason != "" {
		return fmt.Sprintf("%s: %s", rec.Label(), reason)
	}
	return rec.Label()
}

func parseURL(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

func choiceLabels(choices []choice) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.Label
	}
	return out
}

func labelFor(choices []choice, value string) string {
	for _, c := range choices {
		if c.Value == value {
			return c.Label
		}
	}
	return choices[0].Label
}

func valueFor(choices []choice, label string) string {
	for _, c := range choices {
		if c.Label == label {
			return c.Value
		}
	}
	return choices[0].Value
}
