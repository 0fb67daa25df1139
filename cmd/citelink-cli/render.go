package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yashubustudio/citelink/citation"
	"yashubustudio/citelink/render"
	"yashubustudio/citelink/render/htmlview"
	"yashubustudio/citelink/render/termview"
)

// sourceFlags are shared by every command that builds a service.
type sourceFlags struct {
	configPath string
	recsPath   string
	linksPath  string
	strategy   string
	template   string
	style      string
	recOpts    citation.RecommendationParseOptions
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Path to config.json or config.yaml (default: ./config.json)")
	flags.StringVarP(&f.recsPath, "recommendations", "r", "", "JSON/YAML/CSV/TSV recommendation file (default: recommendationsPath from config)")
	flags.StringVar(&f.linksPath, "links", "", "JSON/YAML/CSV/TSV file mapping names to external URLs")
	flags.StringVar(&f.strategy, "strategy", "", "Insertion strategy: auto, template, keywords or append")
	flags.StringVar(&f.template, "template", "", "Template used by the template strategy")
	flags.StringVar(&f.style, "style", "", "Reference style: numbered, bracketed or superscript")
	flags.StringVar(&f.recOpts.AdIDColumn, "ad-id-column", "", "Column name or #index for the ad id")
	flags.StringVar(&f.recOpts.TitleColumn, "title-column", "", "Column name or #index for the title")
	flags.StringVar(&f.recOpts.URLColumn, "url-column", "", "Column name or #index for the link")
	flags.StringVar(&f.recOpts.ScoreColumn, "score-column", "", "Column name or #index for the intent match score")
	flags.StringVar(&f.recOpts.KeywordsColumn, "keywords-column", "", "Column name or #index for keywords")
}

// session is a configured service plus the recommendations to cite.
type session struct {
	cfg     citation.Config
	service *citation.Service
	recs    []citation.Recommendation
}

func (f *sourceFlags) open(logger *zap.Logger) (*session, error) {
	cfg, err := citation.LoadConfig(strings.TrimSpace(f.configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.strategy != "" {
		cfg.Strategy = citation.Strategy(strings.ToLower(strings.TrimSpace(f.strategy)))
	}
	if f.template != "" {
		cfg.Template = f.template
	}
	if f.style != "" {
		cfg.Style = citation.ParseStyle(f.style)
	}
	if path := strings.TrimSpace(f.linksPath); path != "" {
		links, err := citation.ParseExternalLinks(path)
		if err != nil {
			return nil, fmt.Errorf("read external links: %w", err)
		}
		if cfg.ExternalLinks == nil {
			cfg.ExternalLinks = make(map[string]string, len(links))
		}
		for name, url := range links {
			cfg.ExternalLinks[name] = url
		}
	}

	recsPath := strings.TrimSpace(f.recsPath)
	if recsPath == "" {
		recsPath = cfg.RecommendationsPath
	}
	if recsPath == "" {
		return nil, errors.New("missing required --recommendations file")
	}
	recs, err := citation.ParseRecommendationFileWithOptions(recsPath, f.recOpts)
	if err != nil {
		return nil, fmt.Errorf("read recommendations: %w", err)
	}

	var embedder citation.Embedder
	if cfg.Scoring.Mode != citation.ScoringOff {
		ort, err := citation.NewOrtEmbedder(cfg.Scoring.Embedder)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		embedder = ort
	}
	svc := citation.NewService(embedder, cfg, logger)
	logger.Debug("session ready",
		zap.String("recommendations", recsPath),
		zap.Int("count", len(recs)),
		zap.String("strategy", string(svc.Config().Strategy)))
	return &session{cfg: svc.Config(), service: svc, recs: recs}, nil
}

func (s *session) Close() error {
	return s.service.Close()
}

// unit builds a citation unit for text, scoring recommendations first when
// the configuration asks for it.
func (s *session) unit(ctx context.Context, text string, tracker render.LinkTracker, handlers render.Handlers, logger *zap.Logger) (*render.Unit, error) {
	recs, err := s.service.PrepareRecommendations(ctx, text, s.recs)
	if err != nil {
		return nil, err
	}
	u := render.NewUnit(tracker, handlers, logger)
	u.Update(render.PropsFromConfig(s.cfg, text, recs))
	return u, nil
}

const (
	formatPlain = "plain"
	formatTerm  = "term"
	formatHTML  = "html"
	formatJSON  = "json"
)

type renderOptions struct {
	sourceFlags
	format        string
	outputDir     string
	jobs          int
	hyperlinks    bool
	width         int
	clickEndpoint string
}

func newRenderCmd(c *cli) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render [TEXT_FILE...]",
		Short: "Annotate text files with citation links",
		Long: `Reads each text file (or STDIN when none is given), links the loaded
recommendations into it and prints the result. With --output-dir every input
is written to its own file instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), opts, args, cmd.InOrStdin(), cmd.OutOrStdout(), c.logger)
		},
	}
	opts.register(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", formatTerm, "Output format: term, plain, html or json")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory where rendered files are written (default: STDOUT)")
	flags.IntVarP(&opts.jobs, "jobs", "j", 4, "Number of inputs rendered concurrently")
	flags.BoolVar(&opts.hyperlinks, "hyperlinks", false, "Emit OSC 8 terminal hyperlinks in term output")
	flags.IntVar(&opts.width, "width", 0, "Wrap term output at this width")
	flags.StringVar(&opts.clickEndpoint, "click-endpoint", "", "Tracking URL that HTML recommendation links go through (default: link directly)")
	return cmd
}

type renderInput struct {
	name string
	text string
}

func runRender(ctx context.Context, opts *renderOptions, args []string, stdin io.Reader, stdout io.Writer, logger *zap.Logger) error {
	switch opts.format {
	case formatPlain, formatTerm, formatHTML, formatJSON:
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
	inputs, err := readInputs(args, stdin)
	if err != nil {
		return err
	}
	s, err := opts.open(logger)
	if err != nil {
		return err
	}
	defer s.Close()

	outputs := make([]string, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		g.SetLimit(opts.jobs)
	}
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			out, err := renderOne(gctx, s, in.text, opts, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", in.name, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.outputDir == "" {
		for i, out := range outputs {
			if i > 0 {
				fmt.Fprintln(stdout)
			}
			fmt.Fprintln(stdout, out)
		}
		return nil
	}
	for i, in := range inputs {
		path, err := resolveOutputPath(in.name, opts.outputDir, opts.format)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(outputs[i]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logger.Info("rendered", zap.String("input", in.name), zap.String("output", path))
	}
	return nil
}

func readInputs(args []string, stdin io.Reader) ([]renderInput, error) {
	if len(args) == 0 {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		text := strings.TrimPrefix(string(raw), "\ufeff")
		return []renderInput{{name: "-", text: strings.ReplaceAll(text, "\r\n", "\n")}}, nil
	}
	inputs := make([]renderInput, 0, len(args))
	for _, path := range args {
		text, err := citation.ReadTextFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		inputs = append(inputs, renderInput{name: path, text: text})
	}
	return inputs, nil
}

func renderOne(ctx context.Context, s *session, text string, opts *renderOptions, logger *zap.Logger) (string, error) {
	if opts.format == formatJSON {
		// JSON carries segments and markers only, so no view unit is needed.
		annotated, err := s.service.Annotate(ctx, text, s.recs)
		if err != nil {
			return "", err
		}
		return encodeJSON(uuid.NewString(), annotated)
	}
	u, err := s.unit(ctx, text, nil, render.Handlers{}, logger)
	if err != nil {
		return "", err
	}
	switch opts.format {
	case formatPlain:
		return render.CleanText(u.Nodes()), nil
	case formatHTML:
		fragment, err := htmlview.NewRenderer(htmlview.WithClickEndpoint(opts.clickEndpoint)).RenderUnit(u)
		if err != nil {
			return "", err
		}
		doc := htmlview.NewDocument("Citations")
		doc.AppendUnit(fragment)
		return doc.HTML(), nil
	default:
		r := termview.NewRenderer(termview.Options{Hyperlinks: opts.hyperlinks, Width: opts.width})
		out := r.RenderUnit(u)
		if refs := r.References(u.Annotated(), u.Props().Style); refs != "" {
			out += "\n\n" + refs
		}
		return out, nil
	}
}

type jsonSegment struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	LinkID string `json:"link_id,omitempty"`
	URL    string `json:"url,omitempty"`
}

type jsonMarker struct {
	ID     string  `json:"id"`
	AdID   string  `json:"ad_id"`
	Label  string  `json:"label"`
	Offset int     `json:"offset"`
	URL    string  `json:"url"`
	Score  float64 `json:"intent_match_score"`
}

type jsonResult struct {
	Pass     string        `json:"pass"`
	Text     string        `json:"text"`
	Segments []jsonSegment `json:"segments"`
	Markers  []jsonMarker  `json:"markers"`
}

func encodeJSON(pass string, a citation.Annotated) (string, error) {
	res := jsonResult{
		Pass:     pass,
		Text:     a.Plain(),
		Segments: make([]jsonSegment, 0, len(a.Segments)),
		Markers:  make([]jsonMarker, 0, len(a.Markers)),
	}
	for _, seg := range a.Segments {
		res.Segments = append(res.Segments, jsonSegment{Kind: seg.Kind.String(), Text: seg.Text, LinkID: seg.LinkID, URL: seg.URL})
	}
	for _, m := range a.Markers {
		res.Markers = append(res.Markers, jsonMarker{
			ID:     m.ID,
			AdID:   m.Recommendation.AdID,
			Label:  m.Label,
			Offset: m.Offset,
			URL:    m.Recommendation.Link(),
			Score:  m.Recommendation.IntentMatchScore,
		})
	}
	buf, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(buf), nil
}

func formatExt(format string) string {
	switch format {
	case formatHTML:
		return ".html"
	case formatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// resolveOutputPath names the output after the input file. STDIN input gets a
// timestamped name.
func resolveOutputPath(input, dir, format string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	base := "citelink_" + time.Now().Format("20060102150405")
	if input != "-" && input != "" {
		name := filepath.Base(input)
		base = strings.TrimSuffix(name, filepath.Ext(name)) + ".cited"
	}
	return filepath.Join(absDir, base+formatExt(format)), nil
}
