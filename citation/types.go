package citation

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy selects how link markers are placed into the source text.
type Strategy string

const (
	// StrategyAuto matches titles, then keywords, then appends.
	StrategyAuto Strategy = "auto"
	// StrategyTemplate replaces {productN} style placeholders.
	StrategyTemplate Strategy = "template"
	// StrategyKeywords applies caller supplied patterns.
	StrategyKeywords Strategy = "keywords"
	// StrategyAppend appends every recommendation as an English list.
	StrategyAppend Strategy = "append"
)

// Normalize maps unknown or empty strategies to StrategyAuto.
func (s Strategy) Normalize() Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(string(s)))) {
	case StrategyTemplate:
		return StrategyTemplate
	case StrategyKeywords:
		return StrategyKeywords
	case StrategyAppend:
		return StrategyAppend
	default:
		return StrategyAuto
	}
}

// Recommendation is one ranked candidate to cite.
type Recommendation struct {
	AdID             string   `json:"ad_id" yaml:"ad_id"`
	ProductID        string   `json:"product_id,omitempty" yaml:"product_id,omitempty"`
	Title            string   `json:"title" yaml:"title"`
	Reason           string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	IntentMatchScore float64  `json:"intent_match_score" yaml:"intent_match_score"`
	AdmeshLink       string   `json:"admesh_link,omitempty" yaml:"admesh_link,omitempty"`
	URL              string   `json:"url,omitempty" yaml:"url,omitempty"`
	Keywords         []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Link resolves the tracking link, falling back to the plain URL.
func (r Recommendation) Link() string {
	if link := strings.TrimSpace(r.AdmeshLink); link != "" {
		return link
	}
	return strings.TrimSpace(r.URL)
}

// Usable reports whether the recommendation can be rendered as a working link.
func (r Recommendation) Usable() bool {
	return strings.TrimSpace(r.AdID) != "" && r.Link() != ""
}

// Label is the default clickable text for the recommendation.
func (r Recommendation) Label() string {
	for _, v := range []string{r.Title, r.ProductID, r.AdID} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a deep copy.
func (r Recommendation) Clone() Recommendation {
	out := r
	out.Keywords = cloneStrings(r.Keywords)
	return out
}

// Pattern is a custom insertion rule used by StrategyKeywords.
type Pattern struct {
	// Pattern is a literal string unless Regex is set.
	Pattern  string         `json:"pattern" yaml:"pattern"`
	Regex    bool           `json:"regex,omitempty" yaml:"regex,omitempty"`
	Compiled *regexp.Regexp `json:"-" yaml:"-"`
	// RecommendationIndex is clamped into the ranked list.
	RecommendationIndex int    `json:"recommendationIndex" yaml:"recommendation_index"`
	LinkText            string `json:"linkText,omitempty" yaml:"link_text,omitempty"`
}

// Options configures a single Insert pass.
type Options struct {
	Strategy Strategy
	// Template is used by StrategyTemplate; the source text is used when empty.
	Template string
	Patterns []Pattern
	// ExternalLinks maps literal names to URLs. Only StrategyAuto applies it,
	// and it runs before recommendation matching.
	ExternalLinks map[string]string
}

// Style is the reference mark format shown next to recommendation links.
type Style string

const (
	StyleNumbered    Style = "numbered"
	StyleBracketed   Style = "bracketed"
	StyleSuperscript Style = "superscript"
)

// Theme carries the only theme values the renderer consumes.
type Theme struct {
	AccentColor string `json:"accentColor" yaml:"accent_color"`
	FontFamily  string `json:"fontFamily" yaml:"font_family"`
}

// ScoringMode controls when intent match scores are computed by the embedder.
type ScoringMode string

const (
	ScoringOff     ScoringMode = "off"
	ScoringMissing ScoringMode = "missing"
	ScoringAlways  ScoringMode = "always"
)

// EmbedderConfig wraps the configuration for the ORT embedder and cache.
type EmbedderConfig struct {
	OrtDLL        string `json:"ortDll" yaml:"ort_dll"`
	ModelPath     string `json:"modelPath" yaml:"model_path"`
	TokenizerPath string `json:"tokenizerPath" yaml:"tokenizer_path"`
	MaxSeqLen     int    `json:"maxSeqLen" yaml:"max_seq_len"`
	Dim           int    `json:"dim" yaml:"dim"`
	CacheDir      string `json:"cacheDir" yaml:"cache_dir"`
	ModelID       string `json:"modelId" yaml:"model_id"`
}

// ScoringConfig groups intent score settings.
type ScoringConfig struct {
	Mode     ScoringMode    `json:"mode" yaml:"mode"`
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`
}

// Config aggregates runtime settings persisted to config.json.
type Config struct {
	Strategy            Strategy          `json:"strategy" yaml:"strategy"`
	Style               Style             `json:"style" yaml:"style"`
	Template            string            `json:"template,omitempty" yaml:"template,omitempty"`
	Patterns            []Pattern         `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	ExternalLinks       map[string]string `json:"externalLinks,omitempty" yaml:"external_links,omitempty"`
	Theme               Theme             `json:"theme" yaml:"theme"`
	RealTime            bool              `json:"realTime" yaml:"real_time"`
	ShowTooltips        bool              `json:"showTooltips" yaml:"show_tooltips"`
	Scoring             ScoringConfig     `json:"scoring" yaml:"scoring"`
	RecommendationsPath string            `json:"recommendationsPath,omitempty" yaml:"recommendations_path,omitempty"`
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	// Compiled expressions do not survive JSON.
	for i := range out.Patterns {
		if i < len(c.Patterns) {
			out.Patterns[i].Compiled = c.Patterns[i].Compiled
		}
	}
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	c.Strategy = c.Strategy.Normalize()
	switch c.Style {
	case StyleNumbered, StyleBracketed, StyleSuperscript:
	default:
		c.Style = StyleNumbered
	}
	if c.Theme.AccentColor == "" {
		c.Theme.AccentColor = "#3B82F6"
	}
	if c.Theme.FontFamily == "" {
		c.Theme.FontFamily = "Inter, system-ui, sans-serif"
	}
	switch c.Scoring.Mode {
	case ScoringOff, ScoringMissing, ScoringAlways:
	default:
		c.Scoring.Mode = ScoringOff
	}
	if c.Scoring.Embedder.MaxSeqLen == 0 {
		c.Scoring.Embedder.MaxSeqLen = 512
	}
	if c.Scoring.Embedder.Dim == 0 {
		c.Scoring.Embedder.Dim = 1024
	}
}

// Options derives the insert options described by the configuration.
func (c Config) Options() Options {
	opts := Options{
		Strategy: c.Strategy.Normalize(),
		Template: c.Template,
	}
	if len(c.Patterns) > 0 {
		opts.Patterns = append([]Pattern(nil), c.Patterns...)
	}
	if len(c.ExternalLinks) > 0 {
		opts.ExternalLinks = make(map[string]string, len(c.ExternalLinks))
		for k, v := range c.ExternalLinks {
			opts.ExternalLinks[k] = v
		}
	}
	return opts
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
