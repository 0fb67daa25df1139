package citation

import "sync"

// ColumnCandidates defines possible header names for auto-detecting CSV/TSV columns.
type ColumnCandidates struct {
	AdID       []string `json:"adId"`
	ProductID  []string `json:"productId"`
	Title      []string `json:"title"`
	Reason     []string `json:"reason"`
	Score      []string `json:"score"`
	AdmeshLink []string `json:"admeshLink"`
	URL        []string `json:"url"`
	Keywords   []string `json:"keywords"`
}

var (
	columnCandidatesMu  sync.RWMutex
	activeColumnOptions = defaultColumnCandidates()
)

func defaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		AdID:       []string{"ad_id", "adId", "ad id", "id"},
		ProductID:  []string{"product_id", "productId", "product id", "sku"},
		Title:      []string{"title", "name", "product", "product_title"},
		Reason:     []string{"reason", "description", "summary"},
		Score:      []string{"intent_match_score", "intentMatchScore", "score"},
		AdmeshLink: []string{"admesh_link", "admeshLink", "tracking_link"},
		URL:        []string{"url", "link", "href"},
		Keywords:   []string{"keywords", "tags"},
	}
}

// DefaultColumnCandidates returns the built-in column detection candidates.
func DefaultColumnCandidates() ColumnCandidates {
	return defaultColumnCandidates().clone()
}

// SetColumnCandidates updates the column detection candidates used during auto-detection.
// Fields left nil fall back to the built-in defaults.
func SetColumnCandidates(candidates ColumnCandidates) {
	columnCandidatesMu.Lock()
	defer columnCandidatesMu.Unlock()
	activeColumnOptions = candidates.withDefaults()
}

func getColumnCandidates() ColumnCandidates {
	columnCandidatesMu.RLock()
	defer columnCandidatesMu.RUnlock()
	return activeColumnOptions.clone()
}

func (c ColumnCandidates) withDefaults() ColumnCandidates {
	d := defaultColumnCandidates()
	return ColumnCandidates{
		AdID:       pickStrings(c.AdID, d.AdID),
		ProductID:  pickStrings(c.ProductID, d.ProductID),
		Title:      pickStrings(c.Title, d.Title),
		Reason:     pickStrings(c.Reason, d.Reason),
		Score:      pickStrings(c.Score, d.Score),
		AdmeshLink: pickStrings(c.AdmeshLink, d.AdmeshLink),
		URL:        pickStrings(c.URL, d.URL),
		Keywords:   pickStrings(c.Keywords, d.Keywords),
	}
}

func (c ColumnCandidates) clone() ColumnCandidates {
	return ColumnCandidates{
		AdID:       cloneStrings(c.AdID),
		ProductID:  cloneStrings(c.ProductID),
		Title:      cloneStrings(c.Title),
		Reason:     cloneStrings(c.Reason),
		Score:      cloneStrings(c.Score),
		AdmeshLink: cloneStrings(c.AdmeshLink),
		URL:        cloneStrings(c.URL),
		Keywords:   cloneStrings(c.Keywords),
	}
}

func pickStrings(custom, fallback []string) []string {
	if custom == nil {
		return cloneStrings(fallback)
	}
	return cloneStrings(custom)
}
