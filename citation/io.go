package citation

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RecommendationParseOptions lets callers pin CSV columns by name or #index.
type RecommendationParseOptions struct {
	AdIDColumn     string
	TitleColumn    string
	URLColumn      string
	ScoreColumn    string
	KeywordsColumn string
}

type recommendationEnvelope struct {
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
}

// ReadTextFile reads a narrative text file with CRLF line endings normalized.
func ReadTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}

// ParseRecommendationFile reads recommendations from JSON, YAML, CSV or TSV.
func ParseRecommendationFile(path string) ([]Recommendation, error) {
	return ParseRecommendationFileWithOptions(path, RecommendationParseOptions{})
}

// ParseRecommendationFileWithOptions allows callers to specify column mappings for delimited files.
func ParseRecommendationFileWithOptions(path string, opts RecommendationParseOptions) ([]Recommendation, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseDelimitedRecommendations(path, ',', opts)
	case ".tsv":
		return parseDelimitedRecommendations(path, '\t', opts)
	case ".yaml", ".yml":
		return parseStructuredRecommendations(path, yaml.Unmarshal)
	default:
		return parseStructuredRecommendations(path, json.Unmarshal)
	}
}

func parseStructuredRecommendations(path string, unmarshal func([]byte, any) error) ([]Recommendation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	var list []Recommendation
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var env recommendationEnvelope
	if err := unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return env.Recommendations, nil
}

func parseDelimitedRecommendations(path string, comma rune, opts RecommendationParseOptions) ([]Recommendation, error) {
	rows, err := readDelimited(path, comma)
	if err != nil {
		return nil, err
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	cols, err := resolveRecommendationColumns(header, opts)
	if err != nil {
		return nil, err
	}
	recs := make([]Recommendation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := Recommendation{
			AdID:       cellAt(row, cols.adID),
			ProductID:  cellAt(row, cols.productID),
			Title:      cellAt(row, cols.title),
			Reason:     cellAt(row, cols.reason),
			AdmeshLink: cellAt(row, cols.admeshLink),
			URL:        cellAt(row, cols.url),
			Keywords:   splitKeywords(cellAt(row, cols.keywords)),
		}
		if raw := cellAt(row, cols.score); raw != "" {
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid score %q", i+2, raw)
			}
			rec.IntentMatchScore = score
		}
		if rec.AdID == "" && rec.Title == "" && rec.Link() == "" {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ParseExternalLinks reads a name to URL map from JSON, YAML, CSV or TSV.
func ParseExternalLinks(path string) (map[string]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".csv" || ext == ".tsv" {
		comma := ','
		if ext == ".tsv" {
			comma = '\t'
		}
		rows, err := readDelimited(path, comma)
		if err != nil {
			return nil, err
		}
		start := 0
		if len(rows[0]) >= 2 && strings.EqualFold(cleanCell(rows[0][0]), "name") {
			start = 1
		}
		links := make(map[string]string, len(rows)-start)
		for _, row := range rows[start:] {
			name, url := cellAt(row, 0), cellAt(row, 1)
			if name == "" || url == "" {
				continue
			}
			links[name] = url
		}
		return links, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	links := make(map[string]string)
	if ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, &links)
	} else {
		err = json.Unmarshal(data, &links)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return links, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}
	return rows, nil
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return cleanCell(row[idx])
}

func splitKeywords(cell string) []string {
	if cell == "" {
		return nil
	}
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ';' || r == '|' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

type recommendationColumns struct {
	adID, productID, title, reason, score, admeshLink, url, keywords int
}

func resolveRecommendationColumns(header []string, opts RecommendationParseOptions) (recommendationColumns, error) {
	c := getColumnCandidates()
	var (
		cols recommendationColumns
		err  error
	)
	if cols.adID, err = pickColumn(header, opts.AdIDColumn, c.AdID); err != nil {
		return cols, err
	}
	if cols.title, err = pickColumn(header, opts.TitleColumn, c.Title); err != nil {
		return cols, err
	}
	if cols.url, err = pickColumn(header, opts.URLColumn, c.URL); err != nil {
		return cols, err
	}
	if cols.score, err = pickColumn(header, opts.ScoreColumn, c.Score); err != nil {
		return cols, err
	}
	if cols.keywords, err = pickColumn(header, opts.KeywordsColumn, c.Keywords); err != nil {
		return cols, err
	}
	cols.productID = findColumn(header, c.ProductID)
	cols.reason = findColumn(header, c.Reason)
	cols.admeshLink = findColumn(header, c.AdmeshLink)
	if cols.adID < 0 && cols.title < 0 {
		return cols, errors.New("no recognizable recommendation header (need ad_id or title)")
	}
	return cols, nil
}

func findColumn(header []string, candidates []string) int {
	for i, col := range header {
		for _, cand := range candidates {
			if strings.EqualFold(col, cand) {
				return i
			}
		}
	}
	return -1
}

func pickColumn(header []string, explicit string, candidates []string) (int, error) {
	trimmed := strings.TrimSpace(explicit)
	if trimmed == "" {
		return findColumn(header, candidates), nil
	}
	for i, col := range header {
		if strings.EqualFold(col, trimmed) {
			return i, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := parseColumnIndex(trimmed)
		if err != nil {
			return -1, err
		}
		if idx >= len(header) {
			return -1, fmt.Errorf("column index %s is out of range", trimmed)
		}
		return idx, nil
	}
	return -1, fmt.Errorf("column %q not found", explicit)
}

func parseColumnIndex(token string) (int, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(token, "#"))
	idx, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	if idx <= 0 {
		return -1, fmt.Errorf("column indices are 1-based: %q", token)
	}
	return idx - 1, nil
}
