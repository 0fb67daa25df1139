package citation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var placeholderRe = regexp.MustCompile(`\{(product|recommendation)(\d*)\}`)

// Insert ranks recs and places link markers into text according to
// opts.Strategy. It never fails: unmatched input degrades to fewer inline
// links or to markers appended at the end.
func Insert(text string, recs []Recommendation, opts Options) Annotated {
	ranked := Rank(recs)
	switch opts.Strategy.Normalize() {
	case StrategyTemplate:
		return insertTemplate(text, ranked, opts.Template)
	case StrategyKeywords:
		return insertPatterns(text, ranked, opts.Patterns)
	case StrategyAppend:
		return insertAppend(text, ranked)
	default:
		return insertAuto(text, ranked, opts.ExternalLinks)
	}
}

// insertAuto links each recommendation by title, then by keyword, and
// otherwise appends it. External names are substituted first, so a title that
// equals an external name no longer finds that run of text.
func insertAuto(text string, ranked []Recommendation, external map[string]string) Annotated {
	segs := segmentList{}.appendText(text, false)
	if len(external) > 0 {
		segs = substituteExternal(segs, external)
	}
	linked := make(map[int]string, len(ranked))
	var unmatched []int
	for idx, rec := range ranked {
		id := LinkID(idx)
		linked[idx] = id
		if next, ok := linkTitle(segs, rec, id); ok {
			segs = next
			continue
		}
		if next, ok := linkKeyword(segs, rec, id); ok {
			segs = next
			continue
		}
		unmatched = append(unmatched, idx)
	}
	for _, idx := range unmatched {
		segs = segs.appendText(separatorFor(segs), true)
		segs = append(segs, Segment{
			Kind:   SegmentRecommendation,
			Text:   ranked[idx].Label(),
			LinkID: linked[idx],
		})
	}
	return finish(segs, ranked, linked)
}

func linkTitle(segs segmentList, rec Recommendation, id string) (segmentList, bool) {
	m, ok := newLiteralMatcher(rec.Title)
	if !ok {
		return segs, false
	}
	idx, start, end, found := locate(segs, m.find)
	if !found {
		return segs, false
	}
	matched := segs[idx].Text[start:end]
	return segs.replaceRange(idx, start, end, Segment{
		Kind:   SegmentRecommendation,
		Text:   matched,
		Origin: matched,
		LinkID: id,
	}), true
}

func linkKeyword(segs segmentList, rec Recommendation, id string) (segmentList, bool) {
	for _, kw := range normalizeKeywords(rec.Keywords) {
		m, ok := newLiteralMatcher(kw)
		if !ok {
			continue
		}
		idx, _, end, found := locate(segs, m.find)
		if !found {
			continue
		}
		return insertAfter(segs, idx, end, Segment{
			Kind:   SegmentRecommendation,
			Text:   rec.Label(),
			LinkID: id,
		}), true
	}
	return segs, false
}

func substituteExternal(segs segmentList, external map[string]string) segmentList {
	names := make([]string, 0, len(external))
	for name, url := range external {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(url) == "" {
			continue
		}
		names = append(names, name)
	}
	// Longer names first so "Acme Cloud" wins over "Acme".
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) == len(names[j]) {
			return names[i] < names[j]
		}
		return len(names[i]) > len(names[j])
	})
	for _, name := range names {
		m, ok := newLiteralMatcher(name)
		if !ok {
			continue
		}
		url := strings.TrimSpace(external[name])
		next := make(segmentList, 0, len(segs))
		for _, seg := range segs {
			if !searchable(seg) {
				next = append(next, seg)
				continue
			}
			last := 0
			for _, loc := range m.findAll(seg.Text) {
				next = next.appendText(seg.Text[last:loc[0]], false)
				matched := seg.Text[loc[0]:loc[1]]
				next = append(next, Segment{
					Kind:   SegmentExternal,
					Text:   matched,
					Origin: matched,
					URL:    url,
				})
				last = loc[1]
			}
			next = next.appendText(seg.Text[last:], false)
		}
		segs = next
	}
	return segs
}

// insertTemplate replaces {productN}, {recommendationN} and {product}
// placeholders. Placeholders without a recommendation stay verbatim.
func insertTemplate(text string, ranked []Recommendation, template string) Annotated {
	if strings.TrimSpace(template) == "" {
		template = text
	}
	linked := make(map[int]string, len(ranked))
	var segs segmentList
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		idx, ok := placeholderIndex(template[loc[2]:loc[3]], template[loc[4]:loc[5]], len(ranked))
		if !ok {
			continue
		}
		segs = segs.appendText(template[last:loc[0]], false)
		id := LinkID(idx)
		linked[idx] = id
		segs = append(segs, Segment{
			Kind:   SegmentRecommendation,
			Text:   ranked[idx].Label(),
			Origin: template[loc[0]:loc[1]],
			LinkID: id,
		})
		last = loc[1]
	}
	segs = segs.appendText(template[last:], false)
	return finish(segs, ranked, linked)
}

func placeholderIndex(kind, digits string, n int) (int, bool) {
	if n == 0 {
		return 0, false
	}
	if digits == "" {
		// Only the generic {product} form exists; it always means the top match.
		return 0, kind == "product"
	}
	pos, err := strconv.Atoi(digits)
	if err != nil || pos < 1 || pos > n {
		return 0, false
	}
	return pos - 1, true
}

// insertPatterns applies caller supplied patterns in order. Each pattern links
// its (clamped) recommendation right after the first match.
func insertPatterns(text string, ranked []Recommendation, patterns []Pattern) Annotated {
	segs := segmentList{}.appendText(text, false)
	linked := make(map[int]string, len(ranked))
	if len(ranked) == 0 {
		return finish(segs, ranked, linked)
	}
	for _, p := range patterns {
		idx := clampIndex(p.RecommendationIndex, len(ranked))
		if _, done := linked[idx]; done {
			continue
		}
		find, err := patternFinder(p)
		if err != nil {
			continue
		}
		segIdx, _, end, ok := locate(segs, find)
		if !ok {
			continue
		}
		label := strings.TrimSpace(p.LinkText)
		if label == "" {
			label = ranked[idx].Label()
		}
		id := LinkID(idx)
		linked[idx] = id
		segs = insertAfter(segs, segIdx, end, Segment{
			Kind:   SegmentRecommendation,
			Text:   label,
			LinkID: id,
		})
	}
	return finish(segs, ranked, linked)
}

type finderFunc func(text string) (int, int, bool)

func patternFinder(p Pattern) (finderFunc, error) {
	re := p.Compiled
	if re == nil && p.Regex {
		if p.Pattern == "" {
			return nil, errors.New("empty pattern")
		}
		compiled, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		re = compiled
	}
	if re != nil {
		return func(text string) (int, int, bool) {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				if loc[1] > loc[0] {
					return loc[0], loc[1], true
				}
			}
			return 0, 0, false
		}, nil
	}
	m, ok := newLiteralMatcher(p.Pattern)
	if !ok {
		return nil, errors.New("empty pattern")
	}
	return m.find, nil
}

// ValidatePatterns reports the patterns Insert would skip as unusable.
func ValidatePatterns(patterns []Pattern) []error {
	var errs []error
	for i, p := range patterns {
		if _, err := patternFinder(p); err != nil {
			errs = append(errs, fmt.Errorf("pattern %d %q: %w", i, p.Pattern, err))
		}
	}
	return errs
}

// insertAppend adds "Check out A, B and C." after the text.
func insertAppend(text string, ranked []Recommendation) Annotated {
	segs := segmentList{}.appendText(text, false)
	linked := make(map[int]string, len(ranked))
	if len(ranked) == 0 {
		return finish(segs, ranked, linked)
	}
	segs = segs.appendText(separatorFor(segs)+"Check out ", true)
	for idx, rec := range ranked {
		if idx > 0 {
			sep := ", "
			if idx == len(ranked)-1 {
				sep = " and "
			}
			segs = segs.appendText(sep, true)
		}
		id := LinkID(idx)
		linked[idx] = id
		segs = append(segs, Segment{
			Kind:   SegmentRecommendation,
			Text:   rec.Label(),
			LinkID: id,
		})
	}
	segs = segs.appendText(".", true)
	return finish(segs, ranked, linked)
}

// locate finds the first match inside searchable text segments.
func locate(segs segmentList, find finderFunc) (int, int, int, bool) {
	for i, seg := range segs {
		if !searchable(seg) {
			continue
		}
		if start, end, ok := find(seg.Text); ok {
			return i, start, end, true
		}
	}
	return 0, 0, 0, false
}

// insertAfter places link right after byte offset pos of segment idx,
// separated by a synthetic space.
func insertAfter(segs segmentList, idx, pos int, link Segment) segmentList {
	return segs.replaceRange(idx, pos, pos,
		Segment{Kind: SegmentText, Text: " ", Synthetic: true},
		link,
	)
}

// separatorFor returns the space needed before appending to segs.
func separatorFor(segs segmentList) string {
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].Text == "" {
			continue
		}
		r, _ := utf8.DecodeLastRuneInString(segs[i].Text)
		if unicode.IsSpace(r) {
			return ""
		}
		return " "
	}
	return ""
}
