package citation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeEmbedder maps each text to a fixed vector keyed by its first word.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	closed  bool
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	first := strings.ToLower(strings.Fields(text)[0])
	if v, ok := f.vectors[first]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Close() error {
	f.closed = true
	return nil
}

func (f *fakeEmbedder) ModelID() string { return "fake" }

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"crm":   {1, 0, 0},
		"alpha": {1, 0, 0},
		"beta":  {0.6, 0.8, 0},
		"gamma": {-1, 0, 0},
	}}
}

func TestScorerModes(t *testing.T) {
	recs := []Recommendation{rec("a", "Alpha", 0), rec("b", "Beta", 0.3), rec("g", "Gamma", math.NaN())}
	s := NewScorer(newFakeEmbedder())

	missing, err := s.Score(context.Background(), "CRM tools", recs, ScoringMissing)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, missing[0].IntentMatchScore, 1e-6)
	assert.Equal(t, 0.3, missing[1].IntentMatchScore)
	assert.Zero(t, missing[2].IntentMatchScore, "negative similarity clamps to zero")

	always, err := s.Score(context.Background(), "CRM tools", recs, ScoringAlways)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, always[1].IntentMatchScore, 1e-6)

	off, err := s.Score(context.Background(), "CRM tools", recs, ScoringOff)
	require.NoError(t, err)
	assert.Zero(t, off[0].IntentMatchScore)
	assert.Zero(t, recs[0].IntentMatchScore, "input must not be mutated")
}

func TestScorerBlankTextKeepsScores(t *testing.T) {
	s := NewScorer(newFakeEmbedder())
	out, err := s.Score(context.Background(), "   ", []Recommendation{rec("a", "Alpha", 0)}, ScoringAlways)
	require.NoError(t, err)
	assert.Zero(t, out[0].IntentMatchScore)
}

func TestScorerPropagatesEmbedError(t *testing.T) {
	emb := newFakeEmbedder()
	emb.err = errors.New("boom")
	_, err := NewScorer(emb).Score(context.Background(), "CRM", []Recommendation{rec("a", "Alpha", 0)}, ScoringAlways)
	assert.ErrorContains(t, err, "boom")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.Zero(t, cosineSimilarity(nil, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, "Alpha\nWhy\ncrm, sales", recommendationDocument(Recommendation{Title: "Alpha", Reason: "Why", Keywords: []string{"crm", "sales"}}))
}

func TestServiceAnnotate(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	emb := newFakeEmbedder()
	cfg := Config{
		Strategy: StrategyAuto,
		Scoring:  ScoringConfig{Mode: ScoringAlways},
		Patterns: []Pattern{{Pattern: "(", Regex: true}},
	}
	svc := NewService(emb, cfg, zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("pattern will be skipped").Len())

	recs := []Recommendation{
		rec("b", "Beta", 0.99),
		rec("a", "Alpha", 0),
		{AdID: "broken", Title: "Broken"},
	}
	annotated, err := svc.Annotate(context.Background(), "CRM: Alpha or Beta?", recs)
	require.NoError(t, err)
	require.Len(t, annotated.Markers, 2)
	// Scoring replaces the stale 0.99 so Alpha ranks first.
	assert.Equal(t, "a", annotated.Markers[0].Recommendation.AdID)
	assert.Equal(t, "CRM: Alpha or Beta?", annotated.Plain())
	assert.Equal(t, 1, logs.FilterMessage("skipped unusable recommendations").Len())
	assert.Equal(t, 1, logs.FilterMessage("annotated text").Len())

	require.NoError(t, svc.Close())
	assert.True(t, emb.closed)
}

func TestServiceWithoutEmbedder(t *testing.T) {
	svc := NewService(nil, Config{Scoring: ScoringConfig{Mode: ScoringAlways}}, nil)
	recs := []Recommendation{rec("a", "Alpha", 0.1), rec("b", "Beta", 0.2)}
	out, err := svc.PrepareRecommendations(context.Background(), "text", recs)
	require.NoError(t, err)
	assert.Equal(t, recs, out)
	assert.NoError(t, svc.Close())

	svc.UpdateConfig(Config{Strategy: StrategyAppend})
	assert.Equal(t, StrategyAppend, svc.Options().Strategy)
	assert.Equal(t, "#3B82F6", svc.Config().Theme.AccentColor)

	annotated, err := svc.Annotate(context.Background(), "Intro.", recs)
	require.NoError(t, err)
	assert.Equal(t, "Intro. Check out Beta and Alpha.", annotated.Plain())
}

func TestServiceScoringError(t *testing.T) {
	emb := newFakeEmbedder()
	emb.err = errors.New("offline")
	svc := NewService(emb, Config{Scoring: ScoringConfig{Mode: ScoringMissing}}, zap.NewNop())
	_, err := svc.Annotate(context.Background(), "text", []Recommendation{rec("a", "Alpha", 0)})
	assert.ErrorContains(t, err, "score recommendations")
}

// countingEncoder records how often the model actually runs.
type countingEncoder struct {
	mu     sync.Mutex
	calls  int
	closed bool
}

func (c *countingEncoder) Encode(text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEncoder) Close() {
	c.closed = true
}

func TestOrtEmbedderCachesInMemoryAndOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	enc := &countingEncoder{}
	e, err := newOrtEmbedder(enc, EmbedderConfig{CacheDir: dir, ModelID: "m1"})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := e.EmbedText(ctx, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, first)
	first[0] = 99

	again, err := e.EmbedText(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, again, "cached vectors are copied")
	assert.Equal(t, 1, enc.calls)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".bin"))

	// A fresh embedder over the same directory reads the disk cache.
	enc2 := &countingEncoder{}
	e2, err := newOrtEmbedder(enc2, EmbedderConfig{CacheDir: dir, ModelID: "m1"})
	require.NoError(t, err)
	vecs, err := e2.EmbedTexts(ctx, []string{"hello", "hi"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{5, 1}, {2, 1}}, vecs)
	assert.Equal(t, 1, enc2.calls)

	require.NoError(t, e.Close())
	assert.True(t, enc.closed)
	_, err = e.EmbedText(ctx, "hello")
	assert.Error(t, err)
	assert.Equal(t, "m1", e.ModelID())
}

func TestOrtEmbedderHonorsContext(t *testing.T) {
	e, err := newOrtEmbedder(&countingEncoder{}, EmbedderConfig{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.EmbedText(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrtEmbedderRejectsCorruptCache(t *testing.T) {
	dir := t.TempDir()
	e, err := newOrtEmbedder(&countingEncoder{}, EmbedderConfig{CacheDir: dir})
	require.NoError(t, err)
	key := e.cacheKey("x")
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".bin"), []byte{1}, 0o644))
	_, err = e.loadFromDisk(key)
	assert.ErrorContains(t, err, "too small")
}
