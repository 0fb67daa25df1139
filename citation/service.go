package citation

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Service ties configuration, optional intent scoring and insertion together.
type Service struct {
	cfgMu sync.RWMutex
	cfg   Config

	embedder Embedder
	scorer   *Scorer

	logger *zap.Logger
}

// NewService constructs a service. embedder may be nil, in which case
// recommendations keep the scores they arrive with.
func NewService(embedder Embedder, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	s := &Service{
		cfg:      cfg,
		embedder: embedder,
		logger:   logger,
	}
	if embedder != nil {
		s.scorer = NewScorer(embedder)
	}
	for _, err := range ValidatePatterns(cfg.Patterns) {
		logger.Warn("pattern will be skipped", zap.Error(err))
	}
	return s
}

// Close releases embedder resources.
func (s *Service) Close() error {
	if s.embedder != nil {
		return s.embedder.Close()
	}
	return nil
}

// Config returns a copy of the current configuration.
func (s *Service) Config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Clone()
}

// UpdateConfig replaces the configuration.
func (s *Service) UpdateConfig(cfg Config) {
	cfg.ApplyDefaults()
	for _, err := range ValidatePatterns(cfg.Patterns) {
		s.logger.Warn("pattern will be skipped", zap.Error(err))
	}
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

// Options returns the insert options for the current configuration.
func (s *Service) Options() Options {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Options()
}

// PrepareRecommendations applies intent scoring according to the configured
// mode. Without an embedder the input is returned unchanged.
func (s *Service) PrepareRecommendations(ctx context.Context, text string, recs []Recommendation) ([]Recommendation, error) {
	mode := s.Config().Scoring.Mode
	if mode == ScoringOff || s.scorer == nil {
		return recs, nil
	}
	scored, err := s.scorer.Score(ctx, text, recs, mode)
	if err != nil {
		return nil, fmt.Errorf("score recommendations: %w", err)
	}
	s.logger.Debug("scored recommendations",
		zap.String("mode", string(mode)),
		zap.Int("count", len(scored)))
	return scored, nil
}

// Annotate scores recs if configured and runs one insertion pass over text.
func (s *Service) Annotate(ctx context.Context, text string, recs []Recommendation) (Annotated, error) {
	prepared, err := s.PrepareRecommendations(ctx, text, recs)
	if err != nil {
		return Annotated{}, err
	}
	opts := s.Options()
	annotated := Insert(text, prepared, opts)
	if skipped := len(recs) - len(Rank(prepared)); skipped > 0 {
		s.logger.Info("skipped unusable recommendations", zap.Int("skipped", skipped))
	}
	s.logger.Debug("annotated text",
		zap.String("strategy", string(opts.Strategy)),
		zap.Int("recommendations", len(recs)),
		zap.Int("markers", len(annotated.Markers)),
		zap.Int("segments", len(annotated.Segments)))
	return annotated, nil
}
