package app

import (
	"fmt"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/data/binding"
	"go.uber.org/zap"

	"yashubustudio/citelink/citation"
)

const fyneAppID = "yashubustudio.citelink"

// Run loads the configuration and starts the desktop preview.
func Run() error {
	cfg, err := citation.LoadConfig("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBind := binding.NewString()
	logger := newLogger(newLogCapture(logBind, 300))
	defer func() { _ = logger.Sync() }()

	var embedder citation.Embedder
	if cfg.Scoring.Mode != citation.ScoringOff {
		e, err := citation.NewOrtEmbedder(cfg.Scoring.Embedder)
		if err != nil {
			logger.Warn("embedder unavailable, using scores as given", zap.Error(err))
		} else {
			embedder = e
		}
	}
	svc := citation.NewService(embedder, cfg, logger)
	defer svc.Close()

	a := fyneapp.NewWithID(fyneAppID)
	a.Settings().SetTheme(newAccentTheme(cfg.Theme.AccentColor))
	u := buildUI(a, svc, newFyneTracker(a, logger), logBind, logger)
	u.persist = func(c citation.Config) {
		if err := citation.SaveConfig("", c); err != nil {
			logger.Warn("save config failed", zap.Error(err))
		}
	}
	if cfg.RecommendationsPath != "" {
		if err := u.loadRecommendationFile(cfg.RecommendationsPath); err != nil {
			logger.Warn("load recommendations failed", zap.String("path", cfg.RecommendationsPath), zap.Error(err))
		}
	}
	u.w.ShowAndRun()
	return nil
}
