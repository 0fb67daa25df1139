package app

import (
	"context"
	"fmt"
	"net/url"

	"fyne.io/fyne/v2"
	"go.uber.org/zap"

	"yashubustudio/citelink/render"
)

// fyneTracker logs click telemetry and opens the link in the system browser.
type fyneTracker struct {
	app    fyne.App
	logger *zap.Logger
}

func newFyneTracker(a fyne.App, logger *zap.Logger) *fyneTracker {
	return &fyneTracker{app: a, logger: logger}
}

func (t *fyneTracker) TrackClick(ctx context.Context, c render.Click) error {
	t.logger.Info("recommendation clicked",
		zap.String("ad_id", c.AdID),
		zap.String("product_id", c.ProductID),
		zap.String("url", c.URL),
		zap.Any("metadata", c.Metadata))
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("parse link %q: %w", c.URL, err)
	}
	return t.app.OpenURL(u)
}
