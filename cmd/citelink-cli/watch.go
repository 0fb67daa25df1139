package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yashubustudio/citelink/citation"
	"yashubustudio/citelink/internal/watch"
	"yashubustudio/citelink/render"
)

type watchOptions struct {
	sourceFlags
	debounce time.Duration
}

func newWatchCmd(c *cli) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch TEXT_FILE",
		Short: "Re-render a text file every time it changes",
		Long: `Follows TEXT_FILE and prints its clean text with citations linked each
time the file is saved. Stops on interrupt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), opts, args[0], cmd.OutOrStdout(), c.logger)
		},
	}
	opts.register(cmd)
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 300*time.Millisecond, "Quiet period before a change is rendered")
	return cmd
}

// textPrinter writes every clean text update on its own block.
type textPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *textPrinter) print(clean string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, clean)
	fmt.Fprintln(p.out, "----")
}

func runWatch(ctx context.Context, opts *watchOptions, path string, stdout io.Writer, logger *zap.Logger) error {
	s, err := opts.open(logger)
	if err != nil {
		return err
	}
	defer s.Close()

	// Updates are printed through OnTextUpdate, so the unit must run in real time.
	s.cfg.RealTime = true
	printer := &textPrinter{out: stdout}
	unit := render.NewUnit(nil, render.Handlers{OnTextUpdate: printer.print}, logger)

	apply := func(text string) {
		recs, err := s.service.PrepareRecommendations(ctx, text, s.recs)
		if err != nil {
			logger.Warn("scoring failed, using incoming scores", zap.Error(err))
			recs = s.recs
		}
		unit.Update(render.PropsFromConfig(s.cfg, text, recs))
	}

	text, err := citation.ReadTextFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	apply(text)

	w, err := watch.New(path, apply, logger, watch.WithDebounce(opts.debounce))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()
	logger.Info("watching", zap.String("path", path))

	<-ctx.Done()
	return nil
}
