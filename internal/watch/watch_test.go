package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type collector struct {
	mu    sync.Mutex
	texts []string
}

func (c *collector) add(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

func (c *collector) last() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.texts) == 0 {
		return "", 0
	}
	return c.texts[len(c.texts)-1], len(c.texts)
}

func TestFileWatcherReportsSettledChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "story.txt")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))

	var got collector
	w, err := New(path, got.add, zaptest.NewLogger(t), WithDebounce(30*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()), "second start is a no-op")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("second\r\nline"), 0o644))

	require.Eventually(t, func() bool {
		text, _ := got.last()
		return text == "second\nline"
	}, 3*time.Second, 10*time.Millisecond)

	w.Stop()
	w.Stop()
	_, n := got.last()
	assert.GreaterOrEqual(t, n, 1)
}

func TestFileWatcherStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	w, err := New(path, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
}

func TestFileWatcherMissingDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(filepath.Join(t.TempDir(), "gone", "story.txt"), nil, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
	require.NoError(t, w.watcher.Close())
}
