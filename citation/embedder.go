package citation

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"yashubustudio/citelink/emb"
)

// Embedder exposes the minimal surface required by the scorer.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
	ModelID() string
}

// encoder is the subset of emb.Encoder used by OrtEmbedder.
type encoder interface {
	Encode(text string) ([]float32, error)
	Close()
}

// OrtEmbedder wraps emb.Encoder with a memory and on-disk vector cache.
type OrtEmbedder struct {
	enc   encoder
	cfg   EmbedderConfig
	mu    sync.RWMutex
	cache map[string][]float32
}

// NewOrtEmbedder initializes the encoder and prepares the cache directory.
func NewOrtEmbedder(cfg EmbedderConfig) (*OrtEmbedder, error) {
	if cfg.ModelID == "" && cfg.ModelPath != "" {
		cfg.ModelID = filepath.Base(cfg.ModelPath)
	}
	enc := &emb.Encoder{}
	if err := enc.Init(emb.Config{
		OrtDLL:        cfg.OrtDLL,
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		MaxSeqLen:     cfg.MaxSeqLen,
		Dim:           cfg.Dim,
	}); err != nil {
		return nil, err
	}
	return newOrtEmbedder(enc, cfg)
}

func newOrtEmbedder(enc encoder, cfg EmbedderConfig) (*OrtEmbedder, error) {
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			enc.Close()
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &OrtEmbedder{enc: enc, cfg: cfg, cache: make(map[string][]float32)}, nil
}

// Close releases ORT resources.
func (o *OrtEmbedder) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.enc != nil {
		o.enc.Close()
		o.enc = nil
	}
	o.cache = nil
	return nil
}

// ModelID returns the identifier used for cache keys.
func (o *OrtEmbedder) ModelID() string {
	return o.cfg.ModelID
}

// EmbedText embeds a single string, consulting memory then disk first.
func (o *OrtEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.RLock()
	enc := o.enc
	o.mu.RUnlock()
	if enc == nil {
		return nil, errors.New("embedder is not initialized")
	}
	normalized := NormalizeText(text)
	key := o.cacheKey(normalized)
	if vec, ok := o.fromMemory(key); ok {
		return vec, nil
	}
	if vec, err := o.loadFromDisk(key); err == nil {
		o.remember(key, vec)
		return cloneVector(vec), nil
	}
	vec, err := enc.Encode(normalized)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	o.remember(key, vec)
	_ = o.saveToDisk(key, vec)
	return cloneVector(vec), nil
}

// EmbedTexts embeds a slice of strings sequentially.
func (o *OrtEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := o.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (o *OrtEmbedder) cacheKey(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, o.cfg.ModelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (o *OrtEmbedder) fromMemory(key string) ([]float32, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	vec, ok := o.cache[key]
	if !ok {
		return nil, false
	}
	return cloneVector(vec), true
}

func (o *OrtEmbedder) remember(key string, vec []float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cache != nil {
		o.cache[key] = cloneVector(vec)
	}
}

// Cache files hold a little-endian uint32 length followed by float32 values.
func (o *OrtEmbedder) loadFromDisk(key string) ([]float32, error) {
	if o.cfg.CacheDir == "" {
		return nil, os.ErrNotExist
	}
	path := filepath.Join(o.cfg.CacheDir, key+".bin")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("cache file too small: %s", path)
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, fmt.Errorf("cache length mismatch: %s", path)
	}
	vec := make([]float32, length)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

func (o *OrtEmbedder) saveToDisk(key string, vec []float32) error {
	if o.cfg.CacheDir == "" {
		return nil
	}
	path := filepath.Join(o.cfg.CacheDir, key+".bin")
	tmp := path + ".tmp"
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
