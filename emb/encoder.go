// Package emb wraps an ONNX sentence encoder and its HuggingFace tokenizer.
package emb

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// Config locates the runtime library, model and tokenizer.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	// Dim is the hidden size of the model output.
	Dim int
}

var (
	envMu   sync.Mutex
	envRefs int
)

// Encoder turns text into L2-normalized mean-pooled embeddings.
type Encoder struct {
	mu      sync.Mutex
	tk      *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
	cfg     Config
}

// Init loads the tokenizer and creates the ORT session.
func (e *Encoder) Init(cfg Config) error {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return errors.New("model and tokenizer paths are required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 512
	}
	if cfg.Dim <= 0 {
		cfg.Dim = 1024
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	if err := acquireEnv(cfg.OrtDLL); err != nil {
		return err
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"last_hidden_state"},
		nil)
	if err != nil {
		releaseEnv()
		return fmt.Errorf("create session: %w", err)
	}
	e.tk = tk
	e.session = session
	e.cfg = cfg
	return nil
}

// Encode embeds a single text.
func (e *Encoder) Encode(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("encoder is not initialized")
	}
	en, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	n := len(en.Ids)
	if n > e.cfg.MaxSeqLen {
		n = e.cfg.MaxSeqLen
	}
	if n == 0 {
		return nil, errors.New("empty token sequence")
	}
	ids := make([]int64, n)
	mask := make([]int64, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(en.Ids[i])
		mask[i] = 1
		if i < len(en.AttentionMask) {
			mask[i] = int64(en.AttentionMask[i])
		}
	}
	shape := ort.NewShape(1, int64(n))
	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("mask tensor: %w", err)
	}
	defer maskT.Destroy()
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(n), int64(e.cfg.Dim)))
	if err != nil {
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer out.Destroy()
	if err := e.session.Run([]ort.Value{idsT, maskT}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	vec, err := meanPool(out.GetData(), mask, e.cfg.Dim)
	if err != nil {
		return nil, err
	}
	l2Normalize(vec)
	return vec, nil
}

// meanPool averages the token rows of hidden whose mask entry is set.
// hidden is laid out as len(mask) rows of dim values.
func meanPool(hidden []float32, mask []int64, dim int) ([]float32, error) {
	if len(hidden) < len(mask)*dim {
		return nil, fmt.Errorf("unexpected output size %d", len(hidden))
	}
	vec := make([]float32, dim)
	var count float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dim : (t+1)*dim]
		for i, v := range row {
			vec[i] += v
		}
		count++
	}
	if count == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] /= count
	}
	return vec, nil
}

// Close releases the session and, with the last encoder, the ORT environment.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	_ = e.session.Destroy()
	e.session = nil
	releaseEnv()
}

func acquireEnv(lib string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnv() {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs == 0 {
		_ = ort.DestroyEnvironment()
	}
}

func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
