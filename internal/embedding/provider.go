// Package embedding turns text into fixed-dimension vectors through a
// configurable backend: an OpenAI-compatible cloud API, a local Ollama
// server, or an in-process ONNX model.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"policychat/internal/config"
)

// maxBatchSize caps how many inputs go to a backend in one call.
const maxBatchSize = 2048

// emptyPlaceholder stands in for blank inputs, which several backends
// reject outright.
const emptyPlaceholder = "empty"

// Provider embeds a slice of texts, returning one vector per input in the
// same order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// Error normalizes every backend failure (connectivity, quota, malformed
// response, model unavailable) into one kind carrying the original cause.
type Error struct {
	Provider string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding failed (provider %s): %v", e.Provider, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func wrapErr(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: provider, Cause: err}
}

// batchEmbedder is the raw per-batch contract a backend implements; the
// exported Provider the factory hands out wraps it with batching,
// placeholder substitution, and validation.
type batchEmbedder interface {
	embedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

type validatingProvider struct {
	inner      batchEmbedder
	batchSize  int
	dimensions int
}

func newValidatingProvider(inner batchEmbedder, batchSize, dimensions int) Provider {
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	return &validatingProvider{inner: inner, batchSize: batchSize, dimensions: dimensions}
}

func (p *validatingProvider) Name() string { return p.inner.Name() }

func (p *validatingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		if s := strings.TrimSpace(t); s != "" {
			prepared[i] = s
		} else {
			prepared[i] = emptyPlaceholder
		}
	}

	out := make([][]float32, len(prepared))
	for start := 0; start < len(prepared); start += p.batchSize {
		end := start + p.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		batch := prepared[start:end]

		vectors, err := p.inner.embedBatch(ctx, batch)
		if err != nil {
			return nil, wrapErr(p.Name(), err)
		}
		if len(vectors) != len(batch) {
			return nil, wrapErr(p.Name(),
				fmt.Errorf("backend returned %d vectors for %d inputs", len(vectors), len(batch)))
		}
		for i, vec := range vectors {
			if err := validateVector(vec, p.dimensions); err != nil {
				return nil, wrapErr(p.Name(), err)
			}
			out[start+i] = vec
		}
	}
	return out, nil
}

func validateVector(vec []float32, dimensions int) error {
	if len(vec) == 0 {
		return fmt.Errorf("backend returned an empty vector")
	}
	if dimensions > 0 && len(vec) != dimensions {
		return fmt.Errorf("vector has %d dimensions, expected %d", len(vec), dimensions)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("vector component %d is not finite", i)
		}
	}
	return nil
}

// Factory builds and caches the configured Provider. Construction is
// expensive for the local backend (shared library, model weights), so the
// instance is reused until the embedding configuration changes.
type Factory struct {
	mu     sync.Mutex
	cached Provider
	key    string
}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Get(cfg config.EmbeddingConfig) (Provider, error) {
	key := configKey(cfg)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached != nil && f.key == key {
		return f.cached, nil
	}

	p, err := build(cfg)
	if err != nil {
		return nil, err
	}
	f.cached = p
	f.key = key
	return p, nil
}

func build(cfg config.EmbeddingConfig) (Provider, error) {
	var inner batchEmbedder
	switch cfg.Provider {
	case "openai":
		inner = newHTTPBackend("openai", cfg)
	case "ollama":
		inner = newHTTPBackend("ollama", cfg)
	case "local":
		inner = newONNXBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	return newValidatingProvider(inner, cfg.BatchSize, cfg.Dimensions), nil
}

func configKey(cfg config.EmbeddingConfig) string {
	return strings.Join([]string{
		cfg.Provider, cfg.BaseURL, cfg.Model, cfg.ModelPath, cfg.VocabPath,
		fmt.Sprint(cfg.Dimensions), fmt.Sprint(cfg.MaxSeqLen),
	}, "|")
}
