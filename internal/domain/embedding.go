package domain

import (
	"context"
	"fmt"
	"strings"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// Implementations must preserve input order and never merge distinct inputs.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the
// decorator chain. LowConfidence marks the blank-input sentinel vector.
type EmbeddingResult struct {
	Embedding     []float32
	PromptTokens  int
	TotalTokens   int
	LowConfidence bool
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback calls Embed once per text. Safety net for providers without
// native batch support.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// TruncatingEmbedder is a domain decorator that truncates over-long input
// head-first to a fixed rune budget before embedding. Truncation is
// deterministic so the same text always yields the same vector.
type TruncatingEmbedder struct {
	inner    Embedder
	maxRunes int
}

// NewTruncatingEmbedder creates a decorator that caps input length at maxRunes.
func NewTruncatingEmbedder(inner Embedder, maxRunes int) *TruncatingEmbedder {
	return &TruncatingEmbedder{inner: inner, maxRunes: maxRunes}
}

// Embed truncates text and delegates to the inner embedder.
func (e *TruncatingEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.truncate(text))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("truncating embed: %w", err)
	}
	return result, nil
}

// BatchEmbed truncates each text and delegates to the inner BatchEmbedder,
// falling back to per-text Embed if the inner embedder has no batch support.
func (e *TruncatingEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = e.truncate(t)
	}

	if be, ok := e.inner.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, truncated)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("truncating batch embed: %w", err)
		}
		return res, nil
	}

	res, err := BatchFallback(ctx, e.inner, truncated)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("truncating batch embed fallback: %w", err)
	}
	return res, nil
}

func (e *TruncatingEmbedder) truncate(text string) string {
	if e.maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= e.maxRunes {
		return text
	}
	return string(runes[:e.maxRunes])
}

// SentinelEmbedder is a domain decorator that short-circuits blank input to
// the zero-information sentinel vector instead of calling the encoder. The
// result is flagged LowConfidence so callers can surface it.
type SentinelEmbedder struct {
	inner Embedder
	dim   int
}

// NewSentinelEmbedder creates a decorator that guards against blank input.
func NewSentinelEmbedder(inner Embedder, dim int) *SentinelEmbedder {
	return &SentinelEmbedder{inner: inner, dim: dim}
}

// Embed returns the sentinel for whitespace-only text, otherwise delegates.
func (e *SentinelEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return EmbeddingResult{Embedding: ZeroVector(e.dim), LowConfidence: true}, nil
	}
	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("sentinel embed: %w", err)
	}
	return result, nil
}

// BatchEmbed applies the blank-input guard per text, batching only the texts
// that actually need the encoder. Output order matches input order.
func (e *SentinelEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	var needIdx []int
	var needTexts []string

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			embeddings[i] = ZeroVector(e.dim)
			continue
		}
		needIdx = append(needIdx, i)
		needTexts = append(needTexts, t)
	}

	if len(needTexts) == 0 {
		return BatchEmbeddingResult{Embeddings: embeddings}, nil
	}

	var res BatchEmbeddingResult
	var err error
	if be, ok := e.inner.(BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, needTexts)
	} else {
		res, err = BatchFallback(ctx, e.inner, needTexts)
	}
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("sentinel batch embed: %w", err)
	}
	if len(res.Embeddings) != len(needTexts) {
		return BatchEmbeddingResult{}, fmt.Errorf("sentinel batch embed: got %d vectors for %d texts", len(res.Embeddings), len(needTexts))
	}

	for j, i := range needIdx {
		embeddings[i] = res.Embeddings[j]
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}
