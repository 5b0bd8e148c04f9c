package matchdex

import (
	"context"

	"go.uber.org/zap"
)

// Embedder vectorizes text. Implement it to plug a custom encoder into the
// client instead of the built-in OpenAI-compatible one.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type clientConfig struct {
	driver     string
	addrs      []string
	password   string
	dimensions int

	openAIKey     string
	openAIBaseURL string
	model         string
	customEmb     Embedder

	indexType  string
	ivfLists   int
	ivfProbes  int
	oversample int

	cacheEnabled bool
	logger       *zap.Logger
}

// Option configures the client.
type Option interface {
	apply(*clientConfig)
}

type optionFunc func(*clientConfig)

func (f optionFunc) apply(cfg *clientConfig) { f(cfg) }

// WithValkey connects to a Valkey store.
func WithValkey(addrs ...string) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.driver = "valkey"
		cfg.addrs = addrs
	})
}

// WithRedis connects to a Redis store.
func WithRedis(addrs ...string) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.driver = "redis"
		cfg.addrs = addrs
	})
}

// WithPassword sets the store password.
func WithPassword(password string) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.password = password
	})
}

// WithOpenAI uses an OpenAI-compatible embedding API. baseURL may be empty
// for the default endpoint.
func WithOpenAI(apiKey, baseURL, model string, dimensions int) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.openAIKey = apiKey
		cfg.openAIBaseURL = baseURL
		cfg.model = model
		cfg.dimensions = dimensions
	})
}

// WithEmbedder plugs a custom encoder producing dimensions-sized vectors.
func WithEmbedder(e Embedder, dimensions int) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.customEmb = e
		cfg.dimensions = dimensions
	})
}

// WithIVF switches from the exact flat index to IVF approximate search.
func WithIVF(lists, probes int) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.indexType = "ivf"
		cfg.ivfLists = lists
		cfg.ivfProbes = probes
	})
}

// WithOversample sets how many index hits are retrieved per requested result.
func WithOversample(n int) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.oversample = n
	})
}

// WithResultCache enables the transparent ranked-result cache.
func WithResultCache() Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.cacheEnabled = true
	})
}

// WithLogger sets the zap logger; default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.logger = logger
	})
}
