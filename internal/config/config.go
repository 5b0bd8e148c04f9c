package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talentcloud/matchdex/internal/domain"
)

// Config holds the matchdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds vector index and query settings.
type IndexConfig struct {
	Type         string  `yaml:"type"` // flat, ivf (default: flat)
	IVFLists     int     `yaml:"ivf_lists"`
	IVFProbes    int     `yaml:"ivf_probes"`
	RecallFloor  float64 `yaml:"recall_floor"` // ivf: minimum sampled recall@k after a rebuild
	Oversample   int     `yaml:"oversample"`
	DefaultTopK  int     `yaml:"default_top_k"`
	MaxTopK      int     `yaml:"max_top_k"`
	MaxBatchSize int     `yaml:"max_batch_size"`
}

// ScoringConfig holds the default weights and the structured scoring policy.
type ScoringConfig struct {
	Weights              WeightsConfig     `yaml:"weights"`
	MaxExperienceDeficit float64           `yaml:"max_experience_deficit_years"`
	LocationPartial      float64           `yaml:"location_partial"`
	LocationNeutral      float64           `yaml:"location_neutral"`
	Regions              map[string]string `yaml:"regions"`
}

// WeightsConfig holds the default criterion weights.
type WeightsConfig struct {
	Semantic   float64 `yaml:"semantic"`
	Skills     float64 `yaml:"skills"`
	Experience float64 `yaml:"experience"`
	Location   float64 `yaml:"location"`
}

// IsZero reports whether no weight was configured.
func (w WeightsConfig) IsZero() bool {
	return w.Semantic == 0 && w.Skills == 0 && w.Experience == 0 && w.Location == 0
}

// ToDomain converts the configured weights.
func (w WeightsConfig) ToDomain() domain.ScoringWeights {
	return domain.ScoringWeights{
		Semantic:   w.Semantic,
		Skills:     w.Skills,
		Experience: w.Experience,
		Location:   w.Location,
	}
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled      bool `yaml:"enabled"`
	ResultTTLSec int  `yaml:"result_ttl_sec"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider      string       `yaml:"provider"` // label for logs and metrics
	APIKey        string       `yaml:"api_key"`
	BaseURL       string       `yaml:"base_url"`
	Model         string       `yaml:"model"`
	Dimensions    int          `yaml:"dimensions"`
	MaxInputRunes int          `yaml:"max_input_runes"`
	CacheTTLSec   int          `yaml:"cache_ttl_sec"` // 0 = embedding cache off
	Budget        BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Type == "" {
		c.Index.Type = "flat"
	}
	if c.Index.IVFLists <= 0 {
		c.Index.IVFLists = 64
	}
	if c.Index.IVFProbes <= 0 {
		c.Index.IVFProbes = 8
	}
	if c.Index.RecallFloor <= 0 {
		c.Index.RecallFloor = 0.95
	}
	if c.Index.Oversample <= 0 {
		c.Index.Oversample = 4
	}
	if c.Index.DefaultTopK <= 0 {
		c.Index.DefaultTopK = 10
	}
	if c.Index.MaxTopK <= 0 {
		c.Index.MaxTopK = 500
	}
	if c.Index.MaxBatchSize <= 0 {
		c.Index.MaxBatchSize = 100
	}
	if c.Scoring.Weights.IsZero() {
		w := domain.DefaultScoringWeights()
		c.Scoring.Weights = WeightsConfig{
			Semantic:   w.Semantic,
			Skills:     w.Skills,
			Experience: w.Experience,
			Location:   w.Location,
		}
	}
	if c.Scoring.MaxExperienceDeficit <= 0 {
		c.Scoring.MaxExperienceDeficit = 5
	}
	if c.Scoring.LocationPartial == 0 {
		c.Scoring.LocationPartial = 0.5
	}
	if c.Scoring.LocationNeutral == 0 {
		c.Scoring.LocationNeutral = 0.5
	}
	if c.Cache.ResultTTLSec <= 0 {
		c.Cache.ResultTTLSec = 300
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.MaxInputRunes <= 0 {
		c.Embedding.MaxInputRunes = 8192
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions is required")
	}
	switch c.Index.Type {
	case "flat", "ivf":
		// ok
	default:
		return fmt.Errorf("index.type must be \"flat\" or \"ivf\", got %q", c.Index.Type)
	}
	if c.Index.RecallFloor > 1 {
		return fmt.Errorf("index.recall_floor must be in (0, 1], got %v", c.Index.RecallFloor)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	if err := c.Scoring.Weights.ToDomain().Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
