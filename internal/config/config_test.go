package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 384,
		},
		Index: IndexConfig{Type: "flat"},
		Scoring: ScoringConfig{
			Weights: WeightsConfig{Semantic: 0.5, Skills: 0.3, Experience: 0.1, Location: 0.1},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}
}

func TestValidate_MissingDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dimensions = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding dimensions")
	}
}

func TestValidate_InvalidIndexType(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Type = "hnsw"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid index type")
	}

	expected := `index.type must be "flat" or "ivf", got "hnsw"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_RecallFloorAboveOne(t *testing.T) {
	cfg := validConfig()
	cfg.Index.RecallFloor = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for recall floor above 1")
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Budget = BudgetConfig{
		DailyTokenLimit: 1000000,
		Action:          "invalid_action",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Budget.Action = action

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_NegativeWeights(t *testing.T) {
	cfg := validConfig()
	cfg.Scoring.Weights.Skills = -0.2

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Index.Type != "flat" {
		t.Errorf("expected index type=flat, got %q", cfg.Index.Type)
	}
	if cfg.Index.IVFLists != 64 {
		t.Errorf("expected IVFLists=64, got %d", cfg.Index.IVFLists)
	}
	if cfg.Index.IVFProbes != 8 {
		t.Errorf("expected IVFProbes=8, got %d", cfg.Index.IVFProbes)
	}
	if cfg.Index.RecallFloor != 0.95 {
		t.Errorf("expected RecallFloor=0.95, got %v", cfg.Index.RecallFloor)
	}
	if cfg.Index.Oversample != 4 {
		t.Errorf("expected Oversample=4, got %d", cfg.Index.Oversample)
	}
	if cfg.Index.DefaultTopK != 10 {
		t.Errorf("expected DefaultTopK=10, got %d", cfg.Index.DefaultTopK)
	}
	if cfg.Index.MaxTopK != 500 {
		t.Errorf("expected MaxTopK=500, got %d", cfg.Index.MaxTopK)
	}
	if cfg.Index.MaxBatchSize != 100 {
		t.Errorf("expected MaxBatchSize=100, got %d", cfg.Index.MaxBatchSize)
	}
	if cfg.Scoring.Weights.Semantic != 0.5 || cfg.Scoring.Weights.Skills != 0.3 {
		t.Errorf("default weights not applied: %+v", cfg.Scoring.Weights)
	}
	if cfg.Scoring.MaxExperienceDeficit != 5 {
		t.Errorf("expected MaxExperienceDeficit=5, got %f", cfg.Scoring.MaxExperienceDeficit)
	}
	if cfg.Cache.ResultTTLSec != 300 {
		t.Errorf("expected ResultTTLSec=300, got %d", cfg.Cache.ResultTTLSec)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected provider=openai, got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.MaxInputRunes != 8192 {
		t.Errorf("expected MaxInputRunes=8192, got %d", cfg.Embedding.MaxInputRunes)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Index:   IndexConfig{Type: "ivf", IVFLists: 256, IVFProbes: 16, RecallFloor: 0.99},
		Scoring: ScoringConfig{Weights: WeightsConfig{Semantic: 1}},
	}
	cfg.ApplyDefaults()

	if cfg.Index.Type != "ivf" || cfg.Index.IVFLists != 256 || cfg.Index.IVFProbes != 16 {
		t.Errorf("explicit index config overwritten: %+v", cfg.Index)
	}
	if cfg.Index.RecallFloor != 0.99 {
		t.Errorf("explicit recall floor overwritten: %v", cfg.Index.RecallFloor)
	}
	if cfg.Scoring.Weights.Semantic != 1 || cfg.Scoring.Weights.Skills != 0 {
		t.Errorf("explicit weights overwritten: %+v", cfg.Scoring.Weights)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MATCHDEX_TEST_KEY", "secret")

	out := expandEnvVars([]byte("api_key: ${MATCHDEX_TEST_KEY}"))
	if string(out) != "api_key: secret" {
		t.Errorf("got %q", out)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	t.Setenv("MATCHDEX_TEST_UNSET", "")

	out := expandEnvVars([]byte("addr: ${MATCHDEX_TEST_UNSET:-localhost:6379}"))
	if string(out) != "addr: localhost:6379" {
		t.Errorf("got %q", out)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if env := GetEnv(); env != "local" {
		t.Errorf("expected local, got %q", env)
	}

	t.Setenv("ENV", "prod")
	if env := GetEnv(); env != "prod" {
		t.Errorf("expected prod, got %q", env)
	}
}
