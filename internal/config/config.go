package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MNEMO_ENV (or .env by default), then
// loads the corresponding .secret sidecar if it exists. All config is flat env
// vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MNEMO_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// StorageBackend returns the configured storage backend.
// Defaults to "sqlite" if not set. Valid values: sqlite, postgres.
func StorageBackend() string {
	b := os.Getenv("STORAGE_BACKEND")
	if b == "" {
		return "sqlite"
	}
	return b
}

// SQLitePath returns the path of the embedded database file.
func SQLitePath() string {
	p := os.Getenv("SQLITE_PATH")
	if p == "" {
		return "mnemo.db"
	}
	return p
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// LLMProvider returns the configured LLM provider.
// Defaults to "openai" if not set.
// Valid values: openai, anthropic, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// LLMProfileBinding returns the provider bound to an activity profile
// (e.g. LLM_PROFILE_RECALL=anthropic). Empty means use the default provider.
func LLMProfileBinding(profile string) string {
	return os.Getenv("LLM_PROFILE_" + envKey(profile))
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set. Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingCacheSize returns the LRU cache capacity for embeddings.
// Defaults to 2048; 0 disables the cache.
func EmbeddingCacheSize() int {
	size, err := strconv.Atoi(os.Getenv("EMBEDDING_CACHE_SIZE"))
	if err != nil || size < 0 {
		return 2048
	}
	return size
}

// RerankerProvider returns the configured reranker.
// Empty (the default) disables reranking. Valid values: cross_encoder, hyde, rrf.
func RerankerProvider() string {
	return os.Getenv("RERANKER_PROVIDER")
}

// RerankerEndpoint returns the cross-encoder scoring endpoint.
func RerankerEndpoint() string {
	return os.Getenv("RERANKER_ENDPOINT")
}

// SchedulerDisabled reports whether background task execution is turned off.
// With the scheduler disabled, pipeline steps run inline.
func SchedulerDisabled() bool {
	v, _ := strconv.ParseBool(os.Getenv("SCHEDULER_DISABLED"))
	return v
}

// DecayRate returns the per-day importance decay multiplier.
// Defaults to 0.95 if not set or out of (0, 1].
func DecayRate() float64 {
	r, err := strconv.ParseFloat(os.Getenv("DECAY_RATE"), 64)
	if err != nil || r <= 0 || r > 1 {
		return 0.95
	}
	return r
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// APIKey returns the static bearer token required on /v1 routes.
// Empty (the default) disables the check.
func APIKey() string {
	return os.Getenv("MNEMO_API_KEY")
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func envKey(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
