package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names shared by the LLM and embedding settings.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderVoyage    = "voyage"
	ProviderNone      = "none"
)

// Classifier backends.
const (
	ClassifierLLM  = "llm"
	ClassifierHTTP = "http"
)

// Memory backends.
const (
	MemoryChromem   = "chromem"
	MemorySurrealDB = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Port int

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Language models
	LLMProvider     string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string
	JudgeModel      string
	PersonaModel    string
	PersonaName     string
	AgentsFile      string

	// Embeddings
	EmbedProvider     string
	EmbedModel        string
	EmbedDimension    int
	VoyageAPIKey      string
	EmbedCacheEntries int

	// Sentiment and emotion classification
	ClassifierProvider string
	ClassifierModel    string
	SentimentURL       string
	EmotionURL         string
	HFAPIToken         string

	// Memory store
	MemoryBackend     string
	MemoryPath        string
	MemoryTopK        int
	MemoryMaxDistance float64

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Per-stage deadlines
	SpecialistTimeout time.Duration
	JudgeTimeout      time.Duration
	PersonaTimeout    time.Duration
	ClassifyTimeout   time.Duration
	EmbedTimeout      time.Duration
	MemoryTimeout     time.Duration
}

// Load reads configuration from environment variables.
// Callers that want .env support load it with godotenv first.
func Load() (Config, error) {
	cfg := Config{
		Port: getEnvInt("CHORUS_PORT", 8484),

		LogFile:  getEnv("CHORUS_LOG_FILE", "/tmp/chorus.log"),
		LogLevel: parseLogLevel(getEnv("CHORUS_LOG_LEVEL", "INFO")),

		LLMProvider:     getEnv("LLM_PROVIDER", ProviderOllama),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		JudgeModel:      getEnv("CHORUS_JUDGE_MODEL", "llama3.1:8b"),
		PersonaModel:    getEnv("CHORUS_PERSONA_MODEL", "llama3.1:8b"),
		PersonaName:     getEnv("CHORUS_PERSONA_NAME", "Ms. Jarvis"),
		AgentsFile:      getEnv("CHORUS_AGENTS_FILE", ""),

		EmbedProvider:     getEnv("EMBED_PROVIDER", ProviderOllama),
		EmbedModel:        getEnv("EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension:    getEnvInt("EMBED_DIMENSION", 384),
		VoyageAPIKey:      getEnv("VOYAGE_API_KEY", ""),
		EmbedCacheEntries: getEnvInt("EMBED_CACHE_ENTRIES", 10000),

		ClassifierProvider: getEnv("CLASSIFIER_PROVIDER", ClassifierLLM),
		ClassifierModel:    getEnv("CLASSIFIER_MODEL", "phi3:mini"),
		SentimentURL:       getEnv("SENTIMENT_URL", ""),
		EmotionURL:         getEnv("EMOTION_URL", ""),
		HFAPIToken:         getEnv("HF_API_TOKEN", ""),

		MemoryBackend:     getEnv("MEMORY_BACKEND", MemoryChromem),
		MemoryPath:        getEnv("MEMORY_PATH", ""),
		MemoryTopK:        getEnvInt("MEMORY_TOP_K", 5),
		MemoryMaxDistance: getEnvFloat("MEMORY_MAX_DISTANCE", 0.65),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "chorus"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "memory"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		SpecialistTimeout: getEnvDuration("SPECIALIST_TIMEOUT", 60*time.Second),
		JudgeTimeout:      getEnvDuration("JUDGE_TIMEOUT", 60*time.Second),
		PersonaTimeout:    getEnvDuration("PERSONA_TIMEOUT", 45*time.Second),
		ClassifyTimeout:   getEnvDuration("CLASSIFY_TIMEOUT", 10*time.Second),
		EmbedTimeout:      getEnvDuration("EMBED_TIMEOUT", 10*time.Second),
		MemoryTimeout:     getEnvDuration("MEMORY_TIMEOUT", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks provider names and the settings each provider requires.
func (c Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderOllama, ProviderBedrock:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLMProvider))
	}

	switch c.EmbedProvider {
	case ProviderOllama, ProviderNone:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for openai embeddings"))
		}
	case ProviderVoyage:
		if c.VoyageAPIKey == "" {
			errs = append(errs, errors.New("VOYAGE_API_KEY is required for voyage embeddings"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported EMBED_PROVIDER: %s", c.EmbedProvider))
	}
	if c.EmbedProvider != ProviderNone && c.EmbedDimension <= 0 {
		errs = append(errs, errors.New("EMBED_DIMENSION must be positive"))
	}

	switch c.ClassifierProvider {
	case ClassifierLLM, ProviderNone:
	case ClassifierHTTP:
		if c.SentimentURL == "" && c.EmotionURL == "" {
			errs = append(errs, errors.New("SENTIMENT_URL or EMOTION_URL is required for the http classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported CLASSIFIER_PROVIDER: %s", c.ClassifierProvider))
	}

	switch c.MemoryBackend {
	case MemoryChromem, MemorySurrealDB, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported MEMORY_BACKEND: %s", c.MemoryBackend))
	}
	if c.MemoryTopK <= 0 {
		errs = append(errs, errors.New("MEMORY_TOP_K must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		slog.Warn("invalid number in environment, using default", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val)
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
