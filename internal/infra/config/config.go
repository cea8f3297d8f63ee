package config

import (
	"os"
	"strconv"
	"strings"
)

// StrategySearch holds the env-tunable search parameters of one strategy.
type StrategySearch struct {
	ResultCount         int
	SimilarityThreshold float32
	TimeoutMs           int
}

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int

	InferenceURL     string
	InferenceModel   string
	InferenceTimeout int // seconds

	RefinerURL     string
	RerankModel    string
	RefinerTimeout int // seconds

	AnswerMaxTokens int

	Fast      StrategySearch
	Standard  StrategySearch
	Expanded  StrategySearch
	PageQuery StrategySearch

	SearchCacheSize int
	SearchRateLimit float64 // searches per second, 0 disables

	ChatHistoryTTLMinutes int

	OTelEnabled  bool
	OTelEndpoint string
}

// Load reads the configuration from the environment once at process start.
// The returned value is read-only afterwards.
func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "dataroom-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "dataroom_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "dataroom_password"),
		DBName:     getEnv("DB_NAME", "dataroom_db"),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),

		InferenceURL:     getEnv("INFERENCE_URL", "http://inference:11434"),
		InferenceModel:   getEnv("INFERENCE_MODEL", "gpt-oss20b"),
		InferenceTimeout: getEnvInt("INFERENCE_TIMEOUT", 120),

		RefinerURL:     getEnv("REFINER_URL", "http://refiner:8001"),
		RerankModel:    getEnv("RERANK_MODEL", "bge-reranker-v2-m3"),
		RefinerTimeout: getEnvInt("REFINER_TIMEOUT", 30),

		AnswerMaxTokens: getEnvInt("ANSWER_MAX_TOKENS", 1024),

		Fast: StrategySearch{
			ResultCount:         getEnvInt("FAST_RESULT_COUNT", 10),
			SimilarityThreshold: getEnvFloat32("FAST_SIMILARITY_THRESHOLD", 0.5),
			TimeoutMs:           getEnvInt("FAST_TIMEOUT_MS", 45000),
		},
		Standard: StrategySearch{
			ResultCount:         getEnvInt("STANDARD_RESULT_COUNT", 20),
			SimilarityThreshold: getEnvFloat32("STANDARD_SIMILARITY_THRESHOLD", 0.4),
			TimeoutMs:           getEnvInt("STANDARD_TIMEOUT_MS", 50000),
		},
		Expanded: StrategySearch{
			ResultCount:         getEnvInt("EXPANDED_RESULT_COUNT", 30),
			SimilarityThreshold: getEnvFloat32("EXPANDED_SIMILARITY_THRESHOLD", 0.3),
			TimeoutMs:           getEnvInt("EXPANDED_TIMEOUT_MS", 55000),
		},
		PageQuery: StrategySearch{
			ResultCount:         getEnvInt("PAGE_QUERY_RESULT_COUNT", 20),
			SimilarityThreshold: getEnvFloat32("PAGE_QUERY_SIMILARITY_THRESHOLD", 0.0),
			TimeoutMs:           getEnvInt("PAGE_QUERY_TIMEOUT_MS", 50000),
		},

		SearchCacheSize: getEnvInt("SEARCH_CACHE_SIZE", 256),
		SearchRateLimit: getEnvFloat("SEARCH_RATE_LIMIT", 0),

		ChatHistoryTTLMinutes: getEnvInt("CHAT_HISTORY_TTL_MINUTES", 60),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat32(key string, fallback float32) float32 {
	return float32(getEnvFloat(key, float64(fallback)))
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
