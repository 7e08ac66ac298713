package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// LLM provider selection: "auto", "bedrock" or "gemini".
	LLMProvider             string
	BedrockModelID          string
	BedrockEvaluatorModelID string
	GeminiAPIKey            string
	GeminiModel             string
	LLMRetryAttempts        int
	LLMRetryBaseDelay       time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Metrics engine strategy: "recompute" or "incremental".
	MetricsMode     string
	MetricsStateTTL time.Duration

	// Orchestration loop
	MaxAttempts          int
	ExhaustionPolicy     string
	ClassifierTimeout    time.Duration
	SemanticCheckTimeout time.Duration

	// HTTP
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		LLMProvider:             strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "auto"))),
		BedrockModelID:          getEnv("BEDROCK_MODEL_ID", ""),
		BedrockEvaluatorModelID: getEnv("BEDROCK_EVALUATOR_MODEL_ID", ""),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		LLMRetryAttempts:        getEnvAsInt("LLM_RETRY_ATTEMPTS", 2),
		LLMRetryBaseDelay:       getEnvAsDuration("LLM_RETRY_BASE_DELAY", 300*time.Millisecond),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		MetricsMode:     strings.ToLower(strings.TrimSpace(getEnv("METRICS_MODE", "recompute"))),
		MetricsStateTTL: getEnvAsDuration("METRICS_STATE_TTL", 24*time.Hour),

		MaxAttempts:          getEnvAsInt("MAX_ATTEMPTS", 3),
		ExhaustionPolicy:     strings.ToLower(strings.TrimSpace(getEnv("EXHAUSTION_POLICY", "return_last"))),
		ClassifierTimeout:    getEnvAsDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		SemanticCheckTimeout: getEnvAsDuration("SEMANTIC_CHECK_TIMEOUT", 10*time.Second),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// EvaluatorModelID returns the model used for classification, semantic checks
// and summaries, falling back to the generation model.
func (c *Config) EvaluatorModelID() string {
	if strings.TrimSpace(c.BedrockEvaluatorModelID) != "" {
		return c.BedrockEvaluatorModelID
	}
	return c.BedrockModelID
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
