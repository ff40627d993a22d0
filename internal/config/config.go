package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds server configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// External verification service (initiate-chat, resend-otp, verify-otp)
	VerificationBaseURL    string
	VerificationTimeout    time.Duration
	UseVerificationService bool

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	SessionTokenSecret string

	CORSAllowedOrigins []string
	// Origins allowed to relay host messages into a frame session. Empty accepts all.
	AllowedHostOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int

	// JSON object applied between built-in widget defaults and URL parameters.
	WidgetDefaultsJSON string
	ReplyRulesPath     string
	WidgetJSPath       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		VerificationBaseURL:    getEnv("VERIFICATION_BASE_URL", "https://omnitrix.servicesmanagement.us"),
		VerificationTimeout:    getEnvAsDuration("VERIFICATION_TIMEOUT", 15*time.Second),
		UseVerificationService: getEnvAsBool("USE_VERIFICATION_SERVICE", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 2*time.Hour),

		SessionTokenSecret: getEnv("SESSION_TOKEN_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AllowedHostOrigins: getEnvAsList("ALLOWED_HOST_ORIGINS", nil),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),

		WidgetDefaultsJSON: getEnv("WIDGET_DEFAULTS_JSON", ""),
		ReplyRulesPath:     getEnv("REPLY_RULES_PATH", ""),
		WidgetJSPath:       getEnv("WIDGET_JS_PATH", ""),
	}
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

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
