package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string
	JWTSecret   string
	Port        string
	Environment string

	// Security configuration
	AllowedOrigins  string
	TrustedProxies  string
	EnableRateLimit bool
	MaxRequestSize  int64

	Analyzer AnalyzerConfig
	Graph    GraphConfig
	Pipeline PipelineConfig
}

// AnalyzerConfig configures the LLM pillar analyzer and its response cache.
type AnalyzerConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RedisURL   string
	CacheTTL   time.Duration
}

// GraphConfig configures the optional Neo4j centrality source.
type GraphConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// PipelineConfig configures scheduled batch scoring.
type PipelineConfig struct {
	BatchSize            int
	MaxConcurrent        int
	Schedule             string
	RescoreOlderThanDays int
}

// New creates a new configuration instance from environment variables
func New() *Config {
	return &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENV", "development"),
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", ""),
		TrustedProxies:  getEnv("TRUSTED_PROXIES", ""),
		EnableRateLimit: getEnv("ENABLE_RATE_LIMIT", "true") == "true",
		MaxRequestSize:  getEnvAsInt64("MAX_REQUEST_SIZE", 1024*1024),
		Analyzer: AnalyzerConfig{
			BaseURL:    strings.TrimRight(getEnv("ANALYZER_BASE_URL", "https://api.openai.com"), "/"),
			APIKey:     getEnv("ANALYZER_API_KEY", ""),
			Model:      getEnv("ANALYZER_MODEL", "gpt-4o-mini"),
			Timeout:    time.Duration(getEnvAsInt("ANALYZER_TIMEOUT_SECONDS", 45)) * time.Second,
			MaxRetries: getEnvAsInt("ANALYZER_MAX_RETRIES", 2),
			RedisURL:   getEnv("REDIS_URL", ""),
			CacheTTL:   time.Duration(getEnvAsInt("ANALYZER_CACHE_TTL_MINUTES", 24*60)) * time.Minute,
		},
		Graph: GraphConfig{
			URI:      getEnv("NEO4J_URI", ""),
			User:     getEnv("NEO4J_USER", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", ""),
			Database: getEnv("NEO4J_DATABASE", "neo4j"),
		},
		Pipeline: PipelineConfig{
			BatchSize:            getEnvAsInt("PIPELINE_BATCH_SIZE", 50),
			MaxConcurrent:        getEnvAsInt("PIPELINE_MAX_CONCURRENT", 4),
			Schedule:             getEnv("PIPELINE_SCHEDULE", "@every 60m"),
			RescoreOlderThanDays: getEnvAsInt("PIPELINE_RESCORE_OLDER_THAN_DAYS", 30),
		},
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasAnalyzer reports whether LLM credentials are configured. Without them
// every pass scores on hard signals only.
func (c *Config) HasAnalyzer() bool {
	return c.Analyzer.APIKey != ""
}

// HasGraph reports whether a Neo4j centrality source is configured.
func (c *Config) HasGraph() bool {
	return c.Graph.URI != ""
}

// GetAllowedOrigins returns a slice of allowed CORS origins
func (c *Config) GetAllowedOrigins() []string {
	if c.AllowedOrigins == "" {
		return []string{}
	}
	origins := strings.Split(c.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

// GetTrustedProxies returns a slice of trusted proxy IPs
func (c *Config) GetTrustedProxies() []string {
	if c.TrustedProxies == "" {
		return nil
	}
	return strings.Split(c.TrustedProxies, ",")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
