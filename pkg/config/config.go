package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Gemini        GeminiConfig
	Analysis      AnalysisConfig
}

type GeminiConfig struct {
	APIKey string
	Model  string

	// CallTimeout bounds a single model call; one retry is attempted on failure.
	CallTimeout time.Duration
	// RequestsPerSecond rate-limits outbound model calls across sessions.
	RequestsPerSecond float64
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	// Enabled selects Postgres persistence; when false the service runs on the
	// in-memory store (demo mode).
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// AnalysisConfig exposes every tunable threshold of the analysis pipeline.
// Defaults are documented where they are not obvious.
type AnalysisConfig struct {
	// Categorizer
	AIBatchSize int // max descriptions per model call

	// Anomaly detection
	MinCategorySamples int     // categories with fewer transactions are skipped
	ZScoreLow          float64 // |z| >= low -> severity low
	ZScoreMedium       float64
	ZScoreHigh         float64
	ZScoreCap          float64 // |z| is clamped here to keep explanations sane
	ZeroStddevRatio    float64 // with zero variance, flag when actual > ratio * mean
	MaxAnalysisAmount  float64 // amounts above this are excluded from baselines
	NewMerchantMinimum float64 // first-seen merchant floor for merchant anomalies

	// Recurring charge detection
	GapCVTolerance     float64 // reject clusters whose gap coefficient of variation exceeds this
	GrayChargeMax      float64 // gray charge when |avg amount| is below this (default $10)
	ClusterFuzzScore   int     // 0-100 similarity needed to merge near-identical cluster keys
	MinClusterSize     int     // clusters below this never recur

	// Insights
	MaxInsights           int
	DeltaInsightThreshold float64 // percent change that fires a spending-trend insight

	// Goal forecasting
	DiscretionaryCutRatio float64 // share of a non-essential category assumed cuttable
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "localhost"),
			Port:    getEnvAsInt("SERVER_PORT", 8080),
			BaseURL: getEnv("BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("POSTGRES_ENABLED", false),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "spending-coach-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Gemini: GeminiConfig{
			APIKey:            getEnv("GEMINI_API_KEY", ""),
			Model:             getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			CallTimeout:       getEnvAsDuration("GEMINI_CALL_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvAsFloat("GEMINI_REQUESTS_PER_SECOND", 2),
		},
		Analysis: DefaultAnalysisConfig(),
	}

	cfg.Analysis.GrayChargeMax = getEnvAsFloat("ANALYSIS_GRAY_CHARGE_MAX", cfg.Analysis.GrayChargeMax)
	cfg.Analysis.GapCVTolerance = getEnvAsFloat("ANALYSIS_GAP_CV_TOLERANCE", cfg.Analysis.GapCVTolerance)
	cfg.Analysis.MinCategorySamples = getEnvAsInt("ANALYSIS_MIN_CATEGORY_SAMPLES", cfg.Analysis.MinCategorySamples)
	cfg.Analysis.AIBatchSize = getEnvAsInt("ANALYSIS_AI_BATCH_SIZE", cfg.Analysis.AIBatchSize)
	cfg.Analysis.MaxInsights = getEnvAsInt("ANALYSIS_MAX_INSIGHTS", cfg.Analysis.MaxInsights)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, errors.New("SERVER_PORT is out of range")
	}

	return cfg, nil
}

// DefaultAnalysisConfig returns the documented default thresholds.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		AIBatchSize: 25,

		MinCategorySamples: 5,
		ZScoreLow:          1.5,
		ZScoreMedium:       2.0,
		ZScoreHigh:         3.0,
		ZScoreCap:          10.0,
		ZeroStddevRatio:    3.0,
		MaxAnalysisAmount:  50000,
		NewMerchantMinimum: 100,

		GapCVTolerance:   0.3,
		GrayChargeMax:    10.0,
		ClusterFuzzScore: 90,
		MinClusterSize:   2,

		MaxInsights:           6,
		DeltaInsightThreshold: 30,

		DiscretionaryCutRatio: 0.8,
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
