package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseJWTSecret     string
	SupabaseStorageBucket string

	// Database
	DatabaseURL string

	// Gemini (prompt synthesis)
	GeminiAPIKey string
	GeminiModel  string

	// fal.ai (image generation)
	FalAPIKey  string
	FalBaseURL string
	FalModel   string

	// Stripe
	StripeSecretKey       string
	StripeWebhookSecret   string
	StripePriceBasic      string
	StripePricePro        string
	StripePriceElite      string
	StripePriceCreditPack string

	// Server
	Port        string
	Environment string
	BaseURL     string
}

func Load() (*Config, error) {
	// Local development convenience; a missing .env is not an error
	_ = godotenv.Load()

	cfg := &Config{
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:     getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "generated-images"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		FalAPIKey:  getEnv("FAL_API_KEY", ""),
		FalBaseURL: getEnv("FAL_BASE_URL", "https://queue.fal.run"),
		FalModel:   getEnv("FAL_MODEL", "fal-ai/flux-pro/kontext/max/multi"),

		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceBasic:      getEnv("STRIPE_PRICE_BASIC", ""),
		StripePricePro:        getEnv("STRIPE_PRICE_PRO", ""),
		StripePriceElite:      getEnv("STRIPE_PRICE_ELITE", ""),
		StripePriceCreditPack: getEnv("STRIPE_PRICE_CREDIT_PACK", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the options the server cannot run without. The AI and
// Stripe keys are deliberately optional: prompt synthesis falls back to a
// default prompt and the billing endpoints report themselves unconfigured.
func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
