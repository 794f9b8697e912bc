// Package config loads runtime configuration for the alt text writer from
// the environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultModel is the vision model used when GEMINI_MODEL is unset.
const DefaultModel = "gemini-3-flash-preview"

// DefaultBusinessContext describes the storefront for the generation prompt
// when BUSINESS_CONTEXT is unset.
const DefaultBusinessContext = "Beans.ie is an Irish online store selling specialty coffee beans, brewing equipment and accessories for home baristas."

// Config holds everything a run needs. It is constructed once at startup;
// nothing else reads the environment after Load returns.
type Config struct {
	// StoreDomain is the myshopify domain, e.g. "beans-ie.myshopify.com".
	StoreDomain string
	// AccessToken is the Admin API access token for the store.
	AccessToken string
	// GeminiAPIKey authenticates the vision model calls.
	GeminiAPIKey string

	// Model is the Gemini model identifier.
	Model string
	// BusinessContext is prepended to generation prompts so descriptions
	// stay on brand.
	BusinessContext string

	// ReportDir is where the local report sink writes JSON files.
	ReportDir string
	// ReportBucket enables the S3 report sink when non-empty.
	ReportBucket string
	// EventBusName enables run-completion events when non-empty.
	EventBusName string

	// DryRun disables all write-backs. Set from the CLI flag or the
	// schedule event, never from the environment.
	DryRun bool
}

// Load reads a .env file if one exists, then the environment, and returns
// an error naming the first missing required variable.
func Load() (*Config, error) {
	// Missing .env is fine; deployed environments set real env vars.
	_ = godotenv.Load()

	cfg := &Config{
		StoreDomain:     os.Getenv("SHOPIFY_STORE_DOMAIN"),
		AccessToken:     os.Getenv("SHOPIFY_ACCESS_TOKEN"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		Model:           getEnv("GEMINI_MODEL", DefaultModel),
		BusinessContext: getEnv("BUSINESS_CONTEXT", DefaultBusinessContext),
		ReportDir:       getEnv("REPORT_DIR", "."),
		ReportBucket:    os.Getenv("REPORT_BUCKET"),
		EventBusName:    os.Getenv("EVENT_BUS_NAME"),
	}

	for _, req := range []struct {
		name, value string
	}{
		{"SHOPIFY_STORE_DOMAIN", cfg.StoreDomain},
		{"SHOPIFY_ACCESS_TOKEN", cfg.AccessToken},
		{"GEMINI_API_KEY", cfg.GeminiAPIKey},
	} {
		if req.value == "" {
			return nil, fmt.Errorf("missing required environment variable %s", req.name)
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
