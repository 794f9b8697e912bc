// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// The scheduled Lambda needs AWS config, SSM secret resolution, and
// startup logging before a run can start. This package extracts those
// init patterns so the entry point's init() is a short composition of
// helpers.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/beansie/alt-text-writer/internal/logging"
)

// AWSClients holds the core AWS SDK clients used by the Lambda entry point.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common
// clients. Fatals on error; without AWS access the Lambda cannot work.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// LoadGeminiKey fetches the Gemini API key from SSM Parameter Store if
// not already set via the GEMINI_API_KEY env var. Fatals on error.
func LoadGeminiKey(ssmClient *ssm.Client) {
	loadSecret(ssmClient, "GEMINI_API_KEY", "SSM_GEMINI_KEY_PARAM", "/beans/alt-text/prod/gemini-api-key")
}

// LoadShopifyToken fetches the Shopify Admin API access token from SSM
// Parameter Store if not already set via the SHOPIFY_ACCESS_TOKEN env
// var. Fatals on error.
func LoadShopifyToken(ssmClient *ssm.Client) {
	loadSecret(ssmClient, "SHOPIFY_ACCESS_TOKEN", "SSM_SHOPIFY_TOKEN_PARAM", "/beans/alt-text/prod/shopify-access-token")
}

// loadSecret resolves one secret env-first, then from the SSM parameter
// named by paramEnvVar, defaulting to defaultParam. The value lands back
// in envVar so config.Load picks it up like any other setting.
func loadSecret(ssmClient *ssm.Client, envVar, paramEnvVar, defaultParam string) {
	if os.Getenv(envVar) != "" {
		return
	}
	paramName := logging.EnvOrDefault(paramEnvVar, defaultParam)

	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read secret from SSM")
	}
	os.Setenv(envVar, *result.Parameter.Value)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Secret loaded from SSM")
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
