// Package main provides the scheduled Lambda entry point for the alt
// text writer. EventBridge Scheduler invokes it once per night; each
// invocation performs one full run over the storefront's images.
//
// Container: provided.al2023 (single static binary)
// Memory: 256 MB
// Timeout: 15 minutes
package main

import (
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/beansie/alt-text-writer/internal/config"
	"github.com/beansie/alt-text-writer/internal/lambdaboot"
	"github.com/beansie/alt-text-writer/internal/logging"
	"github.com/beansie/alt-text-writer/internal/notify"
	"github.com/beansie/alt-text-writer/internal/report"
)

var coldStart = true

// Initialized at cold start.
var (
	cfg      *config.Config
	sink     report.Sink
	notifier *notify.EventBridgeNotifier
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	lambdaboot.LoadShopifyToken(aws.SSM)
	lambdaboot.LoadGeminiKey(aws.SSM)

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration incomplete")
	}

	if cfg.ReportBucket != "" {
		sink = report.NewS3Sink(s3.NewFromConfig(aws.Config), cfg.ReportBucket)
	} else {
		log.Warn().Str("dir", cfg.ReportDir).Msg("REPORT_BUCKET not set — reports stay on the Lambda's ephemeral disk")
		sink = report.FileSink{Dir: cfg.ReportDir}
	}

	if cfg.EventBusName != "" {
		notifier = notify.New(eventbridge.NewFromConfig(aws.Config), cfg.EventBusName)
	}

	startup := lambdaboot.StartupLog("alt-text-lambda", initStart).
		SSMParam("shopifyAccessToken", logging.EnvOrDefault("SSM_SHOPIFY_TOKEN_PARAM", "/beans/alt-text/prod/shopify-access-token")).
		SSMParam("geminiApiKey", logging.EnvOrDefault("SSM_GEMINI_KEY_PARAM", "/beans/alt-text/prod/gemini-api-key")).
		Config("store", cfg.StoreDomain).
		Config("model", cfg.Model)
	if cfg.ReportBucket != "" {
		startup = startup.S3Bucket("reports", cfg.ReportBucket)
	}
	if cfg.EventBusName != "" {
		startup = startup.EventBus(cfg.EventBusName)
	}
	startup.Log()
}

func main() {
	lambda.Start(handler)
}
