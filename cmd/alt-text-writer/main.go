package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/beansie/alt-text-writer/internal/cli"
	"github.com/beansie/alt-text-writer/internal/config"
	"github.com/beansie/alt-text-writer/internal/describer"
	"github.com/beansie/alt-text-writer/internal/logging"
	"github.com/beansie/alt-text-writer/internal/report"
	"github.com/beansie/alt-text-writer/internal/runner"
	"github.com/beansie/alt-text-writer/internal/shopify"
)

// CLI flags
var dryRunFlag bool

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "alt-text-writer",
	Short: "AI-generated SEO alt text for Beans.ie storefront images",
	Long: `Alt Text Writer finds storefront images that have no alt text, asks Gemini
to describe each one, validates the description against the store's alt
text rules, and writes the result back through the Shopify Admin API.

Every run writes a JSON report covering each image it touched, the text
chosen, and any per-image errors. With --dry-run the descriptions and the
report are still produced but nothing is written back to the store.

Configuration comes from the environment (or a local .env file):
SHOPIFY_STORE_DOMAIN, SHOPIFY_ACCESS_TOKEN, GEMINI_API_KEY are required.

Examples:
  alt-text-writer             # describe and update images missing alt text
  alt-text-writer --dry-run   # preview the run without writing back`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Generate descriptions and the report without updating the store")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration incomplete")
	}
	cfg.DryRun = dryRunFlag

	// Ctrl-C cancels the run; the report still gets written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genaiClient, err := describer.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	media := shopify.NewClient(cfg.StoreDomain, cfg.AccessToken)
	desc := describer.New(genaiClient, cfg.Model, cfg.BusinessContext)
	sink := report.FileSink{Dir: cfg.ReportDir}
	run := runner.New(media, desc, sink, cfg.DryRun)

	logging.NewStartupLogger("alt-text-writer").
		Config("store", cfg.StoreDomain).
		Config("model", cfg.Model).
		Config("reportDir", cfg.ReportDir).
		Feature("dryRun", cfg.DryRun).
		InitDuration(time.Since(initStart)).
		Log()

	sum, err := run.Run(ctx)
	fmt.Println(cli.FormatRunSummary(sum))
	if err != nil {
		os.Exit(1)
	}
}
