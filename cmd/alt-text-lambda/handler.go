package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beansie/alt-text-writer/internal/describer"
	"github.com/beansie/alt-text-writer/internal/runner"
	"github.com/beansie/alt-text-writer/internal/shopify"
)

// ScheduleEvent is the EventBridge Scheduler payload. All fields are
// optional; an empty event runs live.
type ScheduleEvent struct {
	DryRun bool `json:"dryRun"`
}

// RunResult is returned to the invoker so the scheduler's execution
// history shows what each run did.
type RunResult struct {
	RunID      string `json:"runId"`
	DryRun     bool   `json:"dryRun"`
	Candidates int    `json:"candidates"`
	Batches    int    `json:"batches"`
	Updated    int    `json:"updated"`
	Fallbacks  int    `json:"fallbacks"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DurationMs int64  `json:"durationMs"`
}

func handler(ctx context.Context, event ScheduleEvent) (RunResult, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "alt-text-lambda").Msg("Cold start — first invocation")
	}

	handlerStart := time.Now()
	log.Info().Bool("dryRun", event.DryRun).Msg("Starting scheduled alt text run")

	genaiClient, err := describer.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Gemini client")
		return RunResult{}, err
	}

	media := shopify.NewClient(cfg.StoreDomain, cfg.AccessToken)
	desc := describer.New(genaiClient, cfg.Model, cfg.BusinessContext)

	run := runner.New(media, desc, sink, event.DryRun)
	if notifier != nil {
		run.Notifier = notifier
	}

	sum, runErr := run.Run(ctx)
	result := RunResult{
		RunID:      sum.RunID,
		DryRun:     sum.DryRun,
		Candidates: sum.Candidates,
		Batches:    sum.Batches,
		Updated:    sum.Updated,
		Fallbacks:  sum.Fallbacks,
		Failed:     sum.Failed,
		Skipped:    sum.Skipped,
		DurationMs: sum.Duration.Milliseconds(),
	}
	if runErr != nil {
		return result, runErr
	}

	log.Info().
		Int("updated", sum.Updated).
		Int("failed", sum.Failed).
		Dur("duration", time.Since(handlerStart)).
		Msg("Scheduled run complete")
	return result, nil
}
