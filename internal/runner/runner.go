// Package runner drives an alt text run end to end: scope verification,
// image discovery, batched concurrent description, write-back, and report
// persistence. Per-image failures are recorded and never abort the run;
// only setup failures (scopes, discovery) do, and even those still leave
// a persisted report behind.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beansie/alt-text-writer/internal/describer"
	"github.com/beansie/alt-text-writer/internal/metrics"
	"github.com/beansie/alt-text-writer/internal/report"
	"github.com/beansie/alt-text-writer/internal/shopify"
)

// batchSize is the number of images described concurrently per batch.
const batchSize = 5

// MediaAPI is the slice of the Shopify media client the runner needs.
type MediaAPI interface {
	VerifyScopes(ctx context.Context) error
	ListAllImages(ctx context.Context) ([]shopify.MediaAsset, error)
	UpdateAltText(ctx context.Context, imageID, altText string) error
}

// Describer produces alt text for a single image.
type Describer interface {
	Describe(ctx context.Context, req describer.Request) (describer.Description, error)
}

// Notifier is told about the finished run after the report is persisted.
type Notifier interface {
	RunCompleted(ctx context.Context, sum Summary) error
}

// Summary aggregates the counters of one run. Updated counts images whose
// alt text was written, or would have been written in dry-run mode.
// Fallbacks is the subset of Updated that used the templated description.
// Skipped counts images without alt text that the pipeline cannot process
// (vector formats).
type Summary struct {
	RunID      string
	DryRun     bool
	Candidates int
	Batches    int
	Updated    int
	Fallbacks  int
	Failed     int
	Skipped    int
	Duration   time.Duration
}

// Runner wires the media client, the describer, and the report sink into
// the batch state machine. Notifier is optional.
type Runner struct {
	Media     MediaAPI
	Describer Describer
	Sink      report.Sink
	Notifier  Notifier
	DryRun    bool

	// pause is the token-budget cooldown; tests shorten it.
	pause time.Duration
}

// New assembles a Runner with the production throttle pause.
func New(media MediaAPI, desc Describer, sink report.Sink, dryRun bool) *Runner {
	return &Runner{
		Media:     media,
		Describer: desc,
		Sink:      sink,
		DryRun:    dryRun,
		pause:     throttlePause,
	}
}

// Run executes one full alt text run and returns its summary. The report
// is persisted exactly once, whether the run completes or aborts.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString(), DryRun: r.DryRun}
	rep := report.New(r.DryRun)

	logger := log.With().
		Str("runId", sum.RunID).
		Bool("dryRun", r.DryRun).
		Logger()
	logger.Info().Msg("Starting alt text run")

	persisted := false
	persist := func() {
		if persisted {
			return
		}
		persisted = true
		// Background context so an aborted run still lands its report.
		if err := r.Sink.Write(context.Background(), rep); err != nil {
			logger.Error().Err(err).Msg("Failed to persist run report")
		}
	}
	defer persist()

	runErr := r.process(ctx, logger, rep, &sum)
	sum.Duration = time.Since(start)

	persist()
	emitRunMetrics(sum)
	if r.Notifier != nil {
		if err := r.Notifier.RunCompleted(context.Background(), sum); err != nil {
			logger.Warn().Err(err).Msg("Run completion event failed")
		}
	}

	evt := logger.Info()
	msg := "Run complete"
	if runErr != nil {
		evt = logger.Error().Err(runErr)
		msg = "Run aborted"
	}
	evt.Int("candidates", sum.Candidates).
		Int("batches", sum.Batches).
		Int("updated", sum.Updated).
		Int("fallbacks", sum.Fallbacks).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Dur("duration", sum.Duration).
		Msg(msg)

	return sum, runErr
}

// process walks the run's states: verify, discover, then the batch loop.
func (r *Runner) process(ctx context.Context, logger zerolog.Logger, rep *report.Report, sum *Summary) error {
	if err := r.Media.VerifyScopes(ctx); err != nil {
		logger.Error().Err(err).Msg("Aborting run: access scope verification failed")
		return fmt.Errorf("verify scopes: %w", err)
	}

	assets, err := r.Media.ListAllImages(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Aborting run: media listing failed")
		return fmt.Errorf("list images: %w", err)
	}

	candidates, skipped := selectCandidates(logger, assets)
	sum.Candidates = len(candidates)
	sum.Skipped = skipped
	logger.Info().
		Int("images", len(assets)).
		Int("candidates", len(candidates)).
		Int("skipped", skipped).
		Msg("Discovery complete")

	if len(candidates) == 0 {
		logger.Info().Msg("Every image already has alt text")
		return nil
	}

	throttle := &tokenThrottle{pause: r.pause}
	for batchStart := 0; batchStart < len(candidates); batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			logger.Warn().Int("processed", batchStart).Msg("Run cancelled before completion")
			return err
		}

		end := min(batchStart+batchSize, len(candidates))
		batch := candidates[batchStart:end]

		if err := throttle.wait(ctx, logger, len(batch)); err != nil {
			return err
		}

		batchStartTime := time.Now()
		results := r.processBatch(ctx, logger, batch, sum)
		rep.Append(results)
		sum.Batches++
		logger.Info().
			Int("batch", sum.Batches).
			Int("size", len(batch)).
			Dur("duration", time.Since(batchStartTime)).
			Msg("Batch complete")
	}

	return nil
}

// processBatch describes and writes every image in the batch concurrently.
// Results land in an indexed slice so report order matches listing order.
func (r *Runner) processBatch(ctx context.Context, logger zerolog.Logger, batch []shopify.MediaAsset, sum *Summary) []report.Result {
	results := make([]report.Result, len(batch))
	sources := make([]describer.Source, len(batch))

	var wg sync.WaitGroup
	for i, asset := range batch {
		wg.Add(1)
		go func(idx int, asset shopify.MediaAsset) {
			defer wg.Done()
			results[idx], sources[idx] = r.processItem(ctx, logger, asset)
		}(i, asset)
	}
	wg.Wait()

	for i := range results {
		switch {
		case results[i].Error != "":
			sum.Failed++
		case results[i].AltTag == nil:
			// Refused and the fallback was unusable; nothing to write.
		case sources[i] == describer.SourceFallback:
			sum.Fallbacks++
			sum.Updated++
		default:
			sum.Updated++
		}
	}
	return results
}

// processItem handles one image: describe, then write back unless dry-run.
// Every outcome produces a result; errors are captured, never returned.
func (r *Runner) processItem(ctx context.Context, logger zerolog.Logger, asset shopify.MediaAsset) (report.Result, describer.Source) {
	res := report.Result{ImageID: asset.ID, ImageURL: asset.URL}

	desc, err := r.Describer.Describe(ctx, describer.Request{
		ImageURL: asset.URL,
		Title:    asset.Filename,
		MimeType: asset.MimeType,
	})
	if err != nil {
		logger.Warn().Err(err).Str("imageId", asset.ID).Msg("Description failed")
		res.Error = err.Error()
		return res, desc.Source
	}
	if desc.Source == describer.SourceNone {
		logger.Warn().Str("imageId", asset.ID).Str("filename", asset.Filename).Msg("No usable alt text produced")
		return res, desc.Source
	}

	res.AltTag = &desc.Text

	if r.DryRun {
		logger.Info().
			Str("imageId", asset.ID).
			Str("altText", desc.Text).
			Msg("Dry run: alt text generated, write skipped")
		return res, desc.Source
	}

	if err := r.Media.UpdateAltText(ctx, asset.ID, desc.Text); err != nil {
		logger.Error().Err(err).Str("imageId", asset.ID).Msg("Alt text write failed")
		res.Error = err.Error()
		return res, desc.Source
	}

	logger.Info().
		Str("imageId", asset.ID).
		Str("source", string(desc.Source)).
		Msg("Alt text updated")
	return res, desc.Source
}

// selectCandidates filters listed assets down to the ones the run should
// describe: empty or whitespace-only alt text in a raster format the
// vision model accepts. Returns the skipped unsupported count.
func selectCandidates(logger zerolog.Logger, assets []shopify.MediaAsset) ([]shopify.MediaAsset, int) {
	candidates := make([]shopify.MediaAsset, 0, len(assets))
	skipped := 0
	for _, asset := range assets {
		if strings.TrimSpace(asset.AltText) != "" {
			continue
		}
		if strings.HasSuffix(strings.ToLower(asset.Filename), ".svg") {
			logger.Debug().Str("imageId", asset.ID).Str("filename", asset.Filename).Msg("Skipping vector image")
			skipped++
			continue
		}
		candidates = append(candidates, asset)
	}
	return candidates, skipped
}

// emitRunMetrics publishes the run counters as one EMF document.
func emitRunMetrics(sum Summary) {
	metrics.New(metrics.Namespace).
		Dimension("Operation", "run").
		Metric("CandidateImages", float64(sum.Candidates), metrics.UnitCount).
		Metric("AltTextUpdates", float64(sum.Updated), metrics.UnitCount).
		Metric("FallbackDescriptions", float64(sum.Fallbacks), metrics.UnitCount).
		Metric("ItemFailures", float64(sum.Failed), metrics.UnitCount).
		Metric("RunDurationMs", float64(sum.Duration.Milliseconds()), metrics.UnitMilliseconds).
		Property("runId", sum.RunID).
		Property("dryRun", sum.DryRun).
		Flush()
}
