package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	// tokenBudgetPerMinute is the self-imposed Gemini TPM ceiling.
	tokenBudgetPerMinute = 30000

	// tokensPerImage is a fixed per-request estimate. Actual usage varies
	// with image size; the throttle is a heuristic, not an exact meter.
	tokensPerImage = 1000

	// throttleThreshold pauses before the budget is fully consumed.
	throttleThreshold = 0.9

	// throttlePause lets the per-minute window roll over.
	throttlePause = 60 * time.Second
)

// tokenThrottle tracks estimated token spend and pauses a batch dispatch
// when the next batch would push the estimate past the budget threshold.
type tokenThrottle struct {
	pause    time.Duration
	estimate int
}

// wait blocks until the next batch of n images fits the budget, sleeping
// one pause window and resetting the estimate when it does not. Returns
// early if the context is cancelled during the pause.
func (t *tokenThrottle) wait(ctx context.Context, logger zerolog.Logger, n int) error {
	projected := t.estimate + n*tokensPerImage
	if float64(projected) > throttleThreshold*tokenBudgetPerMinute {
		logger.Info().
			Int("estimatedTokens", t.estimate).
			Int("projectedTokens", projected).
			Dur("pause", t.pause).
			Msg("Token budget nearly exhausted, pausing")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.pause):
		}
		t.estimate = 0
		projected = n * tokensPerImage
	}
	t.estimate = projected
	return nil
}
