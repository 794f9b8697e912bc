// Package cli holds small terminal-facing helpers for the command line
// entry point.
package cli

import (
	"fmt"
	"time"

	"github.com/beansie/alt-text-writer/internal/runner"
)

// FormatRunSummary renders a finished run as one human-readable line for
// the terminal, e.g.
//
//	updated 12/14 images (3 fallbacks, 1 failed, 2 skipped) in 1m42s
//
// The duration is rounded to whole seconds.
func FormatRunSummary(sum runner.Summary) string {
	verb := "updated"
	if sum.DryRun {
		verb = "would update"
	}
	return fmt.Sprintf("%s %d/%d images (%d fallbacks, %d failed, %d skipped) in %s",
		verb, sum.Updated, sum.Candidates, sum.Fallbacks, sum.Failed, sum.Skipped,
		sum.Duration.Round(time.Second))
}
