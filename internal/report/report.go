// Package report defines the JSON run report — the only durable state a
// run produces — and the sinks that persist it.
package report

import (
	"context"
	"time"
)

// Result is the outcome for a single image. AltTag is null when no
// usable description existed; Error carries write or terminal generation
// failures and is omitted otherwise.
type Result struct {
	ImageID  string  `json:"imageId"`
	AltTag   *string `json:"altTag"`
	ImageURL string  `json:"imageUrl"`
	Error    string  `json:"error,omitempty"`
}

// Batch groups the results of one processed batch.
type Batch struct {
	Batch   int      `json:"batch"`
	Updates []Result `json:"updates"`
}

// Report is the durable record of one run.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	DryRun    bool      `json:"dryRun"`
	Batches   []Batch   `json:"batches"`
}

// New creates an empty report stamped with the current UTC time. Batches
// is non-nil so an empty run still serialises as "batches": [].
func New(dryRun bool) *Report {
	return &Report{
		Timestamp: time.Now().UTC(),
		DryRun:    dryRun,
		Batches:   []Batch{},
	}
}

// Append adds the next batch of results. Batch numbers are 1-based.
func (r *Report) Append(results []Result) {
	r.Batches = append(r.Batches, Batch{
		Batch:   len(r.Batches) + 1,
		Updates: results,
	})
}

// Filename is the timestamped report name, with colons dashed so the
// name stays filesystem-safe.
func (r *Report) Filename() string {
	return "alt-text-report-" + r.Timestamp.Format("2006-01-02T15-04-05Z") + ".json"
}

// Sink persists a completed report.
type Sink interface {
	Write(ctx context.Context, rep *Report) error
}
