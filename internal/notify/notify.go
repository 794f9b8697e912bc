// Package notify publishes run lifecycle events to EventBridge so
// downstream automation (dashboards, alerting) can react to finished runs.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/beansie/alt-text-writer/internal/runner"
)

const (
	eventSource     = "beansie.alt-text-writer"
	eventDetailType = "AltTextRunCompleted"
)

// RunCompletedDetail is the EventBridge detail payload for one run.
type RunCompletedDetail struct {
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

// putEventsAPI is the slice of the EventBridge client used here; tests
// substitute a fake.
type putEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeNotifier publishes run completions to an event bus.
type EventBridgeNotifier struct {
	Client putEventsAPI
	Bus    string
}

// New creates a notifier targeting the named event bus. An empty name
// targets the account's default bus.
func New(client *eventbridge.Client, bus string) *EventBridgeNotifier {
	return &EventBridgeNotifier{Client: client, Bus: bus}
}

// RunCompleted emits one AltTextRunCompleted event carrying the summary.
func (n *EventBridgeNotifier) RunCompleted(ctx context.Context, sum runner.Summary) error {
	detail, err := json.Marshal(RunCompletedDetail{
		RunID:      sum.RunID,
		DryRun:     sum.DryRun,
		Candidates: sum.Candidates,
		Batches:    sum.Batches,
		Updated:    sum.Updated,
		Fallbacks:  sum.Fallbacks,
		Failed:     sum.Failed,
		Skipped:    sum.Skipped,
		DurationMs: sum.Duration.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("marshal run detail: %w", err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(eventSource),
		DetailType: aws.String(eventDetailType),
		Detail:     aws.String(string(detail)),
	}
	if n.Bus != "" {
		entry.EventBusName = aws.String(n.Bus)
	}

	result, err := n.Client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("runId", sum.RunID).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(e.ErrorCode)).
					Str("errorMessage", aws.ToString(e.ErrorMessage)).
					Str("runId", sum.RunID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}

	log.Debug().Str("runId", sum.RunID).Str("bus", n.Bus).Msg("Run completion event emitted")
	return nil
}
