// Package describer generates SEO alt text for storefront images using
// Gemini structured output. When generation cannot produce text that
// passes the alt text rules, it falls back to the deterministic template
// and, failing that too, yields no description — a single image never
// fails a whole run.
package describer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/beansie/alt-text-writer/internal/alttext"
	"github.com/beansie/alt-text-writer/internal/assets"
	"github.com/beansie/alt-text-writer/internal/jsonutil"
	"github.com/beansie/alt-text-writer/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	// downloadTimeout bounds fetching image bytes from the CDN.
	downloadTimeout = 30 * time.Second

	// maxAttempts bounds rate-limited generation retries.
	maxAttempts = 3

	// retryBaseDelay doubles per retry.
	retryBaseDelay = time.Second

	// jitterCap is the random slice added to each backoff wait.
	jitterCap = 100 * time.Millisecond

	// maxOutputTokens leaves the model headroom beyond the 125-character
	// description itself.
	maxOutputTokens = 2048
)

// errRefused marks an explicit model refusal. Refusals skip retries and
// go straight to the fallback path.
var errRefused = errors.New("model declined to describe the image")

// Source identifies where a description's text came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

// Description is the outcome of describing one image. Text is empty iff
// Source is SourceNone.
type Description struct {
	Text   string
	Source Source
}

// Request identifies one image to describe.
type Request struct {
	ImageURL string
	Title    string
	MimeType string
}

// altPayload mirrors the structured output schema.
type altPayload struct {
	AltText string `json:"alt_text"`
}

// contentGenerator is the slice of the genai client the describer needs.
// *genai.Models satisfies it; tests substitute a fake.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Describer turns storefront images into validated alt text.
type Describer struct {
	gen             contentGenerator
	httpClient      *http.Client
	model           string
	businessContext string
	rules           alttext.Rules

	// retryDelay is retryBaseDelay in production; tests shorten it.
	retryDelay time.Duration
}

// NewClient creates a Gemini API client from an API key.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return client, nil
}

// New creates a Describer backed by the given Gemini client.
func New(client *genai.Client, model, businessContext string) *Describer {
	return &Describer{
		gen: client.Models,
		httpClient: &http.Client{
			Timeout: downloadTimeout,
		},
		model:           model,
		businessContext: businessContext,
		rules:           alttext.Default,
		retryDelay:      retryBaseDelay,
	}
}

// Describe produces alt text for one image. The returned error is non-nil
// only when no usable text exists and a concrete upstream failure caused
// it; refusals and validation misses resolve through the fallback without
// an error.
func (d *Describer) Describe(ctx context.Context, req Request) (Description, error) {
	text, err := d.generate(ctx, req)
	switch {
	case err == nil:
		if verr := d.rules.Validate(text); verr != nil {
			log.Warn().Str("title", req.Title).Err(verr).Msg("Generated alt text failed validation, falling back")
			return d.fallbackFor(req, nil)
		}
		log.Debug().Str("title", req.Title).Int("length", len(text)).Msg("Alt text generated")
		return Description{Text: text, Source: SourceModel}, nil

	case errors.Is(err, errRefused):
		log.Warn().Str("title", req.Title).Msg("Model refused, falling back")
		return d.fallbackFor(req, nil)

	default:
		log.Error().Str("title", req.Title).Err(err).Msg("Description generation failed, falling back")
		return d.fallbackFor(req, err)
	}
}

// fallbackFor composes and validates the templated description. cause is
// carried through when the fallback is unusable too, so the caller can
// record why the image produced nothing.
func (d *Describer) fallbackFor(req Request, cause error) (Description, error) {
	text := alttext.Fallback(req.Title)
	if err := d.rules.Validate(text); err != nil {
		log.Warn().Str("title", req.Title).Err(err).Msg("Fallback description failed validation, yielding no text")
		return Description{Source: SourceNone}, cause
	}
	log.Info().Str("title", req.Title).Msg("Using fallback description")
	return Description{Text: text, Source: SourceFallback}, nil
}

// generate downloads the image and asks the model for schema-constrained
// alt text. Only rate-limit rejections retry, with exponential backoff
// plus jitter; a refusal returns errRefused immediately.
func (d *Describer) generate(ctx context.Context, req Request) (string, error) {
	imgData, err := d.downloadImage(ctx, req.ImageURL)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	prompt := assets.RenderAltTextPrompt(assets.AltTextPromptData{
		Title:           req.Title,
		BusinessContext: d.businessContext,
	})

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.AltTextSystemPrompt}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(d.rules),
		MaxOutputTokens:  maxOutputTokens,
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: imgData}},
		{Text: prompt},
	}}}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := d.retryDelay*time.Duration(1<<(attempt-1)) + rand.N(jitterCap)
			log.Warn().Err(lastErr).Int("attempt", attempt).Dur("wait", wait).Msg("Gemini rate limited, retrying")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		text, err := d.generateOnce(ctx, contents, config)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, errRefused) || !isRateLimited(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("generation rate limited after %d attempts: %w", maxAttempts, lastErr)
}

// generateOnce performs a single model call and extracts the alt text.
func (d *Describer) generateOnce(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	callStart := time.Now()
	resp, err := d.gen.GenerateContent(ctx, d.model, contents, config)
	elapsed := time.Since(callStart)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "describe").
		Metric("GeminiApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("GeminiApiCalls")
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if reason, refused := refusalReason(resp); refused {
		log.Warn().Str("reason", reason).Dur("duration", elapsed).Msg("Gemini declined to describe the image")
		return "", errRefused
	}

	responseText := resp.Text()
	if responseText == "" {
		return "", fmt.Errorf("received empty response from Gemini API")
	}

	payload, err := jsonutil.ParseObject[altPayload](responseText)
	if err != nil {
		return "", fmt.Errorf("parse description response: %w", err)
	}
	return payload.AltText, nil
}

// refusalReason inspects a response for an explicit refusal: a blocked
// prompt, or a candidate stopped for a safety-class reason.
func refusalReason(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return string(resp.PromptFeedback.BlockReason), true
	}
	for _, cand := range resp.Candidates {
		switch cand.FinishReason {
		case genai.FinishReasonSafety,
			genai.FinishReasonBlocklist,
			genai.FinishReasonProhibitedContent,
			genai.FinishReasonSPII,
			genai.FinishReasonImageSafety,
			genai.FinishReasonRecitation:
			return string(cand.FinishReason), true
		}
	}
	return "", false
}

// isRateLimited reports whether the error is a quota or rate-limit
// rejection worth retrying.
func isRateLimited(err error) bool {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "quota")
}

// downloadImage fetches the image bytes for inline attachment. Storefront
// images are CDN-sized and comfortably fit in memory.
func (d *Describer) downloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("media asset has no image URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}
