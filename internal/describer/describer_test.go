package describer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beansie/alt-text-writer/internal/alttext"
	"google.golang.org/genai"
)

const validAltText = "Whole bean Ethiopian specialty coffee with floral aroma, roasted in Dublin for pour over brewing"

// fakeGenerator returns canned responses in order and records calls.
type fakeGenerator struct {
	responses []fakeResponse
	calls     int
	lastModel string
	lastCfg   *genai.GenerateContentConfig
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastModel = model
	f.lastCfg = config
	if f.calls > len(f.responses) {
		return nil, errors.New("fakeGenerator: no response scripted for call")
	}
	r := f.responses[f.calls-1]
	return r.resp, r.err
}

// textResponse builds a normal completion carrying the given text.
func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

// blockedResponse builds a refused completion.
func blockedResponse() *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason: genai.BlockedReasonSafety,
		},
	}
}

// newTestDescriber wires a Describer to a fake generator and an image
// server with a short retry delay.
func newTestDescriber(gen *fakeGenerator, imageServer *httptest.Server) *Describer {
	return &Describer{
		gen:             gen,
		httpClient:      imageServer.Client(),
		model:           "test-model",
		businessContext: "Beans.ie sells specialty coffee.",
		rules:           alttext.Default,
		retryDelay:      time.Millisecond,
	}
}

// newImageServer serves fake JPEG bytes for any path.
func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
}

func TestDescribe_ModelSuccess(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	gen := &fakeGenerator{responses: []fakeResponse{
		{resp: textResponse(`{"alt_text": "` + validAltText + `"}`)},
	}}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{
		ImageURL: server.URL + "/files/ethiopian-beans.jpg",
		Title:    "ethiopian-beans.jpg",
		MimeType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Source != SourceModel {
		t.Errorf("Source = %q, want model", desc.Source)
	}
	if desc.Text != validAltText {
		t.Errorf("Text = %q", desc.Text)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 call, got %d", gen.calls)
	}
}

func TestDescribe_SendsStructuredOutputConfig(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	gen := &fakeGenerator{responses: []fakeResponse{
		{resp: textResponse(`{"alt_text": "` + validAltText + `"}`)},
	}}
	d := newTestDescriber(gen, server)

	if _, err := d.Describe(context.Background(), Request{ImageURL: server.URL + "/a.jpg", Title: "a.jpg"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := gen.lastCfg
	if cfg == nil {
		t.Fatal("no config captured")
	}
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", cfg.ResponseMIMEType)
	}
	if cfg.SystemInstruction == nil {
		t.Error("system instruction not set")
	}

	schema := cfg.ResponseSchema
	if schema == nil {
		t.Fatal("response schema not set")
	}
	prop, ok := schema.Properties[altTextField]
	if !ok {
		t.Fatalf("schema missing %s property", altTextField)
	}
	if prop.MinLength == nil || *prop.MinLength != int64(alttext.Default.MinLength) {
		t.Errorf("schema MinLength = %v, want %d", prop.MinLength, alttext.Default.MinLength)
	}
	if prop.MaxLength == nil || *prop.MaxLength != int64(alttext.Default.MaxLength) {
		t.Errorf("schema MaxLength = %v, want %d", prop.MaxLength, alttext.Default.MaxLength)
	}
	if prop.Pattern != alttext.CharacterPattern {
		t.Errorf("schema Pattern = %q, want shared character pattern", prop.Pattern)
	}
}

func TestDescribe_InvalidModelTextFallsBack(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	gen := &fakeGenerator{responses: []fakeResponse{
		{resp: textResponse(`{"alt_text": "Too short"}`)},
	}}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{
		ImageURL: server.URL + "/files/summer_blend-hero.jpg",
		Title:    "summer_blend-hero.jpg",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", desc.Source)
	}
	if desc.Text != alttext.Fallback("summer_blend-hero.jpg") {
		t.Errorf("Text = %q, want deterministic fallback", desc.Text)
	}
	if gen.calls != 1 {
		t.Errorf("validation failure should not retry, got %d calls", gen.calls)
	}
}

func TestDescribe_RefusalDoesNotRetry(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	gen := &fakeGenerator{responses: []fakeResponse{
		{resp: blockedResponse()},
	}}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{
		ImageURL: server.URL + "/files/summer_blend-hero.jpg",
		Title:    "summer_blend-hero.jpg",
	})
	if err != nil {
		t.Fatalf("refusal should not surface an error, got %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("refusal must not retry, got %d calls", gen.calls)
	}
	if desc.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", desc.Source)
	}
}

func TestDescribe_RefusalWithUnusableFallback(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	gen := &fakeGenerator{responses: []fakeResponse{
		{resp: blockedResponse()},
	}}
	d := newTestDescriber(gen, server)

	// A title long enough that the fallback truncates the keyword away.
	desc, err := d.Describe(context.Background(), Request{
		ImageURL: server.URL + "/files/long.jpg",
		Title:    strings.Repeat("a", 130),
	})
	if err != nil {
		t.Fatalf("refusal is not an error even without a fallback, got %v", err)
	}
	if desc.Source != SourceNone {
		t.Errorf("Source = %q, want none", desc.Source)
	}
	if desc.Text != "" {
		t.Errorf("Text = %q, want empty", desc.Text)
	}
}

func TestDescribe_RateLimitRetriesThenSucceeds(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	rateLimited := &genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exceeded"}
	gen := &fakeGenerator{responses: []fakeResponse{
		{err: rateLimited},
		{err: rateLimited},
		{resp: textResponse(`{"alt_text": "` + validAltText + `"}`)},
	}}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{ImageURL: server.URL + "/a.jpg", Title: "a.jpg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", gen.calls)
	}
	if desc.Source != SourceModel {
		t.Errorf("Source = %q, want model", desc.Source)
	}
}

func TestDescribe_RateLimitTextRetries(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	// Untyped errors count as rate limits on wording alone.
	gen := &fakeGenerator{responses: []fakeResponse{
		{err: errors.New("resource exhausted")},
		{err: errors.New("gemini quota reached for project")},
		{resp: textResponse(`{"alt_text": "` + validAltText + `"}`)},
	}}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{ImageURL: server.URL + "/a.jpg", Title: "a.jpg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", gen.calls)
	}
	if desc.Source != SourceModel {
		t.Errorf("Source = %q, want model", desc.Source)
	}
}

func TestDescribe_RateLimitExhaustedFallsBack(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	rateLimited := &genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exceeded"}
	gen := &fakeGenerator{responses: []fakeResponse{
		{err: rateLimited}, {err: rateLimited}, {err: rateLimited},
	}}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{
		ImageURL: server.URL + "/files/summer_blend-hero.jpg",
		Title:    "summer_blend-hero.jpg",
	})
	if err != nil {
		t.Fatalf("fallback recovered the item, error should be nil: %v", err)
	}
	if gen.calls != maxAttempts {
		t.Errorf("expected exactly %d attempts, got %d", maxAttempts, gen.calls)
	}
	if desc.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", desc.Source)
	}
}

func TestDescribe_TerminalErrorSurfacesWhenFallbackUnusable(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	gen := &fakeGenerator{responses: []fakeResponse{
		{err: errors.New("backend exploded")},
	}}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{
		ImageURL: server.URL + "/files/long.jpg",
		Title:    strings.Repeat("a", 130),
	})
	if err == nil {
		t.Fatal("expected the generation error to surface")
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error %q should carry the cause", err)
	}
	if gen.calls != 1 {
		t.Errorf("non-rate-limit errors should not retry, got %d calls", gen.calls)
	}
	if desc.Source != SourceNone {
		t.Errorf("Source = %q, want none", desc.Source)
	}
}

func TestDescribe_DownloadFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	gen := &fakeGenerator{}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{
		ImageURL: server.URL + "/files/summer_blend-hero.jpg",
		Title:    "summer_blend-hero.jpg",
	})
	if err != nil {
		t.Fatalf("fallback recovered the item, error should be nil: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("model should not be called when the download fails, got %d calls", gen.calls)
	}
	if desc.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", desc.Source)
	}
}

func TestDescribe_MalformedModelJSONFallsBack(t *testing.T) {
	server := newImageServer(t)
	defer server.Close()

	gen := &fakeGenerator{responses: []fakeResponse{
		{resp: textResponse("not json at all")},
	}}
	d := newTestDescriber(gen, server)

	desc, err := d.Describe(context.Background(), Request{
		ImageURL: server.URL + "/files/summer_blend-hero.jpg",
		Title:    "summer_blend-hero.jpg",
	})
	if err != nil {
		t.Fatalf("fallback recovered the item, error should be nil: %v", err)
	}
	if desc.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", desc.Source)
	}
	if gen.calls != 1 {
		t.Errorf("parse failures should not retry, got %d calls", gen.calls)
	}
}
