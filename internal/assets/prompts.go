// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time, keeping copy changes out of Go source diffs.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// AltTextSystemPrompt is the system instruction for alt text generation.
// It carries the authoring persona and the output contract.
//
//go:embed prompts/alt-text-system.txt
var AltTextSystemPrompt string

//go:embed prompts/alt-text-user.txt
var altTextUserTemplate string

// Pre-parsed template. template.Must panics on a malformed template,
// catching errors at program startup rather than at call time.
var altTextUserTmpl = template.Must(template.New("altText").Parse(altTextUserTemplate))

// AltTextPromptData holds the dynamic data injected into the user prompt.
type AltTextPromptData struct {
	// Title is the image filename derived from the media URL.
	Title string
	// BusinessContext describes the storefront for on-brand copy.
	BusinessContext string
}

// RenderAltTextPrompt renders the user prompt for one image.
func RenderAltTextPrompt(data AltTextPromptData) string {
	var buf bytes.Buffer
	// Execution cannot fail for this template and data shape; return
	// whatever was rendered regardless.
	_ = altTextUserTmpl.Execute(&buf, data)
	return buf.String()
}
