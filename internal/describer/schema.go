package describer

import (
	"github.com/beansie/alt-text-writer/internal/alttext"
	"google.golang.org/genai"
)

// altTextField is the single property the model must return.
const altTextField = "alt_text"

// responseSchema builds the structured-output schema from the same rules
// value used for local re-validation, so the two cannot drift apart. The
// keyword and banned-phrase rules are carried by the prompt and enforced
// again locally; the schema constrains shape, length and character set.
func responseSchema(rules alttext.Rules) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			altTextField: {
				Type:        genai.TypeString,
				Description: "SEO alt text for the storefront image",
				MinLength:   genai.Ptr(int64(rules.MinLength)),
				MaxLength:   genai.Ptr(int64(rules.MaxLength)),
				Pattern:     alttext.CharacterPattern,
			},
		},
		Required: []string{altTextField},
	}
}
