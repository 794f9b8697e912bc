// Package alttext defines the output contract for storefront image alt
// text: the rules generated descriptions must satisfy, and the
// deterministic fallback used when generation cannot produce usable text.
package alttext

import (
	"fmt"
	"regexp"
	"strings"
)

// CharacterPattern is the regular expression the full text must match.
// It is exposed so the generation schema and local validation share one
// definition of the permitted character set.
const CharacterPattern = `^[A-Za-z0-9\s,.&-]*$`

var allowedChars = regexp.MustCompile(CharacterPattern)

// Rules is the output contract for a single alt text string. The same
// value drives both the structured-output schema sent to the model and
// the local re-validation of whatever comes back.
type Rules struct {
	// MinLength and MaxLength bound the text length, inclusive.
	MinLength int
	MaxLength int
	// RequiredKeyword must appear somewhere in the text, case-insensitive.
	RequiredKeyword string
	// BannedPhrases are rejected anywhere in the text, case-insensitive.
	BannedPhrases []string
}

// Default is the contract for Beans.ie product imagery.
var Default = Rules{
	MinLength:       60,
	MaxLength:       125,
	RequiredKeyword: "coffee",
	BannedPhrases:   []string{"image of", "picture of"},
}

// Validate reports whether text satisfies the rules, returning an error
// that names the violated rule. The character set is ASCII-only, so byte
// length and character length agree for any text that passes.
func (r Rules) Validate(text string) error {
	if n := len(text); n < r.MinLength || n > r.MaxLength {
		return fmt.Errorf("alt text must be %d-%d characters, got %d", r.MinLength, r.MaxLength, n)
	}

	lower := strings.ToLower(text)
	if r.RequiredKeyword != "" && !strings.Contains(lower, r.RequiredKeyword) {
		return fmt.Errorf("alt text must mention %q", r.RequiredKeyword)
	}

	if !allowedChars.MatchString(text) {
		return fmt.Errorf("alt text contains characters outside %s", CharacterPattern)
	}

	for _, phrase := range r.BannedPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("alt text must not contain %q", phrase)
		}
	}

	return nil
}
