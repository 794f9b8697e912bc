package alttext

import "strings"

const (
	fallbackSuffix = " specialty coffee on Beans.ie"
	// Appended when the composed text falls short of the minimum length.
	fallbackPad = " freshly roasted and delivered across Ireland"
)

// Fallback composes a deterministic description from an image title when
// generation fails or produces invalid text. The title's segment before
// the first hyphen has underscores replaced with spaces, then the fixed
// store suffix is appended. Short results are padded, long results
// truncated to the maximum. Callers must still Validate the result; an
// invalid fallback means no description.
func Fallback(title string) string {
	base := title
	if i := strings.Index(base, "-"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(strings.ReplaceAll(base, "_", " "))

	text := strings.TrimSpace(base + fallbackSuffix)
	if len(text) < Default.MinLength {
		text += fallbackPad
	}
	if len(text) > Default.MaxLength {
		text = text[:Default.MaxLength]
	}
	return text
}
