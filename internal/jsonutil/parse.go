// Package jsonutil extracts JSON objects from model responses that may be
// wrapped in markdown code fences or embedded in prose. Structured output
// normally returns bare JSON, but responses occasionally arrive fenced.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseObject strips any markdown fences from raw response text, locates
// the JSON object, and unmarshals it into T.
func ParseObject[T any](raw string) (T, error) {
	var zero T

	text := stripFences(raw)
	obj, err := objectSlice(text)
	if err != nil {
		return zero, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		preview := obj
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}

// stripFences removes ```json ... ``` or ``` ... ``` wrapping, returning
// the content between the fences or the original text when unfenced.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	end := len(lines) - 1
	for i := len(lines) - 1; i >= 1; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}

	return strings.Join(lines[1:end], "\n")
}

// objectSlice returns the substring from the first { to the last },
// covering responses that wrap the object in prose.
func objectSlice(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found")
	}

	text = text[start:]
	end := strings.LastIndex(text, "}")
	if end == -1 {
		return "", fmt.Errorf("no closing } found")
	}

	return text[:end+1], nil
}
