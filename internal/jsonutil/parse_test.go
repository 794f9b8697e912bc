package jsonutil

import (
	"strings"
	"testing"
)

type altPayload struct {
	AltText string `json:"alt_text"`
}

func TestParseObject(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			raw:  `{"alt_text": "Specialty coffee beans"}`,
			want: "Specialty coffee beans",
		},
		{
			name: "json fence",
			raw:  "```json\n{\"alt_text\": \"Specialty coffee beans\"}\n```",
			want: "Specialty coffee beans",
		},
		{
			name: "plain fence",
			raw:  "```\n{\"alt_text\": \"Specialty coffee beans\"}\n```",
			want: "Specialty coffee beans",
		},
		{
			name: "object embedded in prose",
			raw:  "Here is the alt text:\n{\"alt_text\": \"Specialty coffee beans\"}\nHope that helps.",
			want: "Specialty coffee beans",
		},
		{
			name:    "no object",
			raw:     "I cannot describe this image.",
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     `{"alt_text": "unterminated`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseObject[altPayload](tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseObject(%q) = %+v, want error", tc.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseObject(%q) returned error: %v", tc.raw, err)
			}
			if got.AltText != tc.want {
				t.Errorf("AltText = %q, want %q", got.AltText, tc.want)
			}
		})
	}
}

func TestParseObject_ErrorIncludesPreview(t *testing.T) {
	_, err := ParseObject[altPayload](`{"alt_text": 42}`)
	if err == nil {
		t.Fatal("expected unmarshal error")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("error %q should mention invalid JSON", err)
	}
}
