package sanitizex

import (
	"strings"
	"testing"
	"unicode"
)

func TestCleanSingleLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "basic trimming",
			input:    "  hello world  ",
			expected: "hello world",
		},
		{
			name:     "collapse multiple spaces",
			input:    "hello    world",
			expected: "hello world",
		},
		{
			name:     "remove newlines",
			input:    "hello\nworld",
			expected: "hello world",
		},
		{
			name:     "mixed whitespace",
			input:    "  hello \n\t  world \r  ",
			expected: "hello world",
		},
		{
			name:     "control characters",
			input:    "hello\x00\x01\x02world",
			expected: "hello world",
		},
		{
			name:     "unicode normalization - decomposed",
			input:    "cafe\u0301",
			expected: "caf\u00e9",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "only control characters",
			input:    "\x00\x01\x02\x1F",
			expected: "",
		},
		{
			name:     "unicode characters preserved",
			input:    "Иван 李雷",
			expected: "Иван 李雷",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CleanSingleLine(tt.input)
			if result != tt.expected {
				t.Errorf("CleanSingleLine(%q) = %q, want %q", tt.input, result, tt.expected)
			}

			for _, r := range result {
				if unicode.IsControl(r) {
					t.Errorf("CleanSingleLine(%q) = %q, should not contain control characters", tt.input, result)
					break
				}
			}
			if strings.Contains(result, "  ") {
				t.Errorf("CleanSingleLine(%q) = %q, should not contain multiple consecutive spaces", tt.input, result)
			}
		})
	}
}

func TestCleanToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "timezone",
			input:    "Europe/Moscow",
			expected: "Europe/Moscow",
		},
		{
			name:     "padded language tag",
			input:    "  zh-Hans \t",
			expected: "zh-Hans",
		},
		{
			name:     "header injection",
			input:    "UTC\r\nX-Admin: 1",
			expected: "UTCX-Admin:1",
		},
		{
			name:     "inner spaces removed",
			input:    "America/ New_York",
			expected: "America/New_York",
		},
		{
			name:     "too long",
			input:    strings.Repeat("a", maxTokenLength+1),
			expected: "",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := CleanToken(tt.input); result != tt.expected {
				t.Errorf("CleanToken(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
