package util

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain array",
			input:    `[{"title": "Intro", "description": "Motivation"}]`,
			expected: `[{"title": "Intro", "description": "Motivation"}]`,
		},
		{
			name:     "array in markdown",
			input:    "```json\n[{\"title\": \"A\", \"description\": \"B\"}]\n```",
			expected: `[{"title": "A", "description": "B"}]`,
		},
		{
			name:     "array with text around",
			input:    `Here is the outline: [{"title": "A", "description": "B"}] Hope this helps.`,
			expected: `[{"title": "A", "description": "B"}]`,
		},
		{
			name:     "object wrapper opens first",
			input:    `{"sections": [{"title": "A", "description": "B"}]}`,
			expected: `{"sections": [{"title": "A", "description": "B"}]}`,
		},
		{
			name:     "brackets inside strings",
			input:    `[{"title": "Sets [a, b]", "description": "closed ] interval"}]`,
			expected: `[{"title": "Sets [a, b]", "description": "closed ] interval"}]`,
		},
		{
			name:     "truncated array returned as-is",
			input:    `[{"title": "A", "description": "B"}, {"title": "C"`,
			expected: `[{"title": "A", "description": "B"}, {"title": "C"`,
		},
		{
			name:     "no json",
			input:    "  I cannot help with that.  ",
			expected: "I cannot help with that.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "valid json", input: `["a", "b", "c"]`},
		{name: "trailing comma in array", input: `["a", "b", "c",]`},
		{name: "multiple trailing commas", input: `["a", "b",,]`},
		{name: "trailing comma with spaces", input: `["a", "b", "c" , ]`},
		{name: "missing comma between elements", input: `["a" "b" "c"]`},
		{name: "unescaped newline in string", input: "[\"a\nb\"]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := RepairJSON(tt.input)

			var arr []string
			if err := json.Unmarshal([]byte(repaired), &arr); err != nil {
				t.Errorf("RepairJSON() failed to produce valid JSON: %v\nInput: %s\nOutput: %s", err, tt.input, repaired)
			}
		})
	}
}

func TestRepairJSON_OutlineObjects(t *testing.T) {
	input := `[
  {"title": "Introduction", "description": "Motivate the
problem"}
  {"title": "Method", "description": "Derive the bound",},
]`

	var items []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(RepairJSON(input)), &items); err != nil {
		t.Fatalf("RepairJSON() output invalid: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Description != "Motivate the\nproblem" {
		t.Errorf("unexpected description: %q", items[0].Description)
	}
	if items[1].Title != "Method" {
		t.Errorf("unexpected title: %q", items[1].Title)
	}
}

func TestSanitizeJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "newline in string",
			input:    "{\"a\": \"line1\nline2\"}",
			expected: `{"a": "line1\nline2"}`,
		},
		{
			name:     "crlf in string",
			input:    "{\"a\": \"line1\r\nline2\"}",
			expected: `{"a": "line1\nline2"}`,
		},
		{
			name:     "newline outside string kept",
			input:    "{\n\"a\": 1\n}",
			expected: "{\n\"a\": 1\n}",
		},
		{
			name:     "escaped quote",
			input:    `{"a": "say \"hi\""}`,
			expected: `{"a": "say \"hi\""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeJSON(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeJSON() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCountUnmatchedBraces(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		open     rune
		close    rune
		expected int
	}{
		{name: "balanced", input: `{"a": {"b": 1}}`, open: '{', close: '}', expected: 0},
		{name: "one open", input: `{"a": 1`, open: '{', close: '}', expected: 1},
		{name: "nested open", input: `{"a": {"b": {`, open: '{', close: '}', expected: 3},
		{name: "ignores strings", input: `{"a": "}}}"`, open: '{', close: '}', expected: 1},
		{name: "handles escapes", input: `["a\"]"`, open: '[', close: ']', expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := countUnmatchedBraces(tt.input, tt.open, tt.close)
			if got != tt.expected {
				t.Errorf("countUnmatchedBraces() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestIsTruncatedJSON(t *testing.T) {
	if IsTruncatedJSON(`[{"title": "A"}]`) {
		t.Error("complete array reported as truncated")
	}
	if !IsTruncatedJSON(`[{"title": "A"}, {"title": "B"`) {
		t.Error("truncated array not detected")
	}
}
