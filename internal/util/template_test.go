package util

import (
	"strings"
	"testing"
)

func TestRenderTemplate_Basic(t *testing.T) {
	tmpl := "Write a {{.Tone}} paper titled {{.Title}}."
	data := map[string]interface{}{
		"Tone":  "Formal Academic",
		"Title": "On Sparse Graphs",
	}

	result, err := RenderTemplate(tmpl, data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "Write a Formal Academic paper titled On Sparse Graphs."
	if result != expected {
		t.Errorf("Expected '%s', got '%s'", expected, result)
	}
}

func TestRenderTemplate_Struct(t *testing.T) {
	tmpl := "Roadmap:\n{{range .Roadmap}}- {{.}}\n{{end}}"
	data := struct{ Roadmap []string }{Roadmap: []string{"Intro", "Method"}}

	result, err := RenderTemplate(tmpl, data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "- Intro\n- Method\n") {
		t.Errorf("Unexpected roadmap rendering: %s", result)
	}
}

func TestRenderTemplate_InvalidTemplate(t *testing.T) {
	tmpl := "Hello {{.Name" // Missing closing braces
	data := map[string]interface{}{
		"Name": "Alice",
	}

	_, err := RenderTemplate(tmpl, data)
	if err == nil {
		t.Error("Expected error for invalid template, got nil")
	}
}

func TestRenderTemplate_MissingKey(t *testing.T) {
	tmpl := "Hello {{.Name}}"
	data := map[string]interface{}{} // Empty data

	_, err := RenderTemplate(tmpl, data)
	if err == nil {
		t.Error("Expected error for missing key, got nil")
	}
}

func TestRenderTemplate_ForbiddenDirective(t *testing.T) {
	for _, tmpl := range []string{
		`{{define "x"}}y{{end}}`,
		`{{template "x"}}`,
		`{{call .Fn}}`,
	} {
		if _, err := RenderTemplate(tmpl, nil); err == nil {
			t.Errorf("Expected error for %q", tmpl)
		}
	}
}

func TestRenderTemplate_EmptyTemplate(t *testing.T) {
	result, err := RenderTemplate("", map[string]interface{}{"Name": "Alice"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result != "" {
		t.Errorf("Expected empty result, got '%s'", result)
	}
}

func TestRenderTemplate_Cached(t *testing.T) {
	ClearTemplateCache()
	tmpl := "Section {{.N}}"

	for i, want := range []string{"Section 1", "Section 2"} {
		got, err := RenderTemplate(tmpl, map[string]int{"N": i + 1})
		if err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
		if got != want {
			t.Errorf("render %d = %q, want %q", i, got, want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("abc", 5); got != "abc" {
		t.Errorf("TruncateString short = %q", got)
	}
	if got := TruncateString("αβγδε", 2); got != "αβ..." {
		t.Errorf("TruncateString runes = %q", got)
	}
}
