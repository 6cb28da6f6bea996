// Package preview renders drafted LaTeX sections as standalone HTML pages.
//
// Prose is converted to Markdown and rendered with goldmark; math is lifted out
// before conversion and typeset in the browser by KaTeX.
package preview

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lamim/paperforge/pkg/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	mathEnvs = []string{"equation", "align", "gather", "multline", "eqnarray"}

	mathPatterns = func() []*regexp.Regexp {
		var out []*regexp.Regexp
		for _, env := range mathEnvs {
			out = append(out, regexp.MustCompile(`(?s)\\begin\{`+env+`\*?\}.*?\\end\{`+env+`\*?\}`))
		}
		return append(out,
			regexp.MustCompile(`(?s)\$\$.+?\$\$`),
			regexp.MustCompile(`(?s)\\\[.+?\\\]`),
			regexp.MustCompile(`(?s)\\\(.+?\\\)`),
			regexp.MustCompile(`\$[^$\n]+?\$`),
		)
	}()

	placeholderRegex = regexp.MustCompile(`PFMATH(\d+)END`)
	commentRegex     = regexp.MustCompile(`(?m)^[ \t]*%.*$`)
	headingRegexes   = []struct {
		re     *regexp.Regexp
		prefix string
	}{
		{regexp.MustCompile(`\\section\*?\{([^{}]*)\}`), "## "},
		{regexp.MustCompile(`\\subsection\*?\{([^{}]*)\}`), "### "},
		{regexp.MustCompile(`\\subsubsection\*?\{([^{}]*)\}`), "#### "},
	}
	inlineRules = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`\\paragraph\{([^{}]*)\}`), "**$1** "},
		{regexp.MustCompile(`\\textbf\{([^{}]*)\}`), "**$1**"},
		{regexp.MustCompile(`\\(?:textit|emph)\{([^{}]*)\}`), "*$1*"},
		{regexp.MustCompile(`\\texttt\{([^{}]*)\}`), "`$1`"},
		{regexp.MustCompile(`\\cite[tp]?\{([^{}]*)\}`), "[$1]"},
		{regexp.MustCompile(`\\(?:eq)?ref\{([^{}]*)\}`), "$1"},
		{regexp.MustCompile(`\\label\{[^{}]*\}`), ""},
		{regexp.MustCompile(`\\(?:begin|end)\{(?:itemize|enumerate|description)\}`), ""},
		{regexp.MustCompile(`(?m)^[ \t]*\\item[ \t]*`), "- "},
		{regexp.MustCompile(`(?m)\\\\[ \t]*$`), ""},
	}
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/katex.min.css">
<script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/katex.min.js"></script>
<script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/contrib/auto-render.min.js"
  onload="renderMathInElement(document.body, {delimiters: [
    {left: '$$', right: '$$', display: true},
    {left: '\\[', right: '\\]', display: true},
    {left: '\\(', right: '\\)', display: false},
    {left: '$', right: '$', display: false},
    {left: '\\begin{equation}', right: '\\end{equation}', display: true},
    {left: '\\begin{equation*}', right: '\\end{equation*}', display: true},
    {left: '\\begin{align}', right: '\\end{align}', display: true},
    {left: '\\begin{align*}', right: '\\end{align*}', display: true},
    {left: '\\begin{gather}', right: '\\end{gather}', display: true},
    {left: '\\begin{gather*}', right: '\\end{gather*}', display: true},
    {left: '\\begin{multline}', right: '\\end{multline}', display: true},
    {left: '\\begin{multline*}', right: '\\end{multline*}', display: true},
    {left: '\\begin{eqnarray}', right: '\\end{eqnarray}', display: true},
    {left: '\\begin{eqnarray*}', right: '\\end{eqnarray*}', display: true},
  ], throwOnError: false});"></script>
<style>
body { max-width: 46rem; margin: 2rem auto; padding: 0 1rem; font-family: Georgia, serif; line-height: 1.6; color: #1e293b; }
.status { font-family: sans-serif; font-size: 0.85rem; color: #64748b; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="status">{{.Status}}</p>
{{.Body}}
</body>
</html>
`

var page = template.Must(template.New("preview").Parse(pageTemplate))

// Renderer turns section content into HTML
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with GitHub-flavoured Markdown enabled
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Body converts LaTeX section content into an HTML fragment. Math is passed
// through verbatim, HTML-escaped, for KaTeX to typeset.
func (r *Renderer) Body(latex string) (string, error) {
	text, math := extractMath(latex)
	text = ToMarkdown(text)

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	out := placeholderRegex.ReplaceAllStringFunc(buf.String(), func(m string) string {
		var i int
		if _, err := fmt.Sscanf(m, "PFMATH%dEND", &i); err != nil || i >= len(math) {
			return m
		}
		return html.EscapeString(math[i])
	})
	return out, nil
}

// Page renders a complete HTML document for one section
func (r *Renderer) Page(section models.Section) (string, error) {
	body, err := r.Body(section.Content)
	if err != nil {
		return "", err
	}

	status := string(section.Status)
	if section.Error != "" {
		status += ": " + section.Error
	}

	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Title  string
		Status string
		Body   template.HTML
	}{
		Title:  section.Title,
		Status: status,
		Body:   template.HTML(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render preview page: %w", err)
	}
	return buf.String(), nil
}

// WriteSection renders section into dir and returns the file path. index is the
// section's zero-based position in the outline.
func (r *Renderer) WriteSection(dir string, index int, section models.Section) (string, error) {
	content, err := r.Page(section)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create preview directory: %w", err)
	}

	path := filepath.Join(dir, Filename(index, section.Title))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write preview: %w", err)
	}
	return path, nil
}

// Filename returns "<nn>-<slug>.html" for the section at index
func Filename(index int, title string) string {
	return fmt.Sprintf("%02d-%s.html", index+1, slug(title))
}

// ToMarkdown rewrites common LaTeX text markup as Markdown. Math must already be removed.
func ToMarkdown(latex string) string {
	s := commentRegex.ReplaceAllString(latex, "")
	for _, h := range headingRegexes {
		s = h.re.ReplaceAllString(s, "\n"+h.prefix+"$1\n")
	}
	for _, rule := range inlineRules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	return strings.TrimSpace(s)
}

func extractMath(latex string) (string, []string) {
	var math []string
	for _, re := range mathPatterns {
		latex = re.ReplaceAllStringFunc(latex, func(m string) string {
			math = append(math, m)
			return fmt.Sprintf("PFMATH%dEND", len(math)-1)
		})
	}
	return latex, math
}

func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "section"
	}
	return s
}
