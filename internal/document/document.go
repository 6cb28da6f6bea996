// Package document assembles drafted sections into a single LaTeX source file.
package document

import (
	"strings"

	"github.com/lamim/paperforge/pkg/models"
)

// DefaultFilename is the name the assembled document is saved under
const DefaultFilename = "paper.tex"

const preamble = `\documentclass{article}
\usepackage{amsmath}
\usepackage{graphicx}
\usepackage{hyperref}

\title{%TITLE%}
\date{\today}

\begin{document}

\maketitle

`

const closing = "\n\n\\end{document}\n"

// Assemble wraps the sections' content, in list order, in a fixed article template.
// Each section is preceded by a marker line naming it. Sections without content
// contribute only their marker.
func Assemble(title string, sections []models.Section) string {
	var b strings.Builder
	b.WriteString(strings.Replace(preamble, "%TITLE%", title, 1))

	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(Marker(s.Title))
		b.WriteString("\n")
		b.WriteString(s.Content)
	}

	b.WriteString(closing)
	return b.String()
}

// Marker returns the comment line that introduces a section in the document
func Marker(title string) string {
	return "% --- Section: " + title + " ---"
}
