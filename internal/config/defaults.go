package config

// GetDefaultOutlineTemplate returns the default template for outline generation.
// Fields: Title, Tone, Template, TargetLength, Sketch.
func GetDefaultOutlineTemplate() string {
	return `You are an expert academic editor. I have a sketch for a research paper/document.
Please break this sketch down into a logical sequence of sections.

**Constraint:**
The user wants a document of type: "{{.TargetLength}}".
- If it is a "Dissertation" or "Extended Report", generate a comprehensive list of sections (likely 10-20 sections including sub-chapters).
- If it is a "Short Letter", keep it concise (4-5 sections).

The Title of the paper is: {{.Title}}
Tone: {{.Tone}}
Template Style: {{.Template}}

Here is the raw sketch:
{{.Sketch}}

Return a JSON array of sections. Each section must have a "title" and a "description".
The "description" should contain the specific points from the sketch that belong in that section.
If a part of the sketch is general, assign it to the most relevant section (e.g., Introduction or Methodology).

Ensure the flow is logical.

Return ONLY a valid JSON array (no markdown, no additional text):
[{"title": "Section title", "description": "What goes in this section"}, ...]`
}

// GetDefaultSectionTemplate returns the default template for drafting one section.
// Fields: Title, Tone, Template, TargetLength, Roadmap, SectionTitle,
// SectionDescription, PreviousContext.
func GetDefaultSectionTemplate() string {
	return `You are a professional mathematician and researcher writing a specific section of a paper.

**Paper Metadata:**
Title: {{.Title}}
Tone: {{.Tone}}
Style: {{.Template}}
Target Scope: {{.TargetLength}}

**Document Structure (Your Roadmap):**
{{.Roadmap}}

**Current Task:**
Write the LaTeX content for the section titled: "{{.SectionTitle}}".

**Instructions for this section (from sketch):**
{{.SectionDescription}}

**Context (End of Previous Section):**
{{.PreviousContext}}

**CRITICAL WRITING RULES:**
1. **Mathematician Style:** When presenting math, do NOT bury equations in verbose paragraphs. Use "equation after equation" style.
   - Use \begin{align} or \begin{align*} for derivations.
   - Show steps clearly in a vertical flow.
   - Avoid "sketchy" lines. Be rigorous.
2. **Fleshing Out:** Your job is to polish and expand the user's sketch into full academic prose.
   - If the user provided a formula in plain text, convert it to proper LaTeX.
   - If the user's sketch is brief, expand on the *implications* and *context* of that point, but DO NOT invent new experimental data or results unless told to "fill in gaps".
3. **LaTeX Format:**
   - Output ONLY the raw LaTeX content for this section. Do NOT wrap it in \begin{document}.
   - Use standard LaTeX commands (\section, \cite, \ref).
4. **Flow:** Ensure the opening sentence connects smoothly to the previous section context provided.`
}

// GetDefaultOutlineSystemPrompt returns the system prompt for outline generation
func GetDefaultOutlineSystemPrompt() string {
	return `You are an academic editor who structures research sketches into paper outlines. You answer with JSON only.`
}

// GetDefaultSectionSystemPrompt returns the system prompt for section drafting
func GetDefaultSectionSystemPrompt() string {
	return `You are a careful research writer. You answer with raw LaTeX body text only, never a full document and never markdown.`
}
