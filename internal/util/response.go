package util

import (
	"regexp"
	"strings"
)

var (
	// Matches <think> and <thinking> blocks emitted by reasoning models
	thinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	// Some Chinese models use their own tag
	chineseThinkTagRegex = regexp.MustCompile(`<思考>([\s\S]*?)</思考>`)
	// Opening or closing markdown fence, optionally tagged latex or tex
	latexFenceRegex = regexp.MustCompile("```(?:latex|tex)?")
)

// TruncationMarker prefixes a previous-section excerpt that was cut from the front
const TruncationMarker = "...(truncated)..."

// SplitReasoning separates reasoning blocks from the final answer.
// Returns (reasoning, answer); reasoning is empty when the response has no think tags.
func SplitReasoning(response string) (string, string) {
	var reasoning []string
	for _, re := range []*regexp.Regexp{thinkTagRegex, chineseThinkTagRegex} {
		for _, match := range re.FindAllStringSubmatch(response, -1) {
			if len(match) > 1 {
				reasoning = append(reasoning, strings.TrimSpace(match[1]))
			}
		}
	}
	if len(reasoning) == 0 {
		return "", strings.TrimSpace(response)
	}

	answer := thinkTagRegex.ReplaceAllString(response, "")
	answer = chineseThinkTagRegex.ReplaceAllString(answer, "")
	return strings.Join(reasoning, "\n\n"), strings.TrimSpace(answer)
}

// CleanLatex strips reasoning blocks and markdown code fences from a section
// response and trims surrounding whitespace. Idempotent.
func CleanLatex(response string) string {
	_, answer := SplitReasoning(response)
	answer = latexFenceRegex.ReplaceAllString(answer, "")
	return strings.TrimSpace(answer)
}

// TrailingWindow returns the last maxRunes runes of s. When s is longer, the
// result is prefixed with TruncationMarker and the second return value is true.
func TrailingWindow(s string, maxRunes int) (string, bool) {
	if maxRunes <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s, false
	}
	return TruncationMarker + string(runes[len(runes)-maxRunes:]), true
}
