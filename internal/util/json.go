package util

import (
	"regexp"
	"strings"
)

// Precompiled regex patterns for performance (compiled once at package init)
var (
	jsonCodeBlockRegex = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
)

// ExtractJSON extracts JSON content from a response that may contain markdown code blocks
// or prose around the payload. Whichever of an array or an object opens first wins.
// Truncated payloads are returned as-is so that callers fail loudly instead of
// accepting a partial structure.
func ExtractJSON(s string) string {
	matches := jsonCodeBlockRegex.FindStringSubmatch(s)
	if len(matches) > 1 {
		s = strings.TrimSpace(matches[1])
	} else {
		s = strings.TrimSpace(s)
	}

	arrayStart := strings.Index(s, "[")
	objectStart := strings.Index(s, "{")

	start, open, closing := -1, '[', ']'
	switch {
	case arrayStart != -1 && (objectStart == -1 || arrayStart < objectStart):
		start = arrayStart
	case objectStart != -1:
		start, open, closing = objectStart, '{', '}'
	}
	if start == -1 {
		return s
	}

	end := findMatchingBracket(s, start, open, closing)
	if end == -1 {
		return s[start:]
	}
	return s[start : end+1]
}

// findMatchingBracket finds the matching closing bracket for an opening bracket
// using proper bracket matching that handles escaped quotes and strings
// Returns -1 if no matching bracket is found
func findMatchingBracket(s string, startPos int, openChar, closeChar rune) int {
	count := 0
	inString := false
	escaped := false

	for i := startPos; i < len(s); i++ {
		ch := rune(s[i])

		if escaped {
			escaped = false
			continue
		}

		if ch == '\\' {
			escaped = true
			continue
		}

		if ch == '"' {
			inString = !inString
			continue
		}

		// Only count brackets outside of strings
		if !inString {
			if ch == openChar {
				count++
			} else if ch == closeChar {
				count--
				if count == 0 {
					return i
				}
			}
		}
	}

	return -1
}

// countUnmatchedBraces returns how many openChar brackets are left unclosed
func countUnmatchedBraces(s string, openChar, closeChar rune) int {
	count := 0
	inString := false
	escaped := false

	for _, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if ch == openChar {
			count++
		} else if ch == closeChar && count > 0 {
			count--
		}
	}

	return count
}

// IsTruncatedJSON reports whether s opens more brackets than it closes
func IsTruncatedJSON(s string) bool {
	return countUnmatchedBraces(s, '[', ']') > 0 || countUnmatchedBraces(s, '{', '}') > 0
}

// RepairJSON fixes common syntax slips in LLM-produced JSON: literal newlines in
// strings, trailing or doubled commas, and missing commas between adjacent values.
func RepairJSON(s string) string {
	s = SanitizeJSON(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	valueEnded := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
				valueEnded = true
			}
			continue
		}

		switch ch {
		case ' ', '\t', '\n', '\r':
			b.WriteByte(ch)
		case ',':
			next := nextSignificant(s, i+1)
			if next == ']' || next == '}' || next == ',' || next == 0 {
				continue
			}
			valueEnded = false
			b.WriteByte(ch)
		case '"', '{', '[':
			if valueEnded {
				b.WriteByte(',')
			}
			valueEnded = false
			if ch == '"' {
				inString = true
			}
			b.WriteByte(ch)
		case '}', ']':
			valueEnded = true
			b.WriteByte(ch)
		default:
			valueEnded = false
			b.WriteByte(ch)
		}
	}

	return b.String()
}

func nextSignificant(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return s[i]
		}
	}
	return 0
}

// SanitizeJSON fixes common JSON issues from LLM responses
// Specifically handles unescaped newlines in string values
func SanitizeJSON(s string) string {
	var result strings.Builder
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			result.WriteByte(ch)
			escaped = true
			continue
		}

		if ch == '"' {
			result.WriteByte(ch)
			inString = !inString
			continue
		}

		// Replace literal newlines in strings with \n
		if inString && (ch == '\n' || ch == '\r') {
			result.WriteString("\\n")
			// Skip \r if followed by \n
			if ch == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}

		result.WriteByte(ch)
	}

	return result.String()
}
