package llmclient

import "strings"

// extractJSON pulls a JSON object out of a raw model response that may wrap
// it in prose or a fenced code block, before handing it to RepairJSON.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}

	if fenced := extractFencedBlock(trimmed); fenced != "" {
		return fenced
	}

	return extractByBraceMatching(trimmed)
}

func extractFencedBlock(s string) string {
	markers := []string{"```json", "```JSON", "```"}
	for _, marker := range markers {
		start := strings.Index(s, marker)
		if start == -1 {
			continue
		}
		bodyStart := start + len(marker)
		end := strings.Index(s[bodyStart:], "```")
		if end == -1 {
			continue
		}
		body := strings.TrimSpace(s[bodyStart : bodyStart+end])
		if body != "" {
			return body
		}
	}
	return ""
}

func extractByBraceMatching(s string) string {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}

	open := rune(s[start])
	closeRune := '}'
	if open == '[' {
		closeRune = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := rune(s[i])
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closeRune:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return s[start:]
}
