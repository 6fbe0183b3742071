package ai

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// decodeJSON parses a model reply into v after cleanJSON.
func decodeJSON(task, text string, v any) error {
	if err := json.Unmarshal([]byte(cleanJSON(text)), v); err != nil {
		return eris.Wrapf(err, "ai: parse %s response", task)
	}
	return nil
}

// cleanJSON strips markdown fences, extracts the outermost JSON object, and
// repairs truncation.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	text = text[start:]
	if end := strings.LastIndex(text, "}"); end >= 0 && balanced(text[:end+1]) {
		text = text[:end+1]
	}

	return repairTruncatedJSON(strings.TrimSpace(text))
}

// balanced reports whether every brace and bracket outside strings is closed.
func balanced(text string) bool {
	return len(openDelimiters(text)) == 0
}

// repairTruncatedJSON closes an unterminated string and any unclosed
// brackets or braces, dropping a dangling comma or key.
func repairTruncatedJSON(text string) string {
	if text == "" {
		return text
	}
	stack := openDelimiters(text)
	if inOpenString(text) {
		text += `"`
	}
	if len(stack) == 0 {
		return text
	}
	text = strings.TrimRight(text, " \t\r\n")
	text = strings.TrimSuffix(text, ",")
	text = strings.TrimSuffix(text, ":")
	for i := len(stack) - 1; i >= 0; i-- {
		text += string(stack[i])
	}
	return text
}

func openDelimiters(text string) []byte {
	var stack []byte
	inString, escape := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return stack
}

func inOpenString(text string) bool {
	inString, escape := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case escape:
			escape = false
		case c == '\\' && inString:
			escape = true
		case c == '"':
			inString = !inString
		}
	}
	return inString
}
