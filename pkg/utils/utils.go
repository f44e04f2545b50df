package utils

import (
	"strings"
	"unicode/utf8"
)

// ErrJSON produces the standard JSON error body.
func ErrJSON(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// LimitStr returns s truncated to at most n bytes, cut on a character
// boundary, with "..." appended if longer.
func LimitStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// StripThink drops a leading <think>...</think> reasoning block.
func StripThink(s string) string {
	if strings.Contains(s, "<think>") {
		if idx := strings.LastIndex(s, "</think>"); idx != -1 {
			s = s[idx+len("</think>"):]
		}
	}
	return s
}

// CleanJSON removes markdown code blocks from a string to extract raw JSON.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) >= 2 {
			if strings.HasPrefix(lines[0], "```") {
				lines = lines[1:]
			}
			if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
				lines = lines[:len(lines)-1]
			}
			s = strings.Join(lines, "\n")
		}
	}
	return strings.TrimSpace(s)
}

// TrimToObject cuts s down to the outermost {...} span.
// It reports false when no object delimiters are present.
func TrimToObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
