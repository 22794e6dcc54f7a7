// Package extract recovers structured records from free-form model output.
// Parsing strategies are applied in order and are total: on any failure the
// extractors report "no data" instead of an error, which callers treat as a
// normal no-progress step.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencedBlockPattern matches the first fenced code block, with or without
// a language tag: ```json ... ``` or ``` ... ```.
var fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// trailingCommaPattern matches trailing commas before ] or }.
var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// candidates returns JSON candidate substrings of raw in strategy order:
// the whole trimmed output, each balanced {...} or [...] span, and the
// body of the first fenced code block. Later spans matter: prose often
// contains a small brace fragment ahead of the real payload, and the
// extractors keep trying candidates until one carries usable fields.
func candidates(raw string) []string {
	var out []string

	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		out = append(out, trimmed)
	}

	out = append(out, balancedSpans(raw)...)

	if matches := fencedBlockPattern.FindStringSubmatch(raw); len(matches) > 1 {
		if block := strings.TrimSpace(matches[1]); block != "" {
			out = append(out, block)
		}
	}

	return out
}

// decodeAll parses each candidate in order and returns every one that
// decodes to a JSON object or array after cleanup. Extractors accept the
// first decoded candidate that also carries the fields they require, so
// an earlier candidate with the wrong shape never masks a later one.
func decodeAll(raw string) []any {
	var out []any
	for _, candidate := range candidates(raw) {
		cleaned := cleanJSON(candidate)

		var v any
		if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
			continue
		}

		// Only objects and arrays can carry the shapes we extract;
		// a bare string or number parsing successfully is noise.
		switch v.(type) {
		case map[string]any, []any:
			out = append(out, v)
		}
	}
	return out
}

// balancedSpans returns the successive non-overlapping balanced {...} and
// [...] spans in s, tracking JSON string literals inside a span so braces
// inside strings do not count. An unbalanced opener is skipped so spans
// after it are still found.
func balancedSpans(s string) []string {
	var spans []string

	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if end := spanEnd(s, i); end > i {
			spans = append(spans, s[i:end+1])
			i = end
		}
	}

	return spans
}

// spanEnd returns the index of the bracket closing the span opened at
// start, or -1 when the span never closes.
func spanEnd(s string, start int) int {
	open := s[start]
	close := byte('}')
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// cleanJSON removes JavaScript-style line comments and trailing commas,
// both common artifacts in model-produced JSON.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")

	return trailingCommaPattern.ReplaceAllString(result, "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting
// string values (so "http://example.com" survives intact).
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
