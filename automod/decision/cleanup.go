package decision

import (
	"encoding/json"
	"strings"
)

// Strips a triple-backtick fence (and a bare language tag line) from a model reply. Text without a fence is returned trimmed.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		// unterminated fence; take everything after the opener
		end = len(rest)
	}
	body := rest[:end]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		first := strings.TrimSpace(body[:nl])
		if isLangTag(first) {
			body = body[nl+1:]
		}
	} else if isLangTag(strings.TrimSpace(body)) {
		return ""
	}
	return strings.TrimSpace(body)
}

func isLangTag(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+') {
			return false
		}
	}
	return true
}

// Parses a loosely formatted JSON reply: raw text, then fence-stripped text, then the first {...} or [...] span. Returns false if nothing parses.
func ParseLoose(raw string) (any, bool) {
	for _, stage := range []func(string) string{
		strings.TrimSpace,
		StripFence,
		func(s string) string { return jsonSpan(StripFence(s)) },
		jsonSpan,
	} {
		candidate := stage(raw)
		if candidate == "" {
			continue
		}
		if v, ok := decodeJSON(candidate); ok {
			return v, true
		}
	}
	return nil, false
}

func decodeJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// First balanced {...} or [...] span, scanning brackets outside of string literals. Falls back to first-open..last-close when nothing balances.
func jsonSpan(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if end := matchBracket(s, i); end > 0 {
			return s[i : end+1]
		}
	}
	first := strings.IndexAny(s, "{[")
	if first < 0 {
		return ""
	}
	closer := byte('}')
	if s[first] == '[' {
		closer = ']'
	}
	last := strings.LastIndexByte(s, closer)
	if last <= first {
		return ""
	}
	return s[first : last+1]
}

func matchBracket(s string, open int) int {
	depth := 0
	inStr := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inStr {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
