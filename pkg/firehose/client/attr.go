package client

import "strings"

// scanAttr does a tolerant substring scan for attr="value" anywhere in raw,
// the same lenient approach codec uses for parsing device XML responses
// (spec §4.3).
func scanAttr(raw, attr string) (string, bool) {
	needle := attr + "=\""
	idx := strings.Index(raw, needle)
	if idx == -1 {
		return "", false
	}
	rest := raw[idx+len(needle):]
	end := strings.IndexByte(rest, '"')
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}
