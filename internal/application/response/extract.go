package response

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	openFencePattern  = regexp.MustCompile("```(?:json|JSON)?[ \t]*\r?\n?")
	closeFencePattern = regexp.MustCompile("```\r?\n?")
)

// StripFences removes Markdown code fence markers and surrounding whitespace.
func StripFences(text string) string {
	text = openFencePattern.ReplaceAllString(text, "")
	text = closeFencePattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractBalanced returns the first substring of text that starts with open,
// ends at the matching close at depth zero and is valid JSON. Brackets inside
// JSON strings are ignored. Candidates that do not parse are skipped, so
// stray brackets in surrounding prose do not hide a later document.
// accept, when non-nil, can reject a valid candidate to continue the search.
//
// The search does not stop when a start position never balances: an unclosed
// open bracket or a stray quote in leading prose must not hide the document
// that follows. Text with many unmatched open brackets therefore costs
// O(n²) in its length. Model output is bounded by the completion token
// budget, which keeps n in the tens of kilobytes.
func ExtractBalanced(text string, open, close byte, accept func([]byte) bool) (string, bool) {
	for start := strings.IndexByte(text, open); start >= 0; {
		if end, ok := matchClose(text, start, open, close); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) && (accept == nil || accept([]byte(candidate))) {
				return candidate, true
			}
		}

		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchClose scans from text[start] == open to the matching close.
func matchClose(text string, start int, open, close byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
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
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
