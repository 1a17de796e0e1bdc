package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse marks model output that could not be decoded into the
// expected shape.
var ErrMalformedResponse = errors.New("malformed model response")

// DecodeJSON extracts the first JSON object or array from raw model output
// and unmarshals it into v. Markdown code fences and surrounding prose are
// ignored.
func DecodeJSON(raw string, v any) error {
	body := stripFences(raw)
	start := strings.IndexAny(body, "{[")
	if start < 0 {
		return fmt.Errorf("%w: no JSON value found", ErrMalformedResponse)
	}
	end := matchingClose(body, start)
	if end < 0 {
		return fmt.Errorf("%w: unbalanced JSON value", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // language tag
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// matchingClose returns the index of the bracket closing the one at start,
// skipping brackets inside string literals.
func matchingClose(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
