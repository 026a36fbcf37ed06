package ai

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
)

// ErrNoArray is returned when a reply contains no JSON array literal.
var ErrNoArray = errors.New("no JSON array in model reply")

// ExtractIndexArray returns the integers of the first top-level JSON array in
// text. Surrounding prose and markdown fences are ignored, as are array
// elements that are not whole numbers.
func ExtractIndexArray(text string) ([]int, error) {
	raw, ok := FirstArray(text)
	if !ok {
		return nil, ErrNoArray
	}

	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, ErrNoArray
	}

	indices := make([]int, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case float64:
			if n == math.Trunc(n) {
				indices = append(indices, int(n))
			}
		case string:
			var i int
			if err := json.Unmarshal([]byte(strings.TrimSpace(n)), &i); err == nil {
				indices = append(indices, i)
			}
		}
	}
	return indices, nil
}

// FirstArray finds the first bracket-balanced span in text that decodes as a
// JSON array. Brackets inside JSON strings do not count toward the balance.
func FirstArray(text string) (string, bool) {
	for start := strings.IndexByte(text, '['); start >= 0; {
		if end, ok := matchBracket(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBracket(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
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
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
