package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoStructuredResult means a response held no decodable JSON of the
// expected shape.
var ErrNoStructuredResult = errors.New("no structured result in response")

// DecodeList extracts a list of T from a model response. The response may
// be the array itself or an object holding it under key. If a strict decode
// fails, balanced arrays and objects embedded in the text are tried in order
// of appearance. Items that do not decode as T are dropped; a list where
// every item is bad counts as no result.
func DecodeList[T any](raw, key string) ([]T, error) {
	if items, ok := decodeList[T](strings.TrimSpace(raw), key); ok {
		return items, nil
	}
	for start := 0; start < len(raw); {
		fragment, at, ok := nextJSONValue(raw, start)
		if !ok {
			break
		}
		if items, ok := decodeList[T](fragment, key); ok {
			return items, nil
		}
		start = at + 1
	}
	return nil, ErrNoStructuredResult
}

func decodeList[T any](s, key string) ([]T, bool) {
	if s == "" {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(s), &elems); err == nil {
		return decodeItems[T](elems)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	if inner, ok := obj[key]; ok {
		if err := json.Unmarshal(inner, &elems); err == nil {
			return decodeItems[T](elems)
		}
	}
	return nil, false
}

func decodeItems[T any](elems []json.RawMessage) ([]T, bool) {
	items := make([]T, 0, len(elems))
	for _, e := range elems {
		var item T
		if err := json.Unmarshal(e, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 && len(elems) > 0 {
		return nil, false
	}
	return items, true
}

// nextJSONValue returns the first balanced [...] or {...} substring of s
// beginning at or after from, and the index it starts at. Brackets inside
// string literals are skipped.
func nextJSONValue(s string, from int) (string, int, bool) {
	for start := from; start < len(s); start++ {
		if s[start] != '[' && s[start] != '{' {
			continue
		}
		if end, ok := matchBracket(s, start); ok {
			return s[start : end+1], start, true
		}
	}
	return "", 0, false
}

func matchBracket(s string, start int) (int, bool) {
	var stack []byte
	inString, escaped := false, false
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
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) == 0 {
				return 0, false
			}
			open := stack[len(stack)-1]
			if (open == '[') != (c == ']') {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
