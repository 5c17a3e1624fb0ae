// Package jsonx pulls JSON values out of free-form model output.
package jsonx

import (
	"encoding/json"
	"strings"
)

// Extract returns the greedy span from the first '{' to the last '}', or,
// when the text holds no object, from the first '[' to the last ']'. The span
// is not checked for validity and may include prose between two blocks.
func Extract(raw string) (string, bool) {
	if span, ok := greedySpan(raw, '{', '}'); ok {
		return span, true
	}
	return greedySpan(raw, '[', ']')
}

// Parse decodes the first JSON value in raw that fits T. Candidates are tried
// in order: greedy object span, first complete object, greedy array span,
// first complete array. If none decodes, fallback is returned unchanged.
func Parse[T any](raw string, fallback T) T {
	for _, delims := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		if span, ok := greedySpan(raw, delims[0], delims[1]); ok {
			var out T
			if err := json.Unmarshal([]byte(span), &out); err == nil {
				return out
			}
		}
		if out, ok := decodeFirst[T](raw, delims[0]); ok {
			return out
		}
	}
	return fallback
}

func greedySpan(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(raw, close)
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// maxDecodeStarts bounds the work spent on adversarial input.
const maxDecodeStarts = 64

// decodeFirst streams one value from each occurrence of open until one
// decodes into a T. Text after the value is ignored.
func decodeFirst[T any](raw string, open byte) (T, bool) {
	offset := 0
	for tries := 0; tries < maxDecodeStarts && offset < len(raw); tries++ {
		idx := strings.IndexByte(raw[offset:], open)
		if idx < 0 {
			break
		}
		start := offset + idx
		var out T
		if err := json.NewDecoder(strings.NewReader(raw[start:])).Decode(&out); err == nil {
			return out, true
		}
		offset = start + 1
	}
	var zero T
	return zero, false
}
