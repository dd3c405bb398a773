// Package jsonutil decodes JSON that passed through a language model:
// raw, wrapped in a markdown code fence, or double-encoded as a JSON
// string.
package jsonutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

var ErrEmptyInput = errors.New("jsonutil: empty input")

// DecodeWithFallback tries the raw text first, then a stripped code
// fence, then a quoted JSON string. The first variant that parses wins.
func DecodeWithFallback(text string, out any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyInput
	}

	candidates := []string{trimmed}
	if fenced, ok := stripCodeFence(trimmed); ok {
		candidates = append(candidates, fenced)
	}
	if unquoted, ok := unquote(trimmed); ok {
		candidates = append(candidates, unquoted)
	}

	var lastErr error
	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("jsonutil: no decodable variant: %w", lastErr)
}

func stripCodeFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	body := strings.TrimPrefix(text, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		body = body[idx+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body), true
}

func unquote(text string) (string, bool) {
	if len(text) < 2 || text[0] != '"' {
		return "", false
	}
	var inner string
	if err := json.Unmarshal([]byte(text), &inner); err != nil {
		return "", false
	}
	return strings.TrimSpace(inner), true
}
