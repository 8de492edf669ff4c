package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeResult parses model output as a ParseResult. Even under strict
// schema mode some backends wrap the object in markdown code fences or
// surrounding prose, so decoding extracts the outermost JSON object rather
// than assuming well-formed output.
func DecodeResult(content string) (*ParseResult, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Raw: json.RawMessage(raw)}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return nil, fmt.Errorf("decode parse result: %w", err)
	}
	return result, nil
}

func extractJSONObject(content string) (string, error) {
	s := strings.TrimSpace(content)

	// Strip markdown fences: ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return s[start : end+1], nil
}
