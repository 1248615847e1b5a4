package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// indentJSON renders v the way observations show structured data.
func indentJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(b), nil
}

// splitQualified splits "a.b" into its parts; b is empty when there is no dot.
func splitQualified(s string) (string, string) {
	s = strings.Trim(strings.TrimSpace(s), "`")
	a, b, _ := strings.Cut(s, ".")
	return strings.TrimSpace(a), strings.TrimSpace(b)
}
