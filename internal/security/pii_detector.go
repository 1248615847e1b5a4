package security

import (
	"strings"
)

// PIIDetector blocks inbound queries that mention sensitive keywords.
type PIIDetector struct {
	keywords []string
}

func NewPIIDetector(keywords []string) *PIIDetector {
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return &PIIDetector{keywords: lower}
}

// Detect returns true and the matched keyword if PII is found in text.
// Keywords match on word boundaries so "pin" does not fire on "ping".
func (d *PIIDetector) Detect(text string) (bool, string) {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if containsWord(lower, kw) {
			return true, kw
		}
	}
	return false, ""
}

func containsWord(s, word string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if (i == 0 || !isWordByte(s[i-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
