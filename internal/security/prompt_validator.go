package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxPromptLength applies when the validator is built with a
// non-positive limit.
const DefaultMaxPromptLength = 2000

// dangerousPatterns flag shell commands, sensitive paths, code execution and
// instruction-override attempts in an inbound query.
var dangerousPatterns = []*regexp.Regexp{
	// Command execution
	regexp.MustCompile(`(?i)\brm\s+-`),
	regexp.MustCompile(`(?i)\brm\s+/`),
	regexp.MustCompile(`(?i)\bcp\s+.*\s+/etc`),
	regexp.MustCompile(`(?i)\bmv\s+.*\s+/etc`),
	regexp.MustCompile(`(?i)\bcurl\s+(-\w+\s+)*https?://`),
	regexp.MustCompile(`(?i)\bwget\s+(-\w+\s+)*https?://`),
	regexp.MustCompile(`(?i)\bnc\s+-`),
	regexp.MustCompile(`(?i)\bbash\s+-`),
	regexp.MustCompile(`(?i)\bsh\s+-c\b`),
	regexp.MustCompile(`(?i)\bsudo\s+`),

	// Sensitive paths
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`/etc/passwd`),
	regexp.MustCompile(`/etc/shadow`),
	regexp.MustCompile(`/proc/self`),
	regexp.MustCompile(`id_rsa`),
	regexp.MustCompile(`\.ssh/`),

	// Code execution
	regexp.MustCompile(`(?i)\beval\(`),
	regexp.MustCompile(`(?i)\bexec\(`),
	regexp.MustCompile(`(?i)\bsystem\(`),
	regexp.MustCompile(`(?i)__import__\s*\(`),
	regexp.MustCompile(`(?i)\bsubprocess\.`),
	regexp.MustCompile(`(?i)\bos\.system\s*\(`),
	regexp.MustCompile(`(?i)\bpopen\b`),

	// Prompt injection
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(the\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(the\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(the\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)override\s+(all\s+)?(the\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)new\s+context\s*:`),
	regexp.MustCompile(`(?i)change\s+context\s*:`),
	regexp.MustCompile(`(?i)instead\s+of\s+the\s+above`),
	// A user turn that forges loop markers would be parsed as model output.
	regexp.MustCompile(`(?im)^\s*(final answer|observation)\s*:`),
}

var suspiciousIndicators = []string{
	"import os", "import sys", "__import__",
}

// PromptValidator rejects inbound queries that are empty, too long or carry
// injection patterns.
type PromptValidator struct {
	maxLength int
}

func NewPromptValidator(maxLength int) *PromptValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxPromptLength
	}
	return &PromptValidator{maxLength: maxLength}
}

// ValidationResult contains validation outcome
type ValidationResult struct {
	Valid   bool
	Message string
}

// MaxLength returns the configured limit in characters.
func (v *PromptValidator) MaxLength() int {
	return v.maxLength
}

// Validate checks a prompt for dangerous patterns
func (v *PromptValidator) Validate(prompt string) ValidationResult {
	if strings.TrimSpace(prompt) == "" {
		return ValidationResult{Valid: false, Message: "query cannot be empty"}
	}

	if n := utf8.RuneCountInString(prompt); n > v.maxLength {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("query too long: %d chars (max %d)", n, v.maxLength),
		}
	}

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(prompt) {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("dangerous pattern detected: %s", pattern.String()),
			}
		}
	}

	lower := strings.ToLower(prompt)
	for _, indicator := range suspiciousIndicators {
		if strings.Contains(lower, indicator) {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("suspicious instruction indicator detected: %q", indicator),
			}
		}
	}

	return ValidationResult{Valid: true, Message: "ok"}
}
