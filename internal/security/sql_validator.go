package security

import (
	"regexp"
	"strings"
)

// sqlDangerousPatterns catch stacked statements, file access, timing probes
// and tautologies in agent-issued SQL.
var sqlDangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i);\s*DROP\s+`),
	regexp.MustCompile(`(?i);\s*DELETE\s+`),
	regexp.MustCompile(`(?i);\s*INSERT\s+`),
	regexp.MustCompile(`(?i);\s*UPDATE\s+`),
	regexp.MustCompile(`(?i);\s*ALTER\s+`),
	regexp.MustCompile(`(?i);\s*CREATE\s+`),
	regexp.MustCompile(`(?i);\s*TRUNCATE\s+`),
	regexp.MustCompile(`(?i);\s*EXEC\s*\(?`),
	regexp.MustCompile(`(?i);\s*EXECUTE\s+`),
	regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`), // UNION ALL SELECT is allowed; UNION SELECT is injection
	regexp.MustCompile(`(?i)\bINTO\s+OUTFILE\b`),
	regexp.MustCompile(`(?i)\bINTO\s+DUMPFILE\b`),
	regexp.MustCompile(`(?i)\bLOAD\s+DATA\b`),
	regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`),
	regexp.MustCompile(`(?i)\bBENCHMARK\s*\(`),
	regexp.MustCompile(`(?i)\bSLEEP\s*\(`),
	regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`),
	regexp.MustCompile(`'.*--`),    // comment injection after string literal
	regexp.MustCompile(`;\s*--`),   // statement terminator + comment
	regexp.MustCompile(`/\*.*?\*/`),
	regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\band\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\bor\s+'1'\s*=\s*'1'`),
	regexp.MustCompile(`(?i)\band\s+'1'\s*=\s*'1'`),
}

// SQLValidator admits a single read-only SELECT or WITH statement.
type SQLValidator struct{}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{}
}

// Validate returns an error string if SQL is invalid, or empty string if OK
func (v *SQLValidator) Validate(sql string) string {
	if strings.TrimSpace(sql) == "" {
		return "SQL cannot be empty"
	}

	trimmed := strings.TrimSpace(sql)
	upperSQL := strings.ToUpper(trimmed)

	// Must start with SELECT or WITH (CTEs)
	if !strings.HasPrefix(upperSQL, "SELECT") && !strings.HasPrefix(upperSQL, "WITH") {
		return "only SELECT queries are allowed"
	}

	if strings.Contains(strings.TrimRight(trimmed, "; \n\t"), ";") {
		return "multiple statements are not allowed"
	}

	// Check dangerous patterns
	for _, pattern := range sqlDangerousPatterns {
		if pattern.MatchString(sql) {
			return "SQL injection pattern detected: " + pattern.String()
		}
	}

	return ""
}
