package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRe      = regexp.MustCompile(`(?i)email`)
	phoneRe      = regexp.MustCompile(`(?i)phone`)
	ssnRe        = regexp.MustCompile(`(?i)ssn|social_security`)
	creditCardRe = regexp.MustCompile(`(?i)credit_card|card_number`)
	fullMaskRe   = regexp.MustCompile(`(?i)password|secret|token|api_key|access_key|private_key`)
)

// DataMasker masks sensitive column values in rows handed to the model.
type DataMasker struct {
	sensitiveColumns []string
}

func NewDataMasker(sensitiveColumns []string) *DataMasker {
	lower := make([]string, len(sensitiveColumns))
	for i, c := range sensitiveColumns {
		lower[i] = strings.ToLower(c)
	}
	return &DataMasker{sensitiveColumns: lower}
}

// MaskRows returns masked copies of rows. Nested records are masked by
// their own field names.
func (m *DataMasker) MaskRows(rows []map[string]interface{}) []map[string]interface{} {
	masked := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		masked[i] = m.maskRow(row)
	}
	return masked
}

func (m *DataMasker) maskRow(row map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(row))
	for col, val := range row {
		switch v := val.(type) {
		case nil:
			result[col] = nil
		case map[string]interface{}:
			result[col] = m.maskRow(v)
		case []interface{}:
			result[col] = m.maskList(col, v)
		default:
			if m.isSensitive(col) {
				result[col] = m.maskValue(col, fmt.Sprintf("%v", val))
			} else {
				result[col] = val
			}
		}
	}
	return result
}

func (m *DataMasker) maskList(col string, vals []interface{}) []interface{} {
	out := make([]interface{}, len(vals))
	for i, val := range vals {
		switch v := val.(type) {
		case map[string]interface{}:
			out[i] = m.maskRow(v)
		case nil:
			out[i] = nil
		default:
			if m.isSensitive(col) {
				out[i] = m.maskValue(col, fmt.Sprintf("%v", val))
			} else {
				out[i] = val
			}
		}
	}
	return out
}

func (m *DataMasker) isSensitive(col string) bool {
	lower := strings.ToLower(col)
	for _, s := range m.sensitiveColumns {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return emailRe.MatchString(col) || phoneRe.MatchString(col) ||
		ssnRe.MatchString(col) || creditCardRe.MatchString(col) || fullMaskRe.MatchString(col)
}

func (m *DataMasker) maskValue(col, val string) string {
	switch {
	case emailRe.MatchString(col):
		return maskEmail(val)
	case phoneRe.MatchString(col):
		return maskPhone(val)
	case ssnRe.MatchString(col):
		return "***-**-****"
	case creditCardRe.MatchString(col):
		return maskCreditCard(val)
	default:
		return "***"
	}
}

// maskEmail: "john.doe@example.com" → "jo***@***.com"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}
	visible := min(2, len(local))
	ext := domain[strings.LastIndex(domain, ".")+1:]
	return fmt.Sprintf("%s***@***.%s", local[:visible], ext)
}

// maskPhone: any phone → "***-***-1234"
func maskPhone(phone string) string {
	digits := digitsOf(phone)
	if len(digits) < 4 {
		return "***-***-****"
	}
	return "***-***-" + digits[len(digits)-4:]
}

// maskCreditCard: "4111111111111111" → "****-****-****-1111"
func maskCreditCard(cc string) string {
	digits := digitsOf(cc)
	if len(digits) < 4 {
		return "****-****-****-****"
	}
	return "****-****-****-" + digits[len(digits)-4:]
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
