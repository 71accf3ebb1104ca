package logging

import (
	"regexp"
	"strings"
)

// Sensitive field names that should be redacted.
var sensitiveFields = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"credential",
}

// Patterns for secrets embedded in free text, such as an address with
// userinfo.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|secret|token)=("[^"]*"|'[^']*'|\S+)`),
	regexp.MustCompile(`://([^:/@\s]+):[^@/\s]+@`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	s = secretPatterns[0].ReplaceAllString(s, "${1}="+RedactedValue)
	return secretPatterns[1].ReplaceAllString(s, "://${1}:"+RedactedValue+"@")
}

// RedactMap redacts sensitive fields in a nested settings map, returning a
// copy.
func RedactMap(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		switch value := v.(type) {
		case map[string]any:
			result[k] = RedactMap(value)
		case string:
			if IsSensitiveField(k) && value != "" {
				result[k] = RedactedValue
			} else {
				result[k] = Redact(value)
			}
		default:
			if IsSensitiveField(k) {
				result[k] = RedactedValue
			} else {
				result[k] = v
			}
		}
	}
	return result
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}
	return false
}
