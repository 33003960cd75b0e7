package executor

import "strings"

// redactedPlaceholder replaces every sensitive value in telemetry.
const redactedPlaceholder = "[REDACTED]"

// sensitiveFragments are matched case-insensitively against parameter
// keys. Any key containing one of them has its value redacted.
var sensitiveFragments = []string{
	"token",
	"secret",
	"key",
	"password",
	"credential",
	"auth",
	"signature",
}

// Sanitize returns a deep copy of params safe for logging and event
// publication. Values under sensitive keys are replaced at any nesting
// depth; the input is never mutated.
func Sanitize(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	sanitized := make(map[string]any, len(params))
	for key, value := range params {
		if isSensitiveKey(key) {
			sanitized[key] = redactedPlaceholder
			continue
		}
		sanitized[key] = sanitizeValue(value)
	}
	return sanitized
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Sanitize(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = sanitizeValue(item)
		}
		return items
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}
