package governance

import "strings"

// SensitiveKeys is the case-insensitive set of map keys whose values are
// replaced wholesale during output redaction.
var SensitiveKeys = map[string]struct{}{
	"password":    {},
	"secret":      {},
	"token":       {},
	"api_key":     {},
	"credentials": {},
}

const redactedPlaceholder = "***REDACTED***"

// Redact recursively walks a decoded JSON-shaped value (maps, slices,
// scalars) and replaces the value of any map key matching SensitiveKeys
// (case-insensitive) with redactedPlaceholder. It is idempotent: running it
// twice over its own output produces the same result, since the placeholder
// itself carries no sensitive-key name.
func Redact(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if isSensitiveKey(k) {
				out[k] = redactedPlaceholder
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Redact(item)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	_, ok := SensitiveKeys[strings.ToLower(key)]
	return ok
}
