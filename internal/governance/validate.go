package governance

import "github.com/netsuite-assist/coordinator/pkg/models"

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ValidateParams drops any argument key not present in the descriptor's
// Params map, then injects a default "limit" (100) when the descriptor
// declares one and the caller omitted it, capping any caller-supplied
// value at 1000. This runs after the rate check and before the pre-exec
// audit, per the governance ordering invariant.
func ValidateParams(desc models.ToolDescriptor, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if _, allowed := desc.Params[k]; allowed {
			out[k] = v
		}
	}

	if spec, ok := desc.Params["limit"]; ok {
		applyLimit(out, spec)
	}

	return out
}

func applyLimit(out map[string]any, spec models.ParamSpec) {
	raw, present := out["limit"]
	if !present {
		if spec.Default != nil {
			out["limit"] = spec.Default
		} else {
			out["limit"] = defaultLimit
		}
		return
	}

	n, ok := toInt(raw)
	if !ok {
		out["limit"] = defaultLimit
		return
	}

	cap := maxLimit
	if spec.Max != nil {
		if m, ok := toInt(spec.Max); ok {
			cap = m
		}
	}
	if n > cap {
		n = cap
	}
	if n < 1 {
		n = 1
	}
	out["limit"] = n
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}
