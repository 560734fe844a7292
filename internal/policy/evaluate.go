// Package policy implements the tenant-scoped PolicyProfile pre-execution
// checks and post-execution field redaction described for the governance
// pipeline. It is grounded on the teacher's allow/deny Decision idiom
// (internal/tools/policy.Resolver.Decide), adapted from tool-name pattern
// matching to the domain's allowlist/blocked-field/row-limit rule set.
package policy

import (
	"strings"

	"github.com/netsuite-assist/coordinator/pkg/models"
)

// Decision explains why a call was allowed or denied.
type Decision struct {
	Allowed bool
	Reason  string
}

// dialectRowLimitKeywords are query-language tokens that indicate a query
// already carries its own row cap; a query containing one of these is
// exempt from the require_row_limit check regardless of an explicit
// "limit" argument. Checked case-insensitively.
var dialectRowLimitKeywords = []string{
	"rownum",
	"fetch first",
	"limit",
	"top ",
}

// Evaluate runs the pre-execution policy checks for a single tool call, in
// order: tool allowlist, then read-only mode (a mutating tool is denied),
// then blocked-field substring check against the raw argument payload, then (for query-bearing tools) the row-limit
// requirement. The first failing check short-circuits with its reason.
func Evaluate(profile *models.PolicyProfile, desc models.ToolDescriptor, args map[string]any) Decision {
	if profile == nil {
		return Decision{Allowed: true}
	}

	if profile.HasAllowlist() && !profile.AllowsTool(desc.Name) {
		return Decision{Allowed: false, Reason: "tool not in policy allowlist"}
	}

	if profile.ReadOnlyMode && desc.Mutates {
		return Decision{Allowed: false, Reason: "tenant policy is read-only"}
	}

	if blocked := findBlockedField(profile.BlockedFields, args); blocked != "" {
		return Decision{Allowed: false, Reason: "field '" + blocked + "' is restricted"}
	}

	if profile.RequireRowLimit && desc.HasQueryParam {
		if !queryHasRowLimit(desc, args) {
			return Decision{Allowed: false, Reason: "query must include an explicit row limit"}
		}
	}

	return Decision{Allowed: true}
}

// findBlockedField reports the first blocked-field name found as a
// substring of any string-valued argument, case-insensitively. This
// catches both "select salary from employee" (field named in a SuiteQL
// query) and {"field": "salary"} shaped arguments.
func findBlockedField(blocked map[string]struct{}, args map[string]any) string {
	if len(blocked) == 0 {
		return ""
	}
	for _, v := range args {
		s, ok := v.(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(s)
		for field := range blocked {
			if strings.Contains(lower, strings.ToLower(field)) {
				return field
			}
		}
	}
	return ""
}

func queryHasRowLimit(desc models.ToolDescriptor, args map[string]any) bool {
	paramName := desc.QueryParamName
	if paramName == "" {
		paramName = "query"
	}
	query, _ := args[paramName].(string)
	lower := strings.ToLower(query)
	for _, kw := range dialectRowLimitKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if _, ok := args["limit"]; ok {
		return true
	}
	return false
}

// RedactOutput recursively strips any key in profile.BlockedFields from a
// decoded JSON-shaped result, matching element-wise over lists of objects.
// A nil profile or empty BlockedFields is a no-op.
func RedactOutput(profile *models.PolicyProfile, value any) any {
	if profile == nil || len(profile.BlockedFields) == 0 {
		return value
	}
	return redact(profile.BlockedFields, value)
}

func redact(blocked map[string]struct{}, value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if isBlocked(blocked, k) {
				continue
			}
			out[k] = redact(blocked, val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redact(blocked, item)
		}
		return out
	default:
		return v
	}
}

func isBlocked(blocked map[string]struct{}, key string) bool {
	lower := strings.ToLower(key)
	for field := range blocked {
		if strings.ToLower(field) == lower {
			return true
		}
	}
	return false
}
