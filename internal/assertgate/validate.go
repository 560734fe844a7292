// Package assertgate implements the C10 Assertion and Deploy Gate: SELECT-only,
// table-allowlisted assertion batches run against an injected query executor,
// and a deploy-gate prerequisite check over a changeset's run history (spec
// §4.10).
package assertgate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/netsuite-assist/coordinator/pkg/models"
)

// Batch and per-query limits from spec §4.10.
const (
	MaxAssertionsPerBatch = 50
	MaxRowLimit           = 100
	MaxQueryTimeout       = 30 * time.Second
)

var expectTypes = map[models.ExpectType]struct{}{
	models.ExpectRowCount: {},
	models.ExpectScalar:   {},
	models.ExpectNoRows:   {},
}

var operators = map[models.ComparisonOperator]struct{}{
	models.OpEq: {}, models.OpNe: {}, models.OpGt: {}, models.OpGte: {},
	models.OpLt: {}, models.OpLte: {}, models.OpBetween: {},
}

// ddlDmlKeywords are rejected anywhere in an assertion query, matched on
// word boundaries so a column or table named e.g. "updated_at" survives.
var ddlDmlKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "merge", "grant", "revoke", "replace", "exec", "execute",
}

var selectPrefix = regexp.MustCompile(`(?i)^\s*select\b`)
var fromJoinTable = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)

func wordBoundary(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
}

// ValidateAssertion enforces every shape, read-only, and table-allowlist
// rule in spec §4.10 for a single assertion, returning the first violation.
func ValidateAssertion(a models.Assertion, allowedTables map[string]struct{}) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("assertgate: assertion name is required")
	}
	if strings.TrimSpace(a.Query) == "" {
		return fmt.Errorf("assertgate: assertion query is required")
	}
	if err := validateExpected(a.Expected); err != nil {
		return err
	}
	if err := validateReadOnly(a.Query); err != nil {
		return err
	}
	for _, table := range ExtractTables(a.Query) {
		if _, ok := allowedTables[strings.ToLower(table)]; !ok {
			return fmt.Errorf("assertgate: table %q is not in the tenant's allowlist", table)
		}
	}
	return nil
}

func validateExpected(exp models.Expected) error {
	if _, ok := expectTypes[exp.Type]; !ok {
		return fmt.Errorf("assertgate: unknown expected.type %q", exp.Type)
	}
	if _, ok := operators[exp.Operator]; !ok {
		return fmt.Errorf("assertgate: unknown expected.operator %q", exp.Operator)
	}
	if exp.Operator == models.OpBetween && exp.Value2 == nil {
		return fmt.Errorf("assertgate: operator 'between' requires expected.value2")
	}
	return nil
}

// validateReadOnly requires the query to start with SELECT and contain no
// DDL/DML keyword anywhere, which also rejects a stacked second statement
// smuggled in after a semicolon.
func validateReadOnly(query string) error {
	if !selectPrefix.MatchString(query) {
		return fmt.Errorf("assertgate: query must start with SELECT")
	}
	for _, kw := range ddlDmlKeywords {
		if wordBoundary(kw).MatchString(query) {
			return fmt.Errorf("assertgate: query contains disallowed keyword %q", kw)
		}
	}
	return nil
}

// ExtractTables returns every table name referenced in a FROM or JOIN
// clause, in order of first appearance.
func ExtractTables(query string) []string {
	matches := fromJoinTable.FindAllStringSubmatch(query, -1)
	seen := make(map[string]struct{}, len(matches))
	var tables []string
	for _, m := range matches {
		name := m[1]
		lower := strings.ToLower(name)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		tables = append(tables, name)
	}
	return tables
}

// CapRowLimit clamps a caller-requested row limit into (0, MaxRowLimit].
func CapRowLimit(requested int) int {
	if requested <= 0 || requested > MaxRowLimit {
		return MaxRowLimit
	}
	return requested
}

// CapTimeout clamps a caller-requested per-query timeout into (0, MaxQueryTimeout].
func CapTimeout(requested time.Duration) time.Duration {
	if requested <= 0 || requested > MaxQueryTimeout {
		return MaxQueryTimeout
	}
	return requested
}
