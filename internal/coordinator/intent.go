// Package coordinator implements the C7 entry point: intent classification
// and routing, specialist dispatch with an output-token budget and bounded
// repair retries, and answer synthesis with a streaming contract (spec
// §4.7).
package coordinator

import (
	"regexp"
	"strings"
)

// Intent is one of the five classification outcomes spec §4.7 names.
type Intent string

const (
	IntentDocumentation Intent = "documentation"
	IntentDataQuery     Intent = "data_query"
	IntentWorkspaceDev  Intent = "workspace_dev"
	IntentAnalysis      Intent = "analysis"
	IntentAmbiguous     Intent = "ambiguous"
)

// numericOnly matches a short input that is nothing but digits and an
// optional leading record-number marker ("#12345", "12345").
var numericOnly = regexp.MustCompile(`^\s*#?\d+\s*$`)

// workspaceDevPatterns are checked first so a phrase like "write a script"
// is never misread as a documentation request for "write a script" meaning
// "explain how to write a script".
var workspaceDevPatterns = regexp.MustCompile(
	`(?i)\b(write a script|propose a patch|modify (the )?file|deploy (it|the|this)|suitescript|run (the )?unit tests?|run validate|edit (the )?file|change the code|update (the )?script|create a patch)\b`,
)

// analysisPatterns are checked before dataQueryPatterns so an aggregation
// request ("trend", "compare") is not swallowed by the broader data-query
// vocabulary ("how many", "list").
var analysisPatterns = regexp.MustCompile(
	`(?i)\b(trend|aggregate|breakdown|week over week|month over month|year over year|compare|comparison|average|sum of|group by|over time)\b`,
)

var dataQueryPatterns = regexp.MustCompile(
	`(?i)\b(how many|how much|list|show me|count|total number|find|lookup|look up|sales order|invoice|customer record|what is the balance)\b`,
)

var documentationPatterns = regexp.MustCompile(
	`(?i)\b(what is|explain|how do i|how does|documentation|guide|define|help me understand)\b`,
)

// Classify maps a user message to an Intent using the ordered pattern list
// from spec §4.7. The first matching rule wins; a message matching none of
// them classifies as ambiguous, deferring to the LLM-assisted plan.
func Classify(message string) Intent {
	trimmed := strings.TrimSpace(message)
	if numericOnly.MatchString(trimmed) {
		return IntentDataQuery
	}
	switch {
	case workspaceDevPatterns.MatchString(trimmed):
		return IntentWorkspaceDev
	case analysisPatterns.MatchString(trimmed):
		return IntentAnalysis
	case dataQueryPatterns.MatchString(trimmed):
		return IntentDataQuery
	case documentationPatterns.MatchString(trimmed):
		return IntentDocumentation
	default:
		return IntentAmbiguous
	}
}
