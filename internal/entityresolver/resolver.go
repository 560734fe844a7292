// Package entityresolver implements the trigram + LLM-assisted mapping of
// natural-language entity names to stable script IDs described in spec
// §4.5, producing the compact "tenant vernacular" string the suiteql
// specialist's prompt is enriched with.
package entityresolver

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/netsuite-assist/coordinator/internal/llmadapter"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// candidatesPerQuery (K) bounds how many trigram candidates are fetched
// per extracted phrase before the disambiguation step.
const candidatesPerQuery = 5

// ambiguityBand is how close the top two scores must be before the cheap
// LLM is asked to disambiguate; outside this band the top candidate wins
// outright.
const ambiguityBand = 0.05

// maxRenderLength caps the rendered vernacular string (spec: <= 300 chars).
const maxRenderLength = 300

var quotedPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
var properNounPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*){0,2}\b`)

// Disambiguator asks a cheap LLM to pick the best of several close-scoring
// candidates for one phrase. Implementations wrap llmadapter.Adapter with
// a fixed cheap model and a short disambiguation prompt.
type Disambiguator interface {
	Choose(ctx context.Context, phrase string, candidates []models.EntityCandidate) (models.EntityCandidate, error)
}

// Resolver produces tenant-vernacular strings. It is best-effort: any
// failure at any stage returns the empty string and the caller's query
// proceeds without enrichment.
type Resolver struct {
	Repo          repository.Repository
	Disambiguator Disambiguator
}

// New builds a Resolver. disambiguator may be nil, in which case ties are
// broken by always taking the top-scored candidate.
func New(repo repository.Repository, disambiguator Disambiguator) *Resolver {
	return &Resolver{Repo: repo, Disambiguator: disambiguator}
}

// Resolve extracts candidate entity phrases from task, maps each through
// the tenant's mapping index, and renders the selected mappings as
// labeled bullets bounded to maxRenderLength characters.
func (r *Resolver) Resolve(ctx context.Context, tenantID, entityType, task string) string {
	phrases := extractPhrases(task)
	if len(phrases) == 0 {
		return ""
	}

	var lines []string
	for _, phrase := range phrases {
		candidates, err := r.Repo.QueryEntityMappings(ctx, tenantID, entityType, phrase, candidatesPerQuery)
		if err != nil || len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

		chosen := candidates[0]
		if len(candidates) > 1 && candidates[0].Score-candidates[1].Score < ambiguityBand && r.Disambiguator != nil {
			if picked, err := r.Disambiguator.Choose(ctx, phrase, candidates); err == nil {
				chosen = picked
			}
		}
		lines = append(lines, fmt.Sprintf("- %q -> %s", chosen.Mapping.NaturalName, chosen.Mapping.ScriptID))
	}

	if len(lines) == 0 {
		return ""
	}
	rendered := strings.Join(lines, "\n")
	if len(rendered) > maxRenderLength {
		rendered = rendered[:maxRenderLength]
	}
	return rendered
}

// extractPhrases pulls candidate entity names out of a task string: any
// quoted substrings, plus short proper-noun-like runs of capitalized
// words. Deduplicated, order-preserving.
func extractPhrases(task string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	for _, m := range quotedPattern.FindAllStringSubmatch(task, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	for _, m := range properNounPattern.FindAllString(task, -1) {
		add(m)
	}
	return out
}

// NewLLMDisambiguator builds a Disambiguator backed by a cheap-model
// llmadapter.Adapter call.
func NewLLMDisambiguator(adapter llmadapter.Adapter, model string) Disambiguator {
	return &llmDisambiguator{adapter: adapter, model: model}
}

type llmDisambiguator struct {
	adapter llmadapter.Adapter
	model   string
}

func (d *llmDisambiguator) Choose(ctx context.Context, phrase string, candidates []models.EntityCandidate) (models.EntityCandidate, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Phrase: %q\nCandidates:\n", phrase)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (%s) score=%.3f\n", i, c.Mapping.NaturalName, c.Mapping.ScriptID, c.Score)
	}
	b.WriteString("Reply with only the number of the best match.")

	resp, err := d.adapter.CreateMessage(ctx, llmadapter.Request{
		Model:     d.model,
		MaxTokens: 16,
		System:    "You pick the single best entity-name match from a short candidate list. Reply with only the number.",
		Messages:  []llmadapter.Message{{Role: llmadapter.RoleUser, Text: b.String()}},
	})
	if err != nil {
		return candidates[0], err
	}

	idx := parseIndex(resp.Text(), len(candidates))
	return candidates[idx], nil
}

func parseIndex(text string, n int) int {
	text = strings.TrimSpace(text)
	for i := 0; i < n; i++ {
		if strings.HasPrefix(text, fmt.Sprintf("%d", i)) {
			return i
		}
	}
	return 0
}
