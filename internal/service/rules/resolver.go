package rules

import (
	"sort"

	"github.com/stampworks/sigforge/internal/domain"
)

// Resolve picks the template for a context: active rules only, highest
// priority first, first rule whose five conditions all hold wins. Equal
// priorities break by ascending rule ID so resolution is repeatable
// regardless of the order rules were loaded in.
//
// Returns ("", false) when no active rule matches.
func Resolve(ruleSet []domain.SignatureRule, ctx domain.EvaluationContext) (string, bool) {
	active := make([]domain.SignatureRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.IsActive {
			active = append(active, r)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	for _, r := range active {
		if Matches(r, ctx) {
			return r.TemplateID, true
		}
	}
	return "", false
}
