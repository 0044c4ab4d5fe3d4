package rules

import (
	"testing"

	"github.com/stampworks/sigforge/internal/domain"
)

func namedRule(id string, priority int, templateID string) domain.SignatureRule {
	r := baseRule()
	r.ID = id
	r.Priority = priority
	r.TemplateID = templateID
	return r
}

func TestResolveHighestPriorityWins(t *testing.T) {
	ctx := baseContext()
	ruleSet := []domain.SignatureRule{
		namedRule("rule-a", 5, "tpl-low"),
		namedRule("rule-b", 50, "tpl-high"),
		namedRule("rule-c", 20, "tpl-mid"),
	}

	got, ok := Resolve(ruleSet, ctx)
	if !ok || got != "tpl-high" {
		t.Fatalf("Resolve() = (%q, %v), want (tpl-high, true)", got, ok)
	}
}

func TestResolveSkipsInactiveRules(t *testing.T) {
	ctx := baseContext()
	top := namedRule("rule-a", 100, "tpl-disabled")
	top.IsActive = false
	ruleSet := []domain.SignatureRule{top, namedRule("rule-b", 1, "tpl-active")}

	got, ok := Resolve(ruleSet, ctx)
	if !ok || got != "tpl-active" {
		t.Fatalf("Resolve() = (%q, %v), want (tpl-active, true)", got, ok)
	}
}

func TestResolveSkipsNonMatchingHigherPriority(t *testing.T) {
	ctx := baseContext() // new message
	replyOnly := namedRule("rule-a", 100, "tpl-reply")
	replyOnly.EmailType = domain.EmailTypeReply
	ruleSet := []domain.SignatureRule{replyOnly, namedRule("rule-b", 1, "tpl-any")}

	got, ok := Resolve(ruleSet, ctx)
	if !ok || got != "tpl-any" {
		t.Fatalf("Resolve() = (%q, %v), want (tpl-any, true)", got, ok)
	}
}

// Changing the priority of a rule that does not match must never change the
// outcome.
func TestResolveNonMatchingPriorityIrrelevant(t *testing.T) {
	ctx := baseContext()
	for _, priority := range []int{0, 10, 999} {
		blocked := namedRule("rule-a", priority, "tpl-blocked")
		blocked.RecipientCondition = domain.RecipientAllInternal // context is all-external
		ruleSet := []domain.SignatureRule{blocked, namedRule("rule-b", 5, "tpl-match")}

		got, ok := Resolve(ruleSet, ctx)
		if !ok || got != "tpl-match" {
			t.Fatalf("priority %d: Resolve() = (%q, %v), want (tpl-match, true)", priority, got, ok)
		}
	}
}

// Equal priorities break deterministically by ascending rule ID, independent
// of input order.
func TestResolveEqualPriorityTieBreak(t *testing.T) {
	ctx := baseContext()
	a := namedRule("rule-a", 10, "tpl-a")
	b := namedRule("rule-b", 10, "tpl-b")

	for i := 0; i < 5; i++ {
		got1, _ := Resolve([]domain.SignatureRule{a, b}, ctx)
		got2, _ := Resolve([]domain.SignatureRule{b, a}, ctx)
		if got1 != "tpl-a" || got2 != "tpl-a" {
			t.Fatalf("tie-break not deterministic: got %q and %q, want tpl-a both ways", got1, got2)
		}
	}
}

func TestResolveNoMatch(t *testing.T) {
	ctx := baseContext()
	ctx.Recipients = []string{"bob@acme.com"} // all internal

	rule := namedRule("rule-a", 10, "tpl-1")
	rule.EmailType = domain.EmailTypeNew
	rule.RecipientCondition = domain.RecipientAtLeastOneExternal

	if got, ok := Resolve([]domain.SignatureRule{rule}, ctx); ok {
		t.Fatalf("Resolve() = (%q, true), want no match", got)
	}
	if got, ok := Resolve(nil, ctx); ok {
		t.Fatalf("Resolve(empty) = (%q, true), want no match", got)
	}
}

// The external-recipient scenario from the product acceptance checklist.
func TestResolveExternalRecipientScenario(t *testing.T) {
	rule := namedRule("rule-a", 10, "T1")
	rule.EmailType = domain.EmailTypeNew
	rule.RecipientCondition = domain.RecipientAtLeastOneExternal

	ctx := domain.EvaluationContext{
		SenderID:           "user-1",
		EmailType:          domain.EmailTypeNew,
		Recipients:         []string{"client@external.com"},
		OrganizationDomain: "acme.com",
	}

	got, ok := Resolve([]domain.SignatureRule{rule}, ctx)
	if !ok || got != "T1" {
		t.Fatalf("Resolve() = (%q, %v), want (T1, true)", got, ok)
	}
}
