package rules

import (
	"strings"

	"github.com/stampworks/sigforge/internal/domain"
)

// emptySetMatchesAll preserves the product's historical behavior for rules
// scoped to specific users or departments whose set was left empty: the rule
// matches every sender instead of no sender. Arguably a latent bug; flipping
// this constant (and the pinning test in evaluators_test.go) is the one-line
// fix if product ever decides empty should mean "matches nobody".
const emptySetMatchesAll = true

// MatchSender reports whether the rule's sender condition holds for the
// context's sender.
func MatchSender(rule domain.SignatureRule, ctx domain.EvaluationContext) bool {
	switch rule.SenderCondition {
	case domain.SenderAll:
		return true
	case domain.SenderSpecificUsers:
		if len(rule.SenderUserIDs) == 0 {
			return emptySetMatchesAll
		}
		for _, id := range rule.SenderUserIDs {
			if id == ctx.SenderID {
				return true
			}
		}
		return false
	case domain.SenderSpecificDepartments:
		if len(rule.SenderDepartments) == 0 {
			return emptySetMatchesAll
		}
		if ctx.SenderDepartment == "" {
			return false
		}
		for _, d := range rule.SenderDepartments {
			if strings.EqualFold(d, ctx.SenderDepartment) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MatchEmailType reports whether the rule applies to the context's
// compose kind (new message vs reply).
func MatchEmailType(rule domain.SignatureRule, ctx domain.EvaluationContext) bool {
	switch rule.EmailType {
	case domain.EmailTypeAll:
		return true
	case domain.EmailTypeNew, domain.EmailTypeReply:
		return rule.EmailType == ctx.EmailType
	default:
		return false
	}
}

// MatchRecipients reports whether the rule's recipient condition holds.
// Recipients are classified internal iff their domain equals the
// organization's verified domain, case-insensitively. Without an org domain
// no classification is possible and every non-All condition fails.
func MatchRecipients(rule domain.SignatureRule, ctx domain.EvaluationContext) bool {
	if rule.RecipientCondition == domain.RecipientAll {
		return true
	}
	if ctx.OrganizationDomain == "" {
		return false
	}

	internal, external := 0, 0
	for _, addr := range ctx.AllRecipients() {
		if isInternal(addr, ctx.OrganizationDomain) {
			internal++
		} else {
			external++
		}
	}

	switch rule.RecipientCondition {
	case domain.RecipientAllInternal:
		return internal > 0 && external == 0
	case domain.RecipientAllExternal:
		return external > 0 && internal == 0
	case domain.RecipientAtLeastOneInternal:
		return internal > 0
	case domain.RecipientAtLeastOneExternal:
		return external > 0
	default:
		return false
	}
}

// isInternal reports whether addr's domain equals orgDomain, ignoring case.
// Addresses without an @ are never internal.
func isInternal(addr, orgDomain string) bool {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return false
	}
	return strings.EqualFold(addr[at+1:], orgDomain)
}

// MatchActiveWindow reports whether the context timestamp falls inside the
// rule's active window. A nil bound is unconstrained on that side.
func MatchActiveWindow(rule domain.SignatureRule, ctx domain.EvaluationContext) bool {
	if rule.ActiveFrom != nil && ctx.Timestamp.Before(*rule.ActiveFrom) {
		return false
	}
	if rule.ActiveUntil != nil && ctx.Timestamp.After(*rule.ActiveUntil) {
		return false
	}
	return true
}

// MatchSubject applies the contains / not-contains subject conditions,
// case-insensitively and conjunctively. A context without a subject cannot
// be evaluated and default-permits.
func MatchSubject(rule domain.SignatureRule, ctx domain.EvaluationContext) bool {
	if !ctx.HasSubject {
		return true
	}
	subject := strings.ToLower(ctx.Subject)
	if rule.SubjectContains != "" && !strings.Contains(subject, strings.ToLower(rule.SubjectContains)) {
		return false
	}
	if rule.SubjectNotContains != "" && strings.Contains(subject, strings.ToLower(rule.SubjectNotContains)) {
		return false
	}
	return true
}

// Matches evaluates the conjunction of all five condition dimensions.
func Matches(rule domain.SignatureRule, ctx domain.EvaluationContext) bool {
	return MatchSender(rule, ctx) &&
		MatchEmailType(rule, ctx) &&
		MatchRecipients(rule, ctx) &&
		MatchActiveWindow(rule, ctx) &&
		MatchSubject(rule, ctx)
}
