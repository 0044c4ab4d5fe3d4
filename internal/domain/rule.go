package domain

import (
	"time"
)

// SenderCondition scopes a rule to who is sending.
type SenderCondition string

const (
	SenderAll                 SenderCondition = "all"
	SenderSpecificUsers       SenderCondition = "specific_users"
	SenderSpecificDepartments SenderCondition = "specific_departments"
)

// EmailType scopes a rule to the kind of message being composed.
type EmailType string

const (
	EmailTypeAll   EmailType = "all"
	EmailTypeNew   EmailType = "new"
	EmailTypeReply EmailType = "reply"
)

// RecipientCondition scopes a rule to the internal/external mix of recipients.
type RecipientCondition string

const (
	RecipientAll                RecipientCondition = "all"
	RecipientAllInternal        RecipientCondition = "all_internal"
	RecipientAllExternal        RecipientCondition = "all_external"
	RecipientAtLeastOneInternal RecipientCondition = "at_least_one_internal"
	RecipientAtLeastOneExternal RecipientCondition = "at_least_one_external"
)

// SignatureRule selects a signature template when all of its conditions hold
// for an evaluation context. Rules are read-only during evaluation and are
// soft-disabled via IsActive rather than deleted.
type SignatureRule struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	TemplateID     string          `json:"template_id" db:"template_id"`
	Name           string          `json:"name" db:"name"`
	Priority       int             `json:"priority" db:"priority"`
	IsActive       bool            `json:"is_active" db:"is_active"`

	SenderCondition   SenderCondition `json:"sender_condition" db:"sender_condition"`
	SenderUserIDs     []string        `json:"sender_user_ids" db:"sender_user_ids"`
	SenderDepartments []string        `json:"sender_departments" db:"sender_departments"`

	EmailType          EmailType          `json:"email_type" db:"email_type"`
	RecipientCondition RecipientCondition `json:"recipient_condition" db:"recipient_condition"`

	// Active window. A nil bound is unconstrained on that side.
	ActiveFrom  *time.Time `json:"active_from" db:"active_from"`
	ActiveUntil *time.Time `json:"active_until" db:"active_until"`

	// Case-insensitive subject substring conditions. Empty means unset.
	SubjectContains    string `json:"subject_contains" db:"subject_contains"`
	SubjectNotContains string `json:"subject_not_contains" db:"subject_not_contains"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks a rule for structural problems before it is persisted.
// Evaluation never calls this; a malformed stored rule still evaluates
// (permissively) rather than poisoning resolution.
func (r *SignatureRule) Validate() error {
	switch r.SenderCondition {
	case SenderAll, SenderSpecificUsers, SenderSpecificDepartments:
	default:
		return ErrInvalidEnum{Field: "sender_condition", Value: string(r.SenderCondition)}
	}
	switch r.EmailType {
	case EmailTypeAll, EmailTypeNew, EmailTypeReply:
	default:
		return ErrInvalidEnum{Field: "email_type", Value: string(r.EmailType)}
	}
	switch r.RecipientCondition {
	case RecipientAll, RecipientAllInternal, RecipientAllExternal,
		RecipientAtLeastOneInternal, RecipientAtLeastOneExternal:
	default:
		return ErrInvalidEnum{Field: "recipient_condition", Value: string(r.RecipientCondition)}
	}
	if r.TemplateID == "" {
		return ErrInvalidEnum{Field: "template_id", Value: "(empty)"}
	}
	return nil
}

// ErrInvalidEnum reports a value outside a closed enum set.
type ErrInvalidEnum struct {
	Field string
	Value string
}

func (e ErrInvalidEnum) Error() string {
	return "invalid value " + e.Value + " for " + e.Field
}

// EvaluationContext carries everything the rule engine needs to decide which
// template applies to one message from one sender. It is built per resolution
// call and discarded afterwards.
type EvaluationContext struct {
	SenderID           string
	SenderEmail        string
	SenderDepartment   string // empty when the sender has no department
	EmailType          EmailType
	Recipients         []string
	CCRecipients       []string
	Subject            string
	HasSubject         bool // distinguishes "no subject supplied" from empty subject
	OrganizationID     string
	OrganizationDomain string // empty when the org has no verified domain
	Timestamp          time.Time
}

// AllRecipients returns To plus CC addresses in order.
func (c *EvaluationContext) AllRecipients() []string {
	if len(c.CCRecipients) == 0 {
		return c.Recipients
	}
	out := make([]string, 0, len(c.Recipients)+len(c.CCRecipients))
	out = append(out, c.Recipients...)
	out = append(out, c.CCRecipients...)
	return out
}
