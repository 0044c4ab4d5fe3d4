package domain

import (
	"time"
)

// DeploymentStatus enumerates the lifecycle states of a deployment run.
type DeploymentStatus string

const (
	DeploymentRunning   DeploymentStatus = "running"
	DeploymentCompleted DeploymentStatus = "completed"
	DeploymentFailed    DeploymentStatus = "failed"
)

// TargetMode selects which mailboxes a deployment covers.
type TargetMode string

const (
	TargetMe       TargetMode = "me"
	TargetSelected TargetMode = "selected"
	TargetAll      TargetMode = "all"
)

// Deployment is the aggregate record for one signature rollout. It is created
// in Running state, its counters are advanced as targets complete, and it is
// finalized exactly once when every target has been attempted.
type Deployment struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	TemplateID     string           `json:"template_id" db:"template_id"`
	TargetMode     TargetMode       `json:"target_mode" db:"target_mode"`
	UseRules       bool             `json:"use_rules" db:"use_rules"`
	Status         DeploymentStatus `json:"status" db:"status"`
	TotalUsers     int              `json:"total_users" db:"total_users"`
	Successful     int              `json:"successful_count" db:"successful_count"`
	Failed         int              `json:"failed_count" db:"failed_count"`
	StartedAt      time.Time        `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time       `json:"finished_at" db:"finished_at"`
}

// DeploymentTarget is one mailbox slated to receive a rendered signature.
// UserID may be empty for a transient "me" deployment issued before the
// directory record exists; such targets are written but not recorded in
// per-user history.
type DeploymentTarget struct {
	UserID      string            `json:"user_id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	Profile     map[string]string `json:"profile"` // title, phone, links, etc.
}

// HistoryStatus enumerates per-target outcomes.
type HistoryStatus string

const (
	HistoryCompleted HistoryStatus = "completed"
	HistoryFailed    HistoryStatus = "failed"
)

// UserDeploymentHistory records the outcome for one target in one deployment.
// Rows are immutable; a retry produces a new row.
type UserDeploymentHistory struct {
	ID           string        `json:"id" db:"id"`
	DeploymentID string        `json:"deployment_id" db:"deployment_id"`
	UserID       string        `json:"user_id" db:"user_id"`
	TemplateID   string        `json:"template_id" db:"template_id"` // template actually applied, post rule-resolution
	Status       HistoryStatus `json:"status" db:"status"`
	ErrorMessage string        `json:"error_message" db:"error_message"`
	DeployedAt   time.Time     `json:"deployed_at" db:"deployed_at"`
}
