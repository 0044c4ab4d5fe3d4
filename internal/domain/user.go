package domain

import (
	"time"
)

// User is a directory member whose mailbox can receive a signature.
type User struct {
	ID             string            `json:"id" db:"id"`
	OrganizationID string            `json:"organization_id" db:"organization_id"`
	AuthID         string            `json:"auth_id" db:"auth_id"`
	Email          string            `json:"email" db:"email"`
	DisplayName    string            `json:"display_name" db:"display_name"`
	Department     string            `json:"department" db:"department"`
	Title          string            `json:"title" db:"title"`
	Phone          string            `json:"phone" db:"phone"`
	Profile        map[string]string `json:"profile" db:"profile"` // social links, scheduling link, photo URL
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// Organization carries the tenant metadata resolution depends on.
// Domain is the verified mail domain used to classify recipients as
// internal or external; it may be empty for orgs that never verified one.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Domain    string    `json:"domain" db:"domain"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
