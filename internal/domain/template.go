package domain

import (
	"time"
)

// BlockType enumerates the kinds of building blocks a signature template
// is composed of.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockSocial     BlockType = "social"
	BlockScheduling BlockType = "scheduling"
	BlockDivider    BlockType = "divider"
)

// TemplateBlock is one ordered building block of a signature. Source holds
// the block's Liquid markup; rendering substitutes the target's profile data.
type TemplateBlock struct {
	Type   BlockType `json:"type" db:"type"`
	Source string    `json:"source" db:"source"`
}

// SignatureTemplate is an organization's signature design. At most one
// template per organization carries IsDefault; it is the fallback when no
// rule matches.
type SignatureTemplate struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	Name           string          `json:"name" db:"name"`
	Blocks         []TemplateBlock `json:"blocks" db:"blocks"`
	IsDefault      bool            `json:"is_default" db:"is_default"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
