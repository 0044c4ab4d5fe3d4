package deployment

import "errors"

// Sentinel errors for the deployment service layer. All of these abort
// before any deployment record is created or any mailbox is touched.
var (
	ErrTemplateNotFound   = errors.New("template not found in organization")
	ErrNoTargets          = errors.New("deployment has no targets")
	ErrInvalidTargetMode  = errors.New("invalid target mode")
	ErrMissingTemplateID  = errors.New("template id is required")
	ErrDeploymentNotFound = errors.New("deployment not found")
)
