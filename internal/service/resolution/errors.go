package resolution

import "errors"

// Sentinel errors for the resolution service layer.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrOrgNotFound  = errors.New("organization not found")
	ErrNoTemplate   = errors.New("no usable template")
)
