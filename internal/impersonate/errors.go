package impersonate

import "errors"

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrTargetNotFound    = errors.New("impersonation target not found")
	ErrTenantNotFound    = errors.New("no tenant for this user")
	ErrInvalidTargetType = errors.New("invalid impersonation target type")
)
