package cascade

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("cascade: no store configured")
	ErrStoreClosed = errors.New("cascade: store closed")

	// Not found errors.
	ErrDefinitionNotFound = errors.New("cascade: workflow definition not found")
	ErrRunNotFound        = errors.New("cascade: workflow not found")
	ErrNodeNotFound       = errors.New("cascade: node not found in definition")
	ErrReviewNotFound     = errors.New("cascade: review request not found")

	// Conflict errors.
	ErrAlreadyExists = errors.New("cascade: workflow already exists")
	ErrLeaseHeld     = errors.New("cascade: execution lease held by another owner")

	// State errors.
	ErrNotPaused        = errors.New("cascade: workflow is not paused")
	ErrTerminal         = errors.New("cascade: workflow is in a terminal state")
	ErrReviewResolved   = errors.New("cascade: review request already resolved")
	ErrInvalidDefinition = errors.New("cascade: invalid workflow definition")

	// Admission errors.
	ErrTenantThrottled = errors.New("cascade: tenant start rate exceeded")
)
