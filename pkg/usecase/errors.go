package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Interaction ingress errors
	ErrMalformedSubject = errors.New("malformed subject")
	ErrUnknownAction    = errors.New("unknown action")

	// Registry errors
	ErrDuplicateAction = errors.New("duplicate action")
	ErrRegistryFrozen  = errors.New("action registry is frozen")

	// Entity errors
	ErrCaseNotFound      = errors.New("case not found")
	ErrIncompleteEntity  = errors.New("incomplete entity")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidField      = errors.New("invalid field value")

	// Access control errors
	ErrAccessDenied = errors.New("access denied")
)

// Context keys for error values
const (
	CaseIDKey   = "case_id"
	TenantKey   = "tenant"
	ActionIDKey = "action_id"
)
