package interfaces

import "errors"

// Sentinel errors shared by store implementations
var (
	// ErrNotFound is returned when an entity does not exist in the tenant scope
	ErrNotFound = errors.New("not found")

	// ErrConversationAlreadyBound is returned when a case is announced twice
	ErrConversationAlreadyBound = errors.New("conversation already bound")
)

// Repository defines the interface for data persistence
type Repository interface {
	Case() CaseRepository

	Close() error
}
