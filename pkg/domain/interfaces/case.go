package interfaces

import (
	"context"

	"github.com/secmon-lab/caseline/pkg/domain/model"
)

// CaseMutation validates and applies a change to the stored state of a case.
// Implementations may invoke it more than once when a transaction is retried,
// so it must only touch the case it is given.
type CaseMutation func(c *model.Case) error

// CaseRepository defines the interface for tenant-scoped Case data access.
// Updates to the same case are serialized by the store; updates to different
// cases never wait on each other.
type CaseRepository interface {
	// Create creates a new case with auto-generated ID
	Create(ctx context.Context, tenantSlug string, c *model.Case) (*model.Case, error)

	// Get retrieves a case by ID. Returns ErrNotFound when it does not exist.
	Get(ctx context.Context, tenantSlug string, id int64) (*model.Case, error)

	// Update reads the committed case, applies mutate and commits the result
	// atomically, incrementing Version. If mutate returns an error nothing is
	// written and the error is returned as is.
	Update(ctx context.Context, tenantSlug string, id int64, mutate CaseMutation) (*model.Case, error)

	// BindConversation sets the conversation binding of a case. Returns
	// ErrConversationAlreadyBound if one exists.
	BindConversation(ctx context.Context, tenantSlug string, id int64, conv model.Conversation) (*model.Case, error)

	// SetCardStale records whether the last card publish failed
	SetCardStale(ctx context.Context, tenantSlug string, id int64, stale bool) error

	// ListStaleCards retrieves cases whose card publish failed
	ListStaleCards(ctx context.Context, tenantSlug string) ([]*model.Case, error)
}
