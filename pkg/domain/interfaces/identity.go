package interfaces

import (
	"context"

	"github.com/secmon-lab/caseline/pkg/domain/model"
)

// IdentityResolver resolves the acting identity of an interaction
type IdentityResolver interface {
	// CurrentActor resolves a chat user ID into an actor with email
	CurrentActor(ctx context.Context, userID string) (*model.Actor, error)
}
