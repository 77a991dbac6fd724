package interfaces

import (
	"context"
	"errors"

	"github.com/secmon-lab/caseline/pkg/domain/model"
)

// ErrDeliveryUnavailable is returned by ChatService on transport errors.
// Callers must not assume delivery succeeded when it is returned.
var ErrDeliveryUnavailable = errors.New("chat delivery unavailable")

// ChatService is the outbound chat delivery collaborator
type ChatService interface {
	// PostCard posts a card to a channel and returns the message reference
	PostCard(ctx context.Context, channelID string, card *model.Card) (*model.Conversation, error)

	// UpdateCard replaces the card of an existing message in place
	UpdateCard(ctx context.Context, ref model.Conversation, card *model.Card) error

	// PostThreadReply posts a plain text reply in a message thread
	PostThreadReply(ctx context.Context, ref model.Conversation, text string) error

	// OpenDialog opens a form using the interaction trigger
	OpenDialog(ctx context.Context, triggerID string, dialog *model.Dialog) error

	// PostEphemeral posts a message only the given user can see
	PostEphemeral(ctx context.Context, channelID, userID, text string) error

	// CreateChannel creates a channel for a case escalation and returns its ID
	CreateChannel(ctx context.Context, caseID int64, caseName string, prefix string) (string, error)

	// InviteUsersToChannel invites users to a channel. Silently skips if userIDs is empty.
	InviteUsersToChannel(ctx context.Context, channelID string, userIDs []string) error
}
