package slack

import (
	"context"

	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
)

// Service is the Slack backed chat delivery used by the dispatcher and the
// identity resolver
type Service interface {
	interfaces.ChatService

	// GetUserInfo retrieves user information for the given user ID
	GetUserInfo(ctx context.Context, userID string) (*User, error)
}

// User represents a Slack user
type User struct {
	ID       string
	Name     string
	RealName string
	Email    string
}
