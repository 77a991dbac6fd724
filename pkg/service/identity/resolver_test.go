package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/service/identity"
	"github.com/secmon-lab/caseline/pkg/service/slack"
)

type fakeUsers struct {
	calls int
	users map[string]*slack.User
}

func (f *fakeUsers) GetUserInfo(ctx context.Context, userID string) (*slack.User, error) {
	f.calls++
	u, ok := f.users[userID]
	if !ok {
		return nil, errors.New("user_not_found")
	}
	return u, nil
}

func TestCurrentActor(t *testing.T) {
	users := &fakeUsers{users: map[string]*slack.User{
		"U1": {ID: "U1", Name: "alice", RealName: "Alice Smith", Email: "alice@example.com"},
		"U2": {ID: "U2", Name: "bob", Email: "bob@example.com"},
	}}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := identity.New(users,
		identity.WithCacheTTL(time.Minute),
		identity.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	t.Run("resolves email and display name", func(t *testing.T) {
		actor, err := r.CurrentActor(ctx, "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, actor.Email).Equal("alice@example.com")
		gt.Value(t, actor.Name).Equal("Alice Smith")
	})

	t.Run("falls back to user name", func(t *testing.T) {
		actor, err := r.CurrentActor(ctx, "U2")
		gt.NoError(t, err).Required()
		gt.Value(t, actor.Name).Equal("bob")
	})

	t.Run("caches until TTL expires", func(t *testing.T) {
		before := users.calls
		_, err := r.CurrentActor(ctx, "U1")
		gt.NoError(t, err).Required()
		gt.Number(t, users.calls).Equal(before)

		now = now.Add(2 * time.Minute)
		_, err = r.CurrentActor(ctx, "U1")
		gt.NoError(t, err).Required()
		gt.Number(t, users.calls).Equal(before + 1)
	})

	t.Run("returns error for unknown user", func(t *testing.T) {
		_, err := r.CurrentActor(ctx, "U404")
		gt.Value(t, err).NotNil()
	})

	t.Run("returns error for empty user ID", func(t *testing.T) {
		_, err := r.CurrentActor(ctx, "")
		gt.Value(t, err).NotNil()
	})
}
