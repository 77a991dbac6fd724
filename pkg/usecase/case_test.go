package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
	"github.com/secmon-lab/caseline/pkg/usecase"
)

func TestCaseUseCase_CreateCase(t *testing.T) {
	t.Run("create case attaches document and default project", func(t *testing.T) {
		env := newTestEnv(t, usecase.WithBaseURL("https://cases.example.com"))
		c := env.createCase(t)

		gt.Value(t, c.Status).Equal(types.CaseStatusNew)
		gt.Value(t, c.Project).Equal(model.Project{ID: 3, Name: "default"})
		gt.Value(t, *c.Document).Equal(model.Document{
			Name:    "CASE-1",
			WebLink: "https://cases.example.com/acme/cases/CASE-1",
		})

		_, err := usecase.RenderCard(c, usecase.Viewer{TenantSlug: testTenant})
		gt.NoError(t, err)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.uc.Case.CreateCase(context.Background(), testTenant, usecase.NewCase{
			Title:    "x",
			Type:     "unknown",
			Assignee: model.Participant{ID: "U001"},
		})
		gt.Bool(t, errors.Is(err, usecase.ErrInvalidField)).True()
	})

	t.Run("missing type is incomplete", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.uc.Case.CreateCase(context.Background(), testTenant, usecase.NewCase{
			Title:    "x",
			Assignee: model.Participant{ID: "U001"},
		})
		gt.Bool(t, errors.Is(err, usecase.ErrIncompleteEntity)).True()
	})

	t.Run("missing title is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.uc.Case.CreateCase(context.Background(), testTenant, usecase.NewCase{Type: "security"})
		gt.Bool(t, errors.Is(err, usecase.ErrInvalidField)).True()
	})

	t.Run("unknown tenant", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.uc.Case.CreateCase(context.Background(), "other", usecase.NewCase{Title: "x", Type: "security"})
		gt.Bool(t, errors.Is(err, model.ErrTenantNotFound)).True()
	})
}

func TestCaseUseCase_Announce(t *testing.T) {
	t.Run("posts card, thread reply and binds conversation", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.createCase(t)

		bound, err := env.uc.Case.Announce(context.Background(), testTenant, c.ID, "C100")
		gt.NoError(t, err).Required()

		gt.Array(t, env.chat.posted).Length(1)
		posted := env.chat.posted[0]
		gt.Value(t, posted.ChannelID).Equal("C100")
		gt.Value(t, posted.Card.Metadata.ChannelID).Equal("C100")
		gt.Value(t, posted.Card.Metadata.ID).Equal(c.ID)

		gt.Value(t, env.chat.replies).Equal([]string{usecase.ThreadIntroText})
		gt.Value(t, *bound.Conversation).Equal(model.Conversation{ChannelID: "C100", ThreadID: "1700000000.000001"})
		gt.Value(t, *env.getCase(t, c.ID).Conversation).Equal(*bound.Conversation)
	})

	t.Run("second announce fails", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.announcedCase(t)

		_, err := env.uc.Case.Announce(context.Background(), testTenant, c.ID, "C999")
		gt.Bool(t, errors.Is(err, interfaces.ErrConversationAlreadyBound)).True()
		gt.Array(t, env.chat.posted).Length(1)
	})

	t.Run("post is retried while delivery is unavailable", func(t *testing.T) {
		var calls atomic.Int32
		env := newTestEnv(t)
		c := env.createCase(t)
		env.chat.postCardFn = func(ctx context.Context, channelID string, card *model.Card) (*model.Conversation, error) {
			if calls.Add(1) < 3 {
				return nil, interfaces.ErrDeliveryUnavailable
			}
			return &model.Conversation{ChannelID: channelID, ThreadID: "1.2"}, nil
		}

		bound, err := env.uc.Case.Announce(context.Background(), testTenant, c.ID, "C100")
		gt.NoError(t, err).Required()
		gt.Number(t, calls.Load()).Equal(int32(3))
		gt.Value(t, bound.Conversation.ThreadID).Equal("1.2")
	})

	t.Run("exhausted delivery leaves case unbound", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.createCase(t)
		env.chat.postCardFn = func(ctx context.Context, channelID string, card *model.Card) (*model.Conversation, error) {
			return nil, interfaces.ErrDeliveryUnavailable
		}

		_, err := env.uc.Case.Announce(context.Background(), testTenant, c.ID, "C100")
		gt.Bool(t, errors.Is(err, interfaces.ErrDeliveryUnavailable)).True()
		gt.Bool(t, env.getCase(t, c.ID).Conversation == nil).True()
	})

	t.Run("missing case", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.uc.Case.Announce(context.Background(), testTenant, 42, "C100")
		gt.Bool(t, errors.Is(err, usecase.ErrCaseNotFound)).True()
	})
}

func TestCaseUseCase_GetCard(t *testing.T) {
	env := newTestEnv(t)
	c := env.announcedCase(t)

	card, err := env.uc.Case.GetCard(context.Background(), testTenant, c.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, card.Metadata.ChannelID).Equal("C100")
	gt.Value(t, card).Equal(env.chat.posted[0].Card)
}
