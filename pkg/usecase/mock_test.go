package usecase_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/secmon-lab/caseline/pkg/domain/model"
)

type postedCard struct {
	ChannelID string
	Card      *model.Card
}

type updatedCard struct {
	Ref  model.Conversation
	Card *model.Card
}

type ephemeralMessage struct {
	ChannelID string
	UserID    string
	Text      string
}

type openedDialog struct {
	TriggerID string
	Dialog    *model.Dialog
}

// mockChatService records every outbound call
type mockChatService struct {
	mu sync.Mutex

	postCardFn      func(ctx context.Context, channelID string, card *model.Card) (*model.Conversation, error)
	updateCardFn    func(ctx context.Context, ref model.Conversation, card *model.Card) error
	createChannelFn func(ctx context.Context, caseID int64, caseName, prefix string) (string, error)

	posted     []postedCard
	updated    []updatedCard
	replies    []string
	dialogs    []openedDialog
	ephemerals []ephemeralMessage
	channels   []string
	invites    map[string][]string
}

func (m *mockChatService) PostCard(ctx context.Context, channelID string, card *model.Card) (*model.Conversation, error) {
	if m.postCardFn != nil {
		ref, err := m.postCardFn(ctx, channelID, card)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.posted = append(m.posted, postedCard{ChannelID: channelID, Card: card})
		m.mu.Unlock()
		return ref, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, postedCard{ChannelID: channelID, Card: card})
	return &model.Conversation{ChannelID: channelID, ThreadID: fmt.Sprintf("1700000000.%06d", len(m.posted))}, nil
}

func (m *mockChatService) UpdateCard(ctx context.Context, ref model.Conversation, card *model.Card) error {
	if m.updateCardFn != nil {
		if err := m.updateCardFn(ctx, ref, card); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, updatedCard{Ref: ref, Card: card})
	return nil
}

func (m *mockChatService) PostThreadReply(ctx context.Context, ref model.Conversation, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, text)
	return nil
}

func (m *mockChatService) OpenDialog(ctx context.Context, triggerID string, dialog *model.Dialog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialogs = append(m.dialogs, openedDialog{TriggerID: triggerID, Dialog: dialog})
	return nil
}

func (m *mockChatService) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ephemerals = append(m.ephemerals, ephemeralMessage{ChannelID: channelID, UserID: userID, Text: text})
	return nil
}

func (m *mockChatService) CreateChannel(ctx context.Context, caseID int64, caseName, prefix string) (string, error) {
	if m.createChannelFn != nil {
		return m.createChannelFn(ctx, caseID, caseName, prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("CINC%d", caseID)
	m.channels = append(m.channels, id)
	return id, nil
}

func (m *mockChatService) InviteUsersToChannel(ctx context.Context, channelID string, userIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invites == nil {
		m.invites = make(map[string][]string)
	}
	m.invites[channelID] = append(m.invites[channelID], userIDs...)
	return nil
}

func (m *mockChatService) updatedCards() []updatedCard {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]updatedCard(nil), m.updated...)
}

func (m *mockChatService) ephemeralMessages() []ephemeralMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ephemeralMessage(nil), m.ephemerals...)
}

// mockIdentity resolves users from a fixed table
type mockIdentity struct {
	users map[string]*model.Actor
}

func (m *mockIdentity) CurrentActor(ctx context.Context, userID string) (*model.Actor, error) {
	if a, ok := m.users[userID]; ok {
		copied := *a
		return &copied, nil
	}
	return &model.Actor{ID: userID, Email: userID + "@example.com", Name: userID}, nil
}
