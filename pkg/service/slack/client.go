package slack

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/slack-go/slack"
)

const (
	// DefaultChannelPrefix is the default prefix for incident channels
	DefaultChannelPrefix = "incident"

	// MetadataEventType is the message metadata event type of case cards
	MetadataEventType = "case_notification"
)

// client implements Service interface
type client struct {
	api *slack.Client
}

// Option is a functional option for client configuration
type Option func(*clientConfig)

type clientConfig struct {
	apiOptions []slack.Option
}

// WithAPIURL overrides the Slack Web API endpoint
func WithAPIURL(url string) Option {
	return func(c *clientConfig) {
		c.apiOptions = append(c.apiOptions, slack.OptionAPIURL(url))
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &client{
		api: slack.New(token, cfg.apiOptions...),
	}, nil
}

// deliveryError marks failures where the platform never answered (network,
// rate limit, 5xx) as ErrDeliveryUnavailable. Explicit API rejections are
// returned as plain errors since retrying them cannot help.
func deliveryError(err error, msg string, values ...goerr.Option) error {
	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return goerr.Wrap(err, msg, append(values, goerr.V("slack_error", apiErr.Err))...)
	}
	return goerr.Wrap(errors.Join(interfaces.ErrDeliveryUnavailable, err), msg, values...)
}

func cardMessageOptions(card *model.Card) ([]slack.MsgOption, error) {
	payload, err := card.Metadata.ToMap()
	if err != nil {
		return nil, err
	}

	return []slack.MsgOption{
		slack.MsgOptionBlocks(toBlocks(card)...),
		slack.MsgOptionText(card.Fallback, false),
		slack.MsgOptionMetadata(slack.SlackMetadata{
			EventType:    MetadataEventType,
			EventPayload: payload,
		}),
	}, nil
}

func (c *client) PostCard(ctx context.Context, channelID string, card *model.Card) (*model.Conversation, error) {
	opts, err := cardMessageOptions(card)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build card message", goerr.V("channel_id", channelID))
	}

	ch, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return nil, deliveryError(err, "failed to post card", goerr.V("channel_id", channelID))
	}

	return &model.Conversation{ChannelID: ch, ThreadID: ts}, nil
}

func (c *client) UpdateCard(ctx context.Context, ref model.Conversation, card *model.Card) error {
	opts, err := cardMessageOptions(card)
	if err != nil {
		return goerr.Wrap(err, "failed to build card message", goerr.V("channel_id", ref.ChannelID))
	}

	if _, _, _, err := c.api.UpdateMessageContext(ctx, ref.ChannelID, ref.ThreadID, opts...); err != nil {
		return deliveryError(err, "failed to update card",
			goerr.V("channel_id", ref.ChannelID), goerr.V("ts", ref.ThreadID))
	}
	return nil
}

func (c *client) PostThreadReply(ctx context.Context, ref model.Conversation, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, ref.ChannelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(ref.ThreadID),
	)
	if err != nil {
		return deliveryError(err, "failed to post thread reply",
			goerr.V("channel_id", ref.ChannelID), goerr.V("ts", ref.ThreadID))
	}
	return nil
}

func (c *client) OpenDialog(ctx context.Context, triggerID string, dialog *model.Dialog) error {
	if _, err := c.api.OpenViewContext(ctx, triggerID, toModalView(dialog)); err != nil {
		return deliveryError(err, "failed to open dialog", goerr.V("callback_id", dialog.CallbackID))
	}
	return nil
}

func (c *client) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	if _, err := c.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false)); err != nil {
		return deliveryError(err, "failed to post ephemeral message",
			goerr.V("channel_id", channelID), goerr.V("user_id", userID))
	}
	return nil
}

// CreateChannel creates a public channel named from the case ID and title
func (c *client) CreateChannel(ctx context.Context, caseID int64, caseName string, prefix string) (string, error) {
	channelName := GenerateIncidentChannelName(caseID, caseName, prefix)
	channel, err := c.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: channelName,
		IsPrivate:   false,
	})
	if err != nil {
		return "", deliveryError(err, "failed to create Slack channel",
			goerr.V("channelName", channelName), goerr.V("caseID", caseID))
	}
	return channel.ID, nil
}

func (c *client) InviteUsersToChannel(ctx context.Context, channelID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	if _, err := c.api.InviteUsersToConversationContext(ctx, channelID, userIDs...); err != nil {
		var apiErr slack.SlackErrorResponse
		if errors.As(err, &apiErr) && apiErr.Err == "already_in_channel" {
			return nil
		}
		return deliveryError(err, "failed to invite users", goerr.V("channel_id", channelID), goerr.V("user_ids", userIDs))
	}
	return nil
}

// GetUserInfo retrieves user information for the given user ID
func (c *client) GetUserInfo(ctx context.Context, userID string) (*User, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, deliveryError(err, "failed to get user info", goerr.V("user_id", userID))
	}

	return &User{
		ID:       user.ID,
		Name:     user.Name,
		RealName: user.RealName,
		Email:    user.Profile.Email,
	}, nil
}
