package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/usecase"
	"github.com/secmon-lab/caseline/pkg/utils/async"
	"github.com/secmon-lab/caseline/pkg/utils/errutil"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// DefaultAckTimeout is how long an interaction response waits for the
// dispatcher to acknowledge. Slack discards interactions not answered
// within 3 seconds.
const DefaultAckTimeout = 2500 * time.Millisecond

// processTimeout bounds the background processing of one interaction
const processTimeout = 2 * time.Minute

// Dispatcher processes one normalized interaction
type Dispatcher interface {
	Dispatch(ctx context.Context, in model.Interaction, ack func()) *usecase.Outcome
}

// SlackInteractionHandler handles Slack interactive component payloads
// (block actions, view submissions and shortcuts)
type SlackInteractionHandler struct {
	dispatcher Dispatcher
	ackTimeout time.Duration
}

// NewSlackInteractionHandler creates a new Slack interaction handler
func NewSlackInteractionHandler(dispatcher Dispatcher, ackTimeout time.Duration) *SlackInteractionHandler {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	return &SlackInteractionHandler{
		dispatcher: dispatcher,
		ackTimeout: ackTimeout,
	}
}

// ServeHTTP dispatches the interaction in the background and answers as soon
// as it is acknowledged or the ack deadline passes
func (h *SlackInteractionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Slack sends interaction payloads as application/x-www-form-urlencoded
	// with a "payload" field containing JSON
	payload := r.FormValue("payload")
	if payload == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("missing payload field in interaction request"), http.StatusBadRequest)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse interaction payload"), http.StatusBadRequest)
		return
	}

	in, ok := toInteraction(&callback)
	if !ok {
		logging.From(ctx).Debug("ignored slack interaction", "type", callback.Type)
		w.WriteHeader(http.StatusOK)
		return
	}
	in.ID = uuid.NewString()

	logger := logging.From(ctx).With("interaction_id", in.ID)
	ctx = logging.With(ctx, logger)

	acked := make(chan struct{})
	var once sync.Once
	ack := func() { once.Do(func() { close(acked) }) }

	async.Dispatch(ctx, func(ctx context.Context) error {
		out := h.dispatcher.Dispatch(ctx, in, ack)
		logging.From(ctx).Info("interaction processed",
			"action_id", out.ActionID,
			"state", out.State,
			"trail", out.Trail)
		return nil
	}, async.WithTimeout(processTimeout))

	timer := time.NewTimer(h.ackTimeout)
	defer timer.Stop()

	select {
	case <-acked:
	case <-timer.C:
		logger.Warn("interaction was not acknowledged before deadline", "timeout", h.ackTimeout.String())
	case <-ctx.Done():
		return
	}

	w.WriteHeader(http.StatusOK)
}

// toInteraction normalizes a Slack callback. The second value is false for
// callbacks that carry nothing to dispatch.
func toInteraction(cb *slack.InteractionCallback) (model.Interaction, bool) {
	in := model.Interaction{
		UserID:    cb.User.ID,
		UserName:  cb.User.Name,
		TriggerID: cb.TriggerID,
		ChannelID: cb.Channel.ID,
	}

	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		if len(cb.ActionCallback.BlockActions) == 0 {
			return in, false
		}
		action := cb.ActionCallback.BlockActions[0]
		in.ActionID = action.ActionID

		if in.ChannelID == "" {
			in.ChannelID = cb.Container.ChannelID
		}

		if action.SelectedUser != "" || action.Type == slack.ActionType(slack.OptTypeUser) {
			// selects carry no value of their own; the subject is on the message
			in.Kind = model.InteractionMessageAction
			in.SelectedUser = action.SelectedUser
			in.MessageMetadata = cb.Message.Metadata.EventPayload
		} else {
			in.Kind = model.InteractionButton
			in.Value = action.Value
		}
		return in, true

	case slack.InteractionTypeViewSubmission:
		in.Kind = model.InteractionViewSubmission
		in.ActionID = cb.View.CallbackID
		in.PrivateMetadata = cb.View.PrivateMetadata
		in.State = viewStateValues(cb.View.State)
		return in, true

	case slack.InteractionTypeShortcut, slack.InteractionTypeMessageAction:
		in.Kind = model.InteractionShortcut
		in.ActionID = cb.CallbackID
		in.MessageText = cb.Message.Text
		return in, true
	}

	return in, false
}

// viewStateValues flattens submitted view values into one value per input block
func viewStateValues(state *slack.ViewState) map[string]string {
	values := make(map[string]string)
	if state == nil {
		return values
	}

	for blockID, actions := range state.Values {
		for _, action := range actions {
			switch {
			case action.SelectedOption.Value != "":
				values[blockID] = action.SelectedOption.Value
			case action.SelectedUser != "":
				values[blockID] = action.SelectedUser
			default:
				values[blockID] = action.Value
			}
		}
	}
	return values
}
