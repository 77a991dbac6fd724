package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/utils/errutil"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
)

// DispatchState is a step of the interaction state machine
type DispatchState string

const (
	StateReceived        DispatchState = "received"
	StateSubjectResolved DispatchState = "subject_resolved"
	StateSessionAcquired DispatchState = "session_acquired"
	StateAuthorized      DispatchState = "authorized"
	StateHandled         DispatchState = "handled"
	StateAcknowledged    DispatchState = "acknowledged"
	StateError           DispatchState = "error"
)

// Outcome reports how one interaction was processed
type Outcome struct {
	ActionID string
	// State is the terminal state, acknowledged or error
	State DispatchState
	// Trail lists every state passed through in order
	Trail []DispatchState
	// Err is the failure that moved the interaction to the error state
	Err error
	// Acknowledged is true once the ack callback has been called
	Acknowledged bool
}

func (o *Outcome) enter(s DispatchState) {
	o.State = s
	o.Trail = append(o.Trail, s)
}

func (o *Outcome) fail(err error) {
	o.Err = err
	o.enter(StateError)
}

// Dispatcher is the single entry point of inbound interactions
type Dispatcher struct {
	registry *ActionRegistry
	tenants  *model.TenantRegistry
	repo     interfaces.Repository
	chat     interfaces.ChatService
}

func NewDispatcher(registry *ActionRegistry, tenants *model.TenantRegistry, repo interfaces.Repository, chat interfaces.ChatService) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		tenants:  tenants,
		repo:     repo,
		chat:     chat,
	}
}

// Dispatch runs one interaction through subject resolution, session
// acquisition, the action middleware and its handler. ack is called exactly
// once, before the handler mutates anything, and also on every error path.
func (d *Dispatcher) Dispatch(ctx context.Context, in model.Interaction, ack func()) *Outcome {
	logger := logging.From(ctx).With("action_id", in.ActionID, "interaction_kind", in.Kind, "user_id", in.UserID)
	ctx = logging.With(ctx, logger)

	out := &Outcome{ActionID: in.ActionID}
	out.enter(StateReceived)

	var once sync.Once
	acknowledge := func() {
		once.Do(func() {
			if ack != nil {
				ack()
			}
			out.Acknowledged = true
		})
	}
	defer acknowledge()

	def, err := d.registry.Resolve(in.ActionID)
	if err != nil {
		out.fail(err)
		errutil.Handle(ctx, err, "interaction for unregistered action")
		return out
	}

	rc := RequestContext{Interaction: in, Action: def}

	rc, err = ResolveSubject(d.tenants)(ctx, rc)
	if err != nil {
		out.fail(err)
		logger.Warn("interaction dropped: subject could not be resolved", "error", err.Error())
		return out
	}
	out.enter(StateSubjectResolved)

	rc, err = AcquireSession(d.tenants, d.repo)(ctx, rc)
	if err != nil {
		out.fail(err)
		errutil.Handle(ctx, err, "failed to acquire session")
		return out
	}
	out.enter(StateSessionAcquired)
	ctx = logging.With(ctx, logger.With("tenant", rc.Session.Tenant.Slug, "case_id", rc.CaseID()))

	rc, err = Chain(def.Middleware...)(ctx, rc)
	if err != nil {
		out.fail(err)
		d.reply(ctx, rc, err)
		return out
	}
	out.enter(StateAuthorized)

	acknowledge()

	if err := def.Handler(ctx, rc); err != nil {
		out.fail(err)
		d.reply(ctx, rc, err)
		return out
	}
	out.enter(StateHandled)
	out.enter(StateAcknowledged)

	return out
}

// reply converts a handler boundary error into a private message to the
// actor. Errors without a user-facing explanation are only logged.
func (d *Dispatcher) reply(ctx context.Context, rc RequestContext, err error) {
	text, known := errorText(rc, err)
	if !known {
		errutil.Handle(ctx, err, "interaction failed")
		return
	}
	logging.From(ctx).Info("interaction rejected", "reason", text, "error", err.Error())

	channelID := rc.EphemeralChannel()
	if channelID == "" || rc.Interaction.UserID == "" {
		return
	}
	if err := d.chat.PostEphemeral(ctx, channelID, rc.Interaction.UserID, text); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to post ephemeral reply", goerr.V("channel_id", channelID)), "failed to reply to interaction")
	}
}

func errorText(rc RequestContext, err error) (string, bool) {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return fmt.Sprintf("I see you tried to run `%s`. This is a sensitive action and cannot be run with the role you are currently assigned.", rc.Interaction.ActionID), true
	case errors.Is(err, ErrInvalidTransition):
		return "This action is no longer available for the case in its current state. The case card shows the latest state.", true
	case errors.Is(err, ErrIncompleteEntity):
		return "This case is missing required details and cannot be changed yet.", true
	case errors.Is(err, ErrCaseNotFound):
		return "The case for this message could not be found.", true
	case errors.Is(err, ErrInvalidField):
		return "Some of the submitted values are not valid for this case. Please check them and try again.", true
	case errors.Is(err, interfaces.ErrConversationAlreadyBound):
		return "This case has already been announced.", true
	}
	return "", false
}
