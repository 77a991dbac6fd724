package usecase

import (
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
	"github.com/secmon-lab/caseline/pkg/utils/errutil"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
)

// Block IDs of dialog inputs
const (
	FieldTitle            = "case-title"
	FieldDescription      = "case-description"
	FieldType             = "case-type"
	FieldPriority         = "case-priority"
	FieldSeverity         = "case-severity"
	FieldResolution       = "case-resolution"
	FieldIncidentType     = "incident-type"
	FieldIncidentPriority = "incident-priority"
)

// caseActions holds the handlers of case card interactions
type caseActions struct {
	cases    *CaseUseCase
	executor *TransitionExecutor
	chat     interfaces.ChatService
	identity interfaces.IdentityResolver
}

// RegisterCaseActions registers every case card, dialog and shortcut action
func RegisterCaseActions(registry *ActionRegistry, cases *CaseUseCase, executor *TransitionExecutor, chat interfaces.ChatService, identity interfaces.IdentityResolver) error {
	a := &caseActions{cases: cases, executor: executor, chat: chat, identity: identity}
	user := ResolveUser(identity)

	defs := []ActionDefinition{
		{ID: ActionIDView, Handler: a.view},
		{ID: ActionIDEdit, Middleware: []Middleware{user, LoadCase()}, Handler: a.openEdit},
		{ID: ActionIDEditSubmit, Middleware: []Middleware{user, LoadCase(), DecodeForm()}, Handler: a.submitEdit},
		{ID: ActionIDAcknowledge, Middleware: []Middleware{user, LoadCase()}, Handler: a.acknowledge},
		{ID: ActionIDResolve, Middleware: []Middleware{user, LoadCase()}, Handler: a.openResolve},
		{ID: ActionIDResolveSubmit, Middleware: []Middleware{user, LoadCase(), DecodeForm()}, Handler: a.submitResolve},
		{ID: ActionIDEscalate, Middleware: []Middleware{user, LoadCase()}, Handler: a.openEscalate},
		{ID: ActionIDEscalateSubmit, Middleware: []Middleware{user, LoadCase(), DecodeForm()}, Handler: a.submitEscalate},
		{ID: ActionIDReopen, Middleware: []Middleware{user, LoadCase()}, Handler: a.reopen},
		{ID: ActionIDJoinIncident, Middleware: []Middleware{user, LoadCase()}, Handler: a.joinIncident},
		{ID: ActionIDReassign, Middleware: []Middleware{user, LoadCase()}, Handler: a.reassign},
		{ID: ActionIDReport, Middleware: []Middleware{user}, Handler: a.openReport},
		{ID: ActionIDReportSubmit, Middleware: []Middleware{user, DecodeForm()}, Handler: a.submitReport},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// DialogActionIDs lists the callback IDs of dialogs opened by case actions
func DialogActionIDs() []string {
	return []string{
		ActionIDEditSubmit,
		ActionIDResolveSubmit,
		ActionIDEscalateSubmit,
		ActionIDReportSubmit,
	}
}

// ShortcutActionIDs lists the shortcut callback IDs
func ShortcutActionIDs() []string {
	return []string{ActionIDReport}
}

// view is the link button; the chat platform still reports the click
func (a *caseActions) view(ctx context.Context, rc RequestContext) error {
	return nil
}

func (a *caseActions) openEdit(ctx context.Context, rc RequestContext) error {
	c := rc.Case
	tenant := rc.Session.Tenant

	dialog, err := a.dialog(rc, ActionIDEditSubmit, "Edit Case", "Update",
		model.DialogField{BlockID: FieldTitle, Label: "Title", Kind: model.DialogFieldText, Initial: c.Title},
		model.DialogField{BlockID: FieldDescription, Label: "Description", Kind: model.DialogFieldMultiline, Initial: c.Description, Optional: true},
		optionField(FieldType, "Type", tenant.CaseTypes, typeName(c.Type), false),
		optionField(FieldPriority, "Priority", tenant.CasePriorities, nameOrEmpty(priorityName(c.Priority)), true),
		optionField(FieldSeverity, "Severity", tenant.CaseSeverities, nameOrEmpty(severityName(c.Severity)), true),
	)
	if err != nil {
		return err
	}
	return a.open(ctx, rc, dialog)
}

func (a *caseActions) submitEdit(ctx context.Context, rc RequestContext) error {
	change := ProposedChange{
		Title:       formValue(rc.Form, FieldTitle),
		Description: formValue(rc.Form, FieldDescription),
		Type:        nonEmptyFormValue(rc.Form, FieldType),
		Priority:    formValue(rc.Form, FieldPriority),
		Severity:    formValue(rc.Form, FieldSeverity),
	}
	_, err := a.executor.Apply(ctx, rc.Session.Tenant, rc.Case.ID, change, rc.Actor)
	return err
}

// acknowledge takes the case; a new case also moves into triage
func (a *caseActions) acknowledge(ctx context.Context, rc RequestContext) error {
	change := ProposedChange{Assignee: rc.Actor.AsParticipant()}
	if rc.Case.Status.Normalize() == types.CaseStatusNew {
		change.From = types.CaseStatusNew
		change.To = types.CaseStatusTriage
	}
	_, err := a.executor.Apply(ctx, rc.Session.Tenant, rc.Case.ID, change, rc.Actor)
	return err
}

func (a *caseActions) openResolve(ctx context.Context, rc RequestContext) error {
	c := rc.Case
	tenant := rc.Session.Tenant

	if !c.Status.CanTransitionTo(types.CaseStatusClosed) {
		return invalidTransition(c, types.CaseStatusClosed)
	}

	dialog, err := a.dialog(rc, ActionIDResolveSubmit, "Resolve Case", "Resolve",
		model.DialogField{BlockID: FieldResolution, Label: "Resolution", Kind: model.DialogFieldMultiline, Initial: c.Resolution},
		optionField(FieldType, "Type", tenant.CaseTypes, typeName(c.Type), false),
		optionField(FieldPriority, "Priority", tenant.CasePriorities, nameOrEmpty(priorityName(c.Priority)), true),
	)
	if err != nil {
		return err
	}
	return a.open(ctx, rc, dialog)
}

func (a *caseActions) submitResolve(ctx context.Context, rc RequestContext) error {
	change := ProposedChange{
		From:       rc.Case.Status.Normalize(),
		To:         types.CaseStatusClosed,
		Resolution: formValue(rc.Form, FieldResolution),
		Type:       nonEmptyFormValue(rc.Form, FieldType),
		Priority:   formValue(rc.Form, FieldPriority),
	}
	_, err := a.executor.Apply(ctx, rc.Session.Tenant, rc.Case.ID, change, rc.Actor)
	return err
}

func (a *caseActions) openEscalate(ctx context.Context, rc RequestContext) error {
	c := rc.Case
	tenant := rc.Session.Tenant

	if !c.Status.CanTransitionTo(types.CaseStatusEscalated) {
		return invalidTransition(c, types.CaseStatusEscalated)
	}

	dialog, err := a.dialog(rc, ActionIDEscalateSubmit, "Escalate Case", "Escalate",
		model.DialogField{BlockID: FieldTitle, Label: "Incident Title", Kind: model.DialogFieldText, Initial: c.Title},
		model.DialogField{BlockID: FieldDescription, Label: "Incident Description", Kind: model.DialogFieldMultiline, Initial: c.Description, Optional: true},
		optionField(FieldIncidentType, "Incident Type", tenant.IncidentTypes, "", false),
		optionField(FieldIncidentPriority, "Incident Priority", tenant.IncidentPriorities, "", false),
	)
	if err != nil {
		return err
	}
	dialog.Hint = "An incident channel will be created and you will be invited to it."
	return a.open(ctx, rc, dialog)
}

// submitEscalate creates the incident channel before the case moves to
// escalated, so the card can link to it
func (a *caseActions) submitEscalate(ctx context.Context, rc RequestContext) error {
	c := rc.Case
	tenant := rc.Session.Tenant
	observed := c.Status.Normalize()

	if !observed.CanTransitionTo(types.CaseStatusEscalated) {
		return invalidTransition(c, types.CaseStatusEscalated)
	}

	title := rc.Form.Get(FieldTitle)
	if title == "" {
		title = c.Title
	}
	if err := checkOption("incident_type", rc.Form.Get(FieldIncidentType), tenant.IncidentTypes); err != nil {
		return err
	}
	if err := checkOption("incident_priority", rc.Form.Get(FieldIncidentPriority), tenant.IncidentPriorities); err != nil {
		return err
	}

	channelID, err := a.chat.CreateChannel(ctx, c.ID, title, tenant.IncidentChannelPrefix)
	if err != nil {
		return goerr.Wrap(err, "failed to create incident channel", goerr.V(CaseIDKey, c.ID))
	}

	change := ProposedChange{
		From:     observed,
		To:       types.CaseStatusEscalated,
		Incident: &model.Incident{Name: title, ChannelID: channelID},
	}
	if _, err := a.executor.Apply(ctx, tenant, c.ID, change, rc.Actor); err != nil {
		logging.From(ctx).Warn("incident channel created but escalation was not committed",
			"case_id", c.ID, "channel_id", channelID)
		return err
	}

	if err := a.chat.InviteUsersToChannel(ctx, channelID, []string{rc.Actor.ID}); err != nil {
		errutil.Handle(ctx, err, "failed to invite actor to incident channel")
	}
	return nil
}

func (a *caseActions) reopen(ctx context.Context, rc RequestContext) error {
	change := ProposedChange{
		From: types.CaseStatusClosed,
		To:   types.CaseStatusTriage,
	}
	_, err := a.executor.Apply(ctx, rc.Session.Tenant, rc.Case.ID, change, rc.Actor)
	return err
}

func (a *caseActions) joinIncident(ctx context.Context, rc RequestContext) error {
	if rc.Case.Incident == nil || rc.Case.Incident.ChannelID == "" {
		return goerr.Wrap(ErrIncompleteEntity, "case has no incident", goerr.V(CaseIDKey, rc.Case.ID))
	}
	if err := a.chat.InviteUsersToChannel(ctx, rc.Case.Incident.ChannelID, []string{rc.Actor.ID}); err != nil {
		return goerr.Wrap(err, "failed to join incident channel", goerr.V(CaseIDKey, rc.Case.ID))
	}
	return nil
}

func (a *caseActions) reassign(ctx context.Context, rc RequestContext) error {
	userID := rc.Interaction.SelectedUser
	if userID == "" {
		return goerr.Wrap(ErrInvalidField, "no user selected", goerr.V(CaseIDKey, rc.Case.ID))
	}
	if rc.Case.IsAssignee(userID) {
		return nil
	}

	selected, err := a.identity.CurrentActor(ctx, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve selected user", goerr.V("user_id", userID))
	}

	change := ProposedChange{Assignee: selected.AsParticipant()}
	_, err = a.executor.Apply(ctx, rc.Session.Tenant, rc.Case.ID, change, rc.Actor)
	return err
}

func (a *caseActions) openReport(ctx context.Context, rc RequestContext) error {
	tenant := rc.Session.Tenant

	dialog, err := a.dialog(rc, ActionIDReportSubmit, "Report Case", "Report",
		model.DialogField{BlockID: FieldTitle, Label: "Title", Kind: model.DialogFieldText},
		model.DialogField{BlockID: FieldDescription, Label: "Description", Kind: model.DialogFieldMultiline, Initial: rc.Interaction.MessageText, Optional: true},
		optionField(FieldType, "Type", tenant.CaseTypes, "", false),
		optionField(FieldSeverity, "Severity", tenant.CaseSeverities, "", true),
	)
	if err != nil {
		return err
	}
	return a.open(ctx, rc, dialog)
}

// submitReport creates the case with the reporter as assignee and announces
// it in the channel the shortcut was used in
func (a *caseActions) submitReport(ctx context.Context, rc RequestContext) error {
	channelID := rc.EphemeralChannel()
	if channelID == "" {
		return goerr.Wrap(ErrInvalidField, "report has no channel to announce in")
	}

	created, err := a.cases.CreateCase(ctx, rc.Session.Tenant.Slug, NewCase{
		Title:       rc.Form.Get(FieldTitle),
		Description: rc.Form.Get(FieldDescription),
		Type:        rc.Form.Get(FieldType),
		Severity:    rc.Form.Get(FieldSeverity),
		Assignee:    *rc.Actor.AsParticipant(),
	})
	if err != nil {
		return err
	}

	if _, err := a.cases.Announce(ctx, rc.Session.Tenant.Slug, created.ID, channelID); err != nil {
		return err
	}
	return nil
}

// dialog builds a dialog whose submission carries the current subject
func (a *caseActions) dialog(rc RequestContext, callbackID, title, submit string, fields ...model.DialogField) (*model.Dialog, error) {
	subject := *rc.Subject
	if subject.ChannelID == "" {
		subject.ChannelID = rc.Interaction.ChannelID
	}
	metadata, err := subject.Marshal()
	if err != nil {
		return nil, err
	}

	return &model.Dialog{
		CallbackID:      callbackID,
		Title:           title,
		Submit:          submit,
		Close:           "Cancel",
		PrivateMetadata: metadata,
		Fields:          fields,
	}, nil
}

func (a *caseActions) open(ctx context.Context, rc RequestContext, dialog *model.Dialog) error {
	if rc.Interaction.TriggerID == "" {
		return goerr.New("interaction has no trigger", goerr.V(ActionIDKey, rc.Interaction.ActionID))
	}
	if err := a.chat.OpenDialog(ctx, rc.Interaction.TriggerID, dialog); err != nil {
		return goerr.Wrap(err, "failed to open dialog", goerr.V(ActionIDKey, rc.Interaction.ActionID))
	}
	return nil
}

// optionField is a select over options, or a text input when the tenant
// configures none
func optionField(blockID, label string, options []string, initial string, optional bool) model.DialogField {
	if len(options) == 0 {
		return model.DialogField{BlockID: blockID, Label: label, Kind: model.DialogFieldText, Initial: initial, Optional: optional}
	}
	if !slices.Contains(options, initial) {
		initial = ""
	}
	return model.DialogField{BlockID: blockID, Label: label, Kind: model.DialogFieldSelect, Options: options, Initial: initial, Optional: optional}
}

// formValue returns a pointer to the submitted value when the field was part
// of the form, so an emptied optional field clears the value
func formValue(form model.FormValues, blockID string) *string {
	v, ok := form[blockID]
	if !ok {
		return nil
	}
	return &v
}

func nonEmptyFormValue(form model.FormValues, blockID string) *string {
	v, ok := form.Lookup(blockID)
	if !ok {
		return nil
	}
	return &v
}

func invalidTransition(c *model.Case, to types.CaseStatus) error {
	return goerr.Wrap(ErrInvalidTransition, "status transition is not allowed",
		goerr.V(CaseIDKey, c.ID), goerr.V("current", c.Status.Normalize()), goerr.V("requested", to))
}

func typeName(t *model.CaseType) string {
	if t == nil {
		return ""
	}
	return t.Name
}

func nameOrEmpty(name string) string {
	if name == missingValue {
		return ""
	}
	return name
}
