package usecase

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
)

// Action IDs of case card elements and the dialogs they open
const (
	ActionIDView           = "case-notification-view"
	ActionIDEdit           = "case-notification-edit"
	ActionIDAcknowledge    = "case-notification-acknowledge"
	ActionIDResolve        = "case-notification-resolve"
	ActionIDEscalate       = "case-notification-escalate"
	ActionIDReopen         = "case-notification-reopen"
	ActionIDJoinIncident   = "case-notification-join-incident"
	ActionIDReassign       = "case-notification-reassign"
	ActionIDEditSubmit     = "case-edit-submit"
	ActionIDResolveSubmit  = "case-notification-resolve-submit"
	ActionIDEscalateSubmit = "case-notification-escalate-submit"
	ActionIDReport         = "case-report"
	ActionIDReportSubmit   = "case-report-submit"

	cardActionsBlockID = "case-notification-actions"
)

const (
	// descriptionBudget is the maximum number of characters of a rendered description
	descriptionBudget = 500
	// maxSignalFields is the number of fields shown per signal record
	maxSignalFields   = 10

	ellipsis     = "…"
	missingValue = "-"
)

// Viewer is the context a card is rendered for
type Viewer struct {
	TenantSlug string
	// ChannelID is the channel the card is displayed in
	ChannelID string
	// BaseURL is the web UI root; the View link is omitted when empty
	BaseURL string
}

// CaseSubject builds the subject marker embedded in a case card
func CaseSubject(c *model.Case, viewer Viewer) model.Subject {
	return model.Subject{
		Type:       model.SubjectTypeCase,
		ID:         c.ID,
		TenantSlug: viewer.TenantSlug,
		ProjectID:  c.Project.ID,
		ChannelID:  viewer.ChannelID,
	}
}

// RenderCard renders the current state of a case. It has no side effects and
// returns identical cards for identical input. Assignee, Type and Document
// must be set, otherwise ErrIncompleteEntity is returned.
func RenderCard(c *model.Case, viewer Viewer) (*model.Card, error) {
	if c == nil {
		return nil, goerr.Wrap(ErrIncompleteEntity, "case is nil")
	}

	var missing []string
	if c.Assignee == nil {
		missing = append(missing, "assignee")
	}
	if c.Type == nil {
		missing = append(missing, "type")
	}
	if c.Document == nil {
		missing = append(missing, "document")
	}
	if len(missing) > 0 {
		return nil, goerr.Wrap(ErrIncompleteEntity, "case is missing required relations",
			goerr.V(CaseIDKey, c.ID), goerr.V("missing", missing))
	}

	subject := CaseSubject(c, viewer)
	value, err := subject.Marshal()
	if err != nil {
		return nil, err
	}

	blocks := []model.Block{
		{Kind: model.BlockContext, Text: "*Case Details*"},
		titleBlock(c, viewer, value),
		descriptionBlock(c),
		{
			Kind: model.BlockSection,
			ID:   "case-notification-assignee",
			Text: fmt.Sprintf("*Assignee*\n%s", participantMention(c.Assignee)),
			Accessory: &model.Action{
				ID:          ActionIDReassign,
				Kind:        model.ActionUserSelect,
				Label:       "Select Assignee",
				Value:       value,
				InitialUser: c.Assignee.ID,
			},
		},
		{
			Kind: model.BlockFields,
			Fields: []model.Field{
				{Label: "Status", Value: c.Status.Label()},
				{Label: "Severity", Value: severityName(c.Severity)},
				{Label: "Type", Value: c.Type.Name},
				{Label: "Priority", Value: priorityName(c.Priority)},
			},
		},
	}

	if c.Incident != nil {
		blocks = append(blocks, model.Block{
			Kind: model.BlockSection,
			Text: fmt.Sprintf("*Escalated Incident*\n%s <#%s>", c.Incident.Name, c.Incident.ChannelID),
		})
	}

	blocks = append(blocks, signalBlocks(c.Signals)...)

	blocks = append(blocks, model.Block{
		Kind:    model.BlockActions,
		ID:      cardActionsBlockID,
		Actions: stateActions(c.Status, value),
	})

	return &model.Card{
		Blocks:   blocks,
		Metadata: subject,
		Fallback: fmt.Sprintf("Case %s: %s", c.DisplayName(), c.Title),
	}, nil
}

func titleBlock(c *model.Case, viewer Viewer, value string) model.Block {
	block := model.Block{
		Kind: model.BlockSection,
		Text: fmt.Sprintf("*%s*", c.Title),
	}
	if viewer.BaseURL != "" {
		block.Accessory = &model.Action{
			ID:    ActionIDView,
			Kind:  model.ActionLink,
			Label: "View",
			Value: value,
			URL:   CaseURL(viewer.BaseURL, viewer.TenantSlug, c),
		}
	}
	return block
}

func descriptionBlock(c *model.Case) model.Block {
	text := TruncateText(c.Description, descriptionBudget)
	if c.Document.WebLink != "" {
		text = strings.TrimSpace(text + fmt.Sprintf(" Additional information is available in the <%s|case document>.", c.Document.WebLink))
	}
	if text == "" {
		text = "_No description_"
	}
	return model.Block{Kind: model.BlockSection, Text: text}
}

func signalBlocks(signals []model.Signal) []model.Block {
	if len(signals) == 0 {
		return nil
	}

	blocks := []model.Block{
		{Kind: model.BlockDivider},
		{Kind: model.BlockContext, Text: "*Signal Details*"},
	}
	for i, s := range signals {
		fields := make([]model.Field, 0, min(len(s.Fields), maxSignalFields))
		for _, f := range s.Fields {
			if len(fields) == maxSignalFields {
				break
			}
			fields = append(fields, model.Field{
				Label: strings.TrimSpace(f.Key),
				Value: strings.TrimSpace(f.Value),
			})
		}

		block := model.Block{Kind: model.BlockFields, ID: fmt.Sprintf("case-signal-%d", i), Fields: fields}
		if s.Name != "" {
			block.Text = fmt.Sprintf("*%s*", s.Name)
		}
		blocks = append(blocks, block, model.Block{Kind: model.BlockDivider})
	}
	return blocks
}

// stateActions selects the card buttons for a status
func stateActions(status types.CaseStatus, value string) []model.Action {
	button := func(id, label string, style model.ActionStyle) model.Action {
		return model.Action{ID: id, Kind: model.ActionButton, Label: label, Style: style, Value: value}
	}

	switch status.Normalize() {
	case types.CaseStatusEscalated:
		return []model.Action{
			button(ActionIDJoinIncident, "Join Incident", model.ActionStylePrimary),
		}
	case types.CaseStatusClosed:
		return []model.Action{
			button(ActionIDReopen, "Reopen", model.ActionStyleDefault),
		}
	default:
		return []model.Action{
			button(ActionIDEdit, "Edit", model.ActionStyleDefault),
			button(ActionIDAcknowledge, "Acknowledge", model.ActionStylePrimary),
			button(ActionIDResolve, "Resolve", model.ActionStyleDefault),
			button(ActionIDEscalate, "Escalate", model.ActionStyleDanger),
		}
	}
}

// CardActionIDs lists every action ID a case card can carry
func CardActionIDs() []string {
	return []string{
		ActionIDView,
		ActionIDReassign,
		ActionIDEdit,
		ActionIDAcknowledge,
		ActionIDResolve,
		ActionIDEscalate,
		ActionIDReopen,
		ActionIDJoinIncident,
	}
}

// TruncateText cuts s to at most limit characters and appends an ellipsis
// when anything was removed. Multi-byte characters are never split.
func TruncateText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}

// CaseURL returns the web UI link of a case
func CaseURL(baseURL, tenantSlug string, c *model.Case) string {
	return fmt.Sprintf("%s/%s/cases/%s", strings.TrimRight(baseURL, "/"), tenantSlug, c.DisplayName())
}

func participantMention(p *model.Participant) string {
	if p.ID != "" {
		return fmt.Sprintf("<@%s>", p.ID)
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

func severityName(s *model.CaseSeverity) string {
	if s == nil || s.Name == "" {
		return missingValue
	}
	return s.Name
}

func priorityName(p *model.CasePriority) string {
	if p == nil || p.Name == "" {
		return missingValue
	}
	return p.Name
}
