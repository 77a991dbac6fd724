package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
)

func TestCase_Clone(t *testing.T) {
	original := &model.Case{
		ID:       1,
		Title:    "Suspicious login",
		Status:   types.CaseStatusTriage,
		Type:     &model.CaseType{Name: "Account"},
		Assignee: &model.Participant{ID: "U001", Email: "alice@example.com"},
		Signals: []model.Signal{
			{Name: "okta", Fields: []model.SignalField{{Key: "ip", Value: "10.0.0.1"}}},
		},
		Conversation: &model.Conversation{ChannelID: "C001", ThreadID: "1700000000.000100"},
	}

	cloned := original.Clone()
	cloned.Type.Name = "Malware"
	cloned.Assignee.ID = "U999"
	cloned.Signals[0].Fields[0].Value = "changed"
	cloned.Conversation.ThreadID = "changed"

	gt.Value(t, original.Type.Name).Equal("Account")
	gt.Value(t, original.Assignee.ID).Equal("U001")
	gt.Value(t, original.Signals[0].Fields[0].Value).Equal("10.0.0.1")
	gt.Value(t, original.Conversation.ThreadID).Equal("1700000000.000100")
}

func TestCase_CloneNil(t *testing.T) {
	var c *model.Case
	gt.Value(t, c.Clone()).Nil()
}

func TestCase_IsAssignee(t *testing.T) {
	c := &model.Case{Assignee: &model.Participant{ID: "U001"}}
	gt.B(t, c.IsAssignee("U001")).True()
	gt.B(t, c.IsAssignee("U002")).False()
	gt.B(t, c.IsAssignee("")).False()
	gt.B(t, (&model.Case{}).IsAssignee("U001")).False()
}

func TestCaseDisplayName(t *testing.T) {
	gt.Value(t, (&model.Case{ID: 12}).DisplayName()).Equal("CASE-12")
	gt.Value(t, (&model.Case{ID: 12, Name: "PHISH-1"}).DisplayName()).Equal("PHISH-1")
}
