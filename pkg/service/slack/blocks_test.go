package slack_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/service/slack"
	goslack "github.com/slack-go/slack"
)

func TestToBlocksKeepsOrderAndKinds(t *testing.T) {
	blocks := slack.ToBlocks(testCard())
	gt.Array(t, blocks).Length(5).Required()

	gt.Value(t, blocks[0].BlockType()).Equal(goslack.MBTContext)
	gt.Value(t, blocks[1].BlockType()).Equal(goslack.MBTSection)
	gt.Value(t, blocks[2].BlockType()).Equal(goslack.MBTSection)
	gt.Value(t, blocks[3].BlockType()).Equal(goslack.MBTDivider)
	gt.Value(t, blocks[4].BlockType()).Equal(goslack.MBTAction)

	section, ok := blocks[1].(*goslack.SectionBlock)
	gt.Value(t, ok).Equal(true).Required()
	gt.Value(t, section.Accessory.ButtonElement.URL).Equal("https://ui.example.com/acme/cases/CASE-1")

	actions, ok := blocks[4].(*goslack.ActionBlock)
	gt.Value(t, ok).Equal(true).Required()
	gt.Array(t, actions.Elements.ElementSet).Length(1).Required()
	btn, ok := actions.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	gt.Value(t, ok).Equal(true).Required()
	gt.Value(t, btn.ActionID).Equal("case-notification-acknowledge")
	gt.Value(t, btn.Style).Equal(goslack.StylePrimary)
	gt.String(t, btn.Value).Contains(`"tenant_slug":"acme"`)
}

func TestToBlocksUserSelect(t *testing.T) {
	card := &model.Card{Blocks: []model.Block{
		{Kind: model.BlockSection, Text: "*Assignee*", Accessory: &model.Action{
			ID: "case-notification-reassign", Kind: model.ActionUserSelect, Label: "Select assignee", InitialUser: "U1",
		}},
	}}

	blocks := slack.ToBlocks(card)
	section := blocks[0].(*goslack.SectionBlock)
	gt.Value(t, section.Accessory.SelectElement.Type).Equal(goslack.OptTypeUser)
	gt.Value(t, section.Accessory.SelectElement.InitialUser).Equal("U1")
	gt.Value(t, section.Accessory.SelectElement.ActionID).Equal("case-notification-reassign")
}

func TestToModalView(t *testing.T) {
	view := slack.ToModalView(&model.Dialog{
		CallbackID:      "case-notification-resolve-submit",
		Title:           "Resolve Case",
		Submit:          "Resolve",
		Close:           "Cancel",
		PrivateMetadata: `{"type":"case","id":1,"tenant_slug":"acme"}`,
		Fields: []model.DialogField{
			{BlockID: "resolution", Label: "Resolution", Kind: model.DialogFieldMultiline, Initial: "fixed"},
			{BlockID: "severity", Label: "Severity", Kind: model.DialogFieldSelect, Options: []string{"Low", "High"}, Initial: "High", Optional: true},
		},
	})

	gt.Value(t, view.Type).Equal(goslack.VTModal)
	gt.Value(t, view.CallbackID).Equal("case-notification-resolve-submit")
	gt.Value(t, view.PrivateMetadata).Equal(`{"type":"case","id":1,"tenant_slug":"acme"}`)
	gt.Value(t, view.Submit.Text).Equal("Resolve")
	gt.Array(t, view.Blocks.BlockSet).Length(2).Required()

	text := view.Blocks.BlockSet[0].(*goslack.InputBlock)
	gt.Value(t, text.BlockID).Equal("resolution")
	input := text.Element.(*goslack.PlainTextInputBlockElement)
	gt.Bool(t, input.Multiline).True()
	gt.Value(t, input.InitialValue).Equal("fixed")
	gt.Value(t, input.ActionID).Equal(slack.InputActionID("resolution"))

	sel := view.Blocks.BlockSet[1].(*goslack.InputBlock)
	gt.Bool(t, sel.Optional).True()
	opts := sel.Element.(*goslack.SelectBlockElement)
	gt.Array(t, opts.Options).Length(2)
	gt.Value(t, opts.InitialOption.Value).Equal("High")
}
