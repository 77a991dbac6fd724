package slack

import (
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/slack-go/slack"
)

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

// toBlocks converts a card into Block Kit blocks, keeping block order
func toBlocks(card *model.Card) []slack.Block {
	blocks := make([]slack.Block, 0, len(card.Blocks))

	for _, b := range card.Blocks {
		switch b.Kind {
		case model.BlockContext:
			blocks = append(blocks, slack.NewContextBlock(b.ID, mrkdwn(b.Text)))

		case model.BlockSection:
			var accessory *slack.Accessory
			if b.Accessory != nil {
				accessory = slack.NewAccessory(toElement(*b.Accessory))
			}
			blocks = append(blocks, slack.NewSectionBlock(mrkdwn(b.Text), nil, accessory, slack.SectionBlockOptionBlockID(b.ID)))

		case model.BlockFields:
			fields := make([]*slack.TextBlockObject, 0, len(b.Fields))
			for _, f := range b.Fields {
				fields = append(fields, mrkdwn("*"+f.Label+"*\n"+f.Value))
			}
			var text *slack.TextBlockObject
			if b.Text != "" {
				text = mrkdwn(b.Text)
			}
			blocks = append(blocks, slack.NewSectionBlock(text, fields, nil, slack.SectionBlockOptionBlockID(b.ID)))

		case model.BlockDivider:
			blocks = append(blocks, slack.NewDividerBlock())

		case model.BlockActions:
			elements := make([]slack.BlockElement, 0, len(b.Actions))
			for _, a := range b.Actions {
				elements = append(elements, toElement(a))
			}
			blocks = append(blocks, slack.NewActionBlock(b.ID, elements...))
		}
	}

	return blocks
}

func toElement(a model.Action) slack.BlockElement {
	switch a.Kind {
	case model.ActionUserSelect:
		sel := slack.NewOptionsSelectBlockElement(slack.OptTypeUser, plain(a.Label), a.ID)
		sel.InitialUser = a.InitialUser
		return sel

	default:
		btn := slack.NewButtonBlockElement(a.ID, a.Value, plain(a.Label))
		if a.Kind == model.ActionLink {
			btn.URL = a.URL
		}
		switch a.Style {
		case model.ActionStylePrimary:
			btn.Style = slack.StylePrimary
		case model.ActionStyleDanger:
			btn.Style = slack.StyleDanger
		}
		return btn
	}
}

// inputActionID is the action ID of the single element inside a dialog input block
func inputActionID(blockID string) string {
	return blockID + "-input"
}

func toModalView(d *model.Dialog) slack.ModalViewRequest {
	var blocks []slack.Block
	if d.Hint != "" {
		blocks = append(blocks, slack.NewContextBlock("", mrkdwn(d.Hint)))
	}

	for _, f := range d.Fields {
		var element slack.BlockElement
		switch f.Kind {
		case model.DialogFieldSelect:
			options := make([]*slack.OptionBlockObject, 0, len(f.Options))
			var initial *slack.OptionBlockObject
			for _, o := range f.Options {
				opt := slack.NewOptionBlockObject(o, plain(o), nil)
				if o == f.Initial {
					initial = opt
				}
				options = append(options, opt)
			}
			sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain(f.Label), inputActionID(f.BlockID), options...)
			sel.InitialOption = initial
			element = sel

		default:
			input := slack.NewPlainTextInputBlockElement(nil, inputActionID(f.BlockID))
			input.Multiline = f.Kind == model.DialogFieldMultiline
			input.InitialValue = f.Initial
			element = input
		}

		block := slack.NewInputBlock(f.BlockID, plain(f.Label), nil, element)
		block.Optional = f.Optional
		blocks = append(blocks, block)
	}

	view := slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      d.CallbackID,
		PrivateMetadata: d.PrivateMetadata,
		Title:           plain(d.Title),
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
	if d.Submit != "" {
		view.Submit = plain(d.Submit)
	}
	if d.Close != "" {
		view.Close = plain(d.Close)
	}
	return view
}
