package model

// BlockKind is the display role of a card block
type BlockKind string

const (
	BlockContext BlockKind = "context"
	BlockSection BlockKind = "section"
	BlockFields  BlockKind = "fields"
	BlockDivider BlockKind = "divider"
	BlockActions BlockKind = "actions"
)

// ActionKind is the interactive element type of an action
type ActionKind string

const (
	ActionButton     ActionKind = "button"
	ActionLink       ActionKind = "link"
	ActionUserSelect ActionKind = "user_select"
)

// ActionStyle is a presentation hint for buttons
type ActionStyle string

const (
	ActionStyleDefault ActionStyle = ""
	ActionStylePrimary ActionStyle = "primary"
	ActionStyleDanger  ActionStyle = "danger"
)

// Card is a chat-platform independent rendering of a case at a point in time
type Card struct {
	Blocks []Block `json:"blocks"`

	// Metadata is attached to the posted message itself
	Metadata Subject `json:"metadata"`

	// Fallback is the notification text shown where blocks are unavailable
	Fallback string `json:"fallback"`
}

// Block is one display section of a card
type Block struct {
	Kind      BlockKind `json:"kind"`
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Fields    []Field   `json:"fields,omitempty"`
	Accessory *Action   `json:"accessory,omitempty"`
	Actions   []Action  `json:"actions,omitempty"`
}

// Field is a labelled value inside a fields block
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Action is an interactive element. Value carries the serialized Subject.
type Action struct {
	ID          string      `json:"id"`
	Kind        ActionKind  `json:"kind"`
	Label       string      `json:"label"`
	Style       ActionStyle `json:"style,omitempty"`
	Value       string      `json:"value,omitempty"`
	URL         string      `json:"url,omitempty"`
	InitialUser string      `json:"initial_user,omitempty"`
}

// StateActions returns the actions of the card's action block
func (c *Card) StateActions() []Action {
	for _, b := range c.Blocks {
		if b.Kind == BlockActions {
			return b.Actions
		}
	}
	return nil
}

// AllActions returns every interactive element on the card, accessories included
func (c *Card) AllActions() []Action {
	var actions []Action
	for _, b := range c.Blocks {
		if b.Accessory != nil {
			actions = append(actions, *b.Accessory)
		}
		actions = append(actions, b.Actions...)
	}
	return actions
}
