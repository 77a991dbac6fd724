package model

// InteractionKind selects where the subject marker of an interaction lives
type InteractionKind string

const (
	// InteractionButton is a button click; the subject is the button value
	InteractionButton InteractionKind = "button"
	// InteractionViewSubmission is a dialog submit; the subject is the view private metadata
	InteractionViewSubmission InteractionKind = "view_submission"
	// InteractionMessageAction is a non-button element on a posted message; the
	// subject is the message metadata
	InteractionMessageAction InteractionKind = "message_action"
	// InteractionShortcut is a global or message shortcut; it carries no subject
	InteractionShortcut InteractionKind = "shortcut"
)

// Interaction is an inbound user interaction normalized from the chat platform
type Interaction struct {
	ID        string
	Kind      InteractionKind
	ActionID  string
	UserID    string
	UserName  string
	TriggerID string
	ChannelID string

	// Value is the raw value of the clicked element (button interactions)
	Value string
	// PrivateMetadata is the raw private metadata of a submitted view
	PrivateMetadata string
	// MessageMetadata is the metadata payload of the message the element belongs to
	MessageMetadata map[string]any

	// SelectedUser is set for user-select elements
	SelectedUser string
	// MessageText is the text of the message a shortcut was invoked on
	MessageText string
	// State holds raw submitted view values keyed by block ID
	State map[string]string
}

// Actor is the identity executing an interaction
type Actor struct {
	ID    string // chat user ID
	Email string
	Name  string
}

// AsParticipant converts the actor into a case participant
func (a *Actor) AsParticipant() *Participant {
	if a == nil {
		return nil
	}
	return &Participant{ID: a.ID, Email: a.Email, Name: a.Name}
}
