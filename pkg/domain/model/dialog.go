package model

// DialogFieldKind is the input type of a dialog field
type DialogFieldKind string

const (
	DialogFieldText      DialogFieldKind = "text"
	DialogFieldMultiline DialogFieldKind = "multiline"
	DialogFieldSelect    DialogFieldKind = "select"
)

// Dialog is a form opened in response to an interaction
type Dialog struct {
	CallbackID string
	Title      string
	Submit     string
	Close      string
	Hint       string

	// PrivateMetadata is the serialized Subject returned with the submission
	PrivateMetadata string

	Fields []DialogField
}

// DialogField is one input of a dialog
type DialogField struct {
	BlockID  string
	Label    string
	Kind     DialogFieldKind
	Initial  string
	Options  []string
	Optional bool
}

// FormValues are decoded dialog submission values keyed by block ID
type FormValues map[string]string

// Get returns the submitted value for the block, or empty when absent
func (f FormValues) Get(blockID string) string {
	if f == nil {
		return ""
	}
	return f[blockID]
}

// Lookup returns the submitted value and whether it was present and non-empty
func (f FormValues) Lookup(blockID string) (string, bool) {
	v := f.Get(blockID)
	return v, v != ""
}
