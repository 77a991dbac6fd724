package slack

// Export internal functions for testing
var (
	TruncateToMaxBytes = truncateToMaxBytes
	ToBlocks           = toBlocks
	ToModalView        = toModalView
	InputActionID      = inputActionID
)
