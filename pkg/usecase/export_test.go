package usecase

// ApplyChange is exported for testing
var ApplyChange = applyChange

// ErrorText is exported for testing
var ErrorText = errorText

// ThreadIntroText is exported for testing
const ThreadIntroText = threadIntroText
