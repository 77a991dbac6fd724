package config

import "time"

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, signingSecret, apiURL string) *Slack {
	return &Slack{
		botToken:      botToken,
		signingSecret: signingSecret,
		apiURL:        apiURL,
	}
}

func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

func NewPublishGateForTest(backend, addr string) *PublishGate {
	return &PublishGate{backend: backend, addr: addr, keyPrefix: "test:"}
}

func NewPublishGateWithTTLForTest(backend, addr string, ttl time.Duration) *PublishGate {
	return &PublishGate{backend: backend, addr: addr, keyPrefix: "test:", stateTTL: ttl}
}

func NewRepositoryForTest(backend, projectID string) *Repository {
	return &Repository{backend: backend, projectID: projectID}
}
