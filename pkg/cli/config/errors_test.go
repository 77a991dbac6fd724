package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/cli/config"
)

func TestConfigErrors_SentinelIdentification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		sentinelError error
		wantMatch     bool
	}{
		{
			name:          "ErrConfigNotFound can be identified",
			err:           goerr.Wrap(config.ErrConfigNotFound, "failed to load config"),
			sentinelError: config.ErrConfigNotFound,
			wantMatch:     true,
		},
		{
			name:          "ErrDuplicateTenant can be identified",
			err:           goerr.Wrap(config.ErrDuplicateTenant, "found duplicate"),
			sentinelError: config.ErrDuplicateTenant,
			wantMatch:     true,
		},
		{
			name:          "ErrUnknownRole can be identified through two wraps",
			err:           goerr.Wrap(goerr.Wrap(config.ErrUnknownRole, "invalid gate role"), "invalid gate"),
			sentinelError: config.ErrUnknownRole,
			wantMatch:     true,
		},
		{
			name:          "Different sentinel errors do not match",
			err:           goerr.Wrap(config.ErrConfigNotFound, "failed to load config"),
			sentinelError: config.ErrInvalidConfig,
			wantMatch:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, errors.Is(tt.err, tt.sentinelError)).Equal(tt.wantMatch)
		})
	}
}

func TestConfigErrors_ContextExtraction(t *testing.T) {
	err := goerr.Wrap(config.ErrDuplicateTenant, "duplicate tenant",
		goerr.V(config.TenantKey, "acme"))

	var ge *goerr.Error
	if !errors.As(err, &ge) {
		t.Fatal("expected goerr.Error")
	}
	gt.Value(t, ge.Values()[config.TenantKey]).Equal("acme")
}
