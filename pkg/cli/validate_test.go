package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/cli"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "caseline.toml")
	gt.NoError(t, os.WriteFile(configPath, []byte(content), 0o600)).Required()
	return configPath
}

func TestRun_ValidateCommand_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
default_tenant = "acme"

[[tenant]]
slug = "acme"
name = "Acme Corp"
admins = ["admin@example.com"]
case_types = ["security"]

  [[tenant.project]]
  id = 1
  name = "default"

[[gate]]
action = "case-notification-escalate"
roles = ["assignee", "admin"]

[[gate]]
action = "case-notification-reopen"
roles = ["admin"]
`)

	err := cli.Run(context.Background(), []string{"caseline", "validate", "--config", configPath}, "test")
	gt.NoError(t, err)
}

func TestRun_ValidateCommand_UnknownGateAction(t *testing.T) {
	configPath := writeConfig(t, `
[[tenant]]
slug = "acme"
name = "Acme Corp"

[[gate]]
action = "case-notification-archive"
roles = ["admin"]
`)

	err := cli.Run(context.Background(), []string{"caseline", "validate", "--config", configPath}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_ValidateCommand_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `
[[tenant]]
slug = "INVALID SLUG"
name = "Bad Tenant"
`)

	err := cli.Run(context.Background(), []string{"caseline", "validate", "--config", configPath}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_ValidateCommand_MissingConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nonexistent.toml")

	err := cli.Run(context.Background(), []string{"caseline", "validate", "--config", configPath}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_InvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
[[tenant]]
slug = "acme"
name = "Acme Corp"
`)

	err := cli.Run(context.Background(), []string{"caseline", "--log-level", "loud", "validate", "--config", configPath}, "test")
	gt.Value(t, err).NotNil()
}

func TestIndexConfig(t *testing.T) {
	cfg := cli.GetIndexConfig()
	gt.Array(t, cfg.Collections).Length(1).Required()
	gt.Value(t, cfg.Collections[0].Name).Equal("cases")
	gt.Array(t, cfg.Collections[0].Indexes).Length(1).Required()
	gt.Value(t, cfg.Collections[0].Indexes[0].Fields).Equal([]fireconf.IndexField{
		{Path: "card_stale", Order: fireconf.OrderAscending},
		{Path: "id", Order: fireconf.OrderAscending},
	})
}
