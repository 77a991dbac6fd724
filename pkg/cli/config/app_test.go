package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/cli/config"
	"github.com/secmon-lab/caseline/pkg/domain/types"
)

const validConfig = `
default_tenant = "acme"

[[tenant]]
slug = "acme"
name = "Acme Corp"
admins = ["admin@example.com"]
case_types = ["security", "ops"]
case_priorities = ["P1", "P2"]
case_severities = ["high", "low"]
incident_types = ["breach"]
incident_priorities = ["SEV1"]
incident_channel_prefix = "inc"

  [[tenant.project]]
  id = 3
  name = "default"

[[tenant]]
slug = "globex"
name = "Globex"

[[gate]]
action = "case-notification-escalate"
roles = ["assignee", "admin"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caseline.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

func TestLoadAppConfiguration(t *testing.T) {
	cfg, err := config.LoadAppConfiguration(writeConfig(t, validConfig))
	gt.NoError(t, err).Required()

	gt.Value(t, cfg.DefaultTenant).Equal("acme")
	gt.Array(t, cfg.Tenants).Length(2)
	gt.Value(t, cfg.Tenants[0].IncidentChannelPrefix).Equal("inc")
	gt.Array(t, cfg.Tenants[0].Projects).Length(1)
	gt.Value(t, cfg.Tenants[0].Projects[0].ID).Equal(int64(3))

	t.Run("tenant registry", func(t *testing.T) {
		registry, err := cfg.TenantRegistry()
		gt.NoError(t, err).Required()

		tenant, err := registry.Get("acme")
		gt.NoError(t, err).Required()
		gt.Bool(t, tenant.IsAdmin("admin@example.com")).True()
		gt.Value(t, tenant.CaseSeverities).Equal([]string{"high", "low"})

		project, ok := tenant.DefaultProject()
		gt.Bool(t, ok).True()
		gt.Value(t, project.Name).Equal("default")

		def, ok := registry.Default()
		gt.Bool(t, ok).True()
		gt.Value(t, def.Slug).Equal("acme")

		gt.Array(t, registry.List()).Length(2)
	})

	t.Run("gates", func(t *testing.T) {
		gates := cfg.UseCaseGates()
		gt.Array(t, gates).Length(1)
		gt.Value(t, gates[0].ActionID).Equal("case-notification-escalate")
		gt.Value(t, gates[0].Roles).Equal([]types.Role{types.RoleAssignee, types.RoleAdmin})
	})
}

func TestLoadAppConfiguration_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{
			name:    "no tenant",
			content: `default_tenant = ""`,
			want:    config.ErrInvalidConfig,
		},
		{
			name: "duplicate tenant",
			content: `
[[tenant]]
slug = "acme"
name = "Acme"

[[tenant]]
slug = "acme"
name = "Acme again"
`,
			want: config.ErrDuplicateTenant,
		},
		{
			name: "invalid slug",
			content: `
[[tenant]]
slug = "Acme Corp"
name = "Acme"
`,
			want: config.ErrInvalidConfig,
		},
		{
			name: "missing tenant name",
			content: `
[[tenant]]
slug = "acme"
`,
			want: config.ErrMissingName,
		},
		{
			name: "unknown default tenant",
			content: `
default_tenant = "globex"

[[tenant]]
slug = "acme"
name = "Acme"
`,
			want: config.ErrInvalidConfig,
		},
		{
			name: "duplicate project",
			content: `
[[tenant]]
slug = "acme"
name = "Acme"

  [[tenant.project]]
  id = 1
  name = "a"

  [[tenant.project]]
  id = 1
  name = "b"
`,
			want: config.ErrDuplicateProject,
		},
		{
			name: "unknown gate role",
			content: `
[[tenant]]
slug = "acme"
name = "Acme"

[[gate]]
action = "case-notification-reopen"
roles = ["owner"]
`,
			want: config.ErrUnknownRole,
		},
		{
			name: "gate without roles",
			content: `
[[tenant]]
slug = "acme"
name = "Acme"

[[gate]]
action = "case-notification-reopen"
`,
			want: config.ErrInvalidConfig,
		},
		{
			name:    "broken TOML",
			content: `[[tenant`,
			want:    config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadAppConfiguration(writeConfig(t, tt.content))
			gt.Value(t, err).NotNil().Required()
			gt.Bool(t, errors.Is(err, tt.want)).True()
		})
	}
}

func TestLoadAppConfiguration_Missing(t *testing.T) {
	_, err := config.LoadAppConfiguration(filepath.Join(t.TempDir(), "nonexistent.toml"))
	gt.Bool(t, errors.Is(err, config.ErrConfigNotFound)).True()
}
