package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
	"github.com/secmon-lab/caseline/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// AppConfig is the TOML application configuration
type AppConfig struct {
	DefaultTenant string        `toml:"default_tenant"`
	Tenants       []TenantEntry `toml:"tenant"`
	Gates         []GateEntry   `toml:"gate"`
}

// TenantEntry is one [[tenant]] table
type TenantEntry struct {
	Slug                  string         `toml:"slug"`
	Name                  string         `toml:"name"`
	Admins                []string       `toml:"admins"`
	CaseTypes             []string       `toml:"case_types"`
	CasePriorities        []string       `toml:"case_priorities"`
	CaseSeverities        []string       `toml:"case_severities"`
	IncidentTypes         []string       `toml:"incident_types"`
	IncidentPriorities    []string       `toml:"incident_priorities"`
	IncidentChannelPrefix string         `toml:"incident_channel_prefix"`
	Projects              []ProjectEntry `toml:"project"`
}

type ProjectEntry struct {
	ID   int64  `toml:"id"`
	Name string `toml:"name"`
}

// GateEntry restricts an action to actors holding one of the roles
type GateEntry struct {
	Action string   `toml:"action"`
	Roles  []string `toml:"roles"`
}

// Validate checks if the TenantEntry is valid
func (t *TenantEntry) Validate() error {
	if err := types.TenantSlug(t.Slug).Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid tenant slug", goerr.V(TenantKey, t.Slug), goerr.V("cause", err.Error()))
	}
	if t.Name == "" {
		return goerr.Wrap(ErrMissingName, "tenant name is required", goerr.V(TenantKey, t.Slug))
	}

	projectIDs := make(map[int64]bool)
	for i, p := range t.Projects {
		if p.ID <= 0 {
			return goerr.Wrap(ErrInvalidConfig, "project id must be positive", goerr.V(TenantKey, t.Slug), goerr.V(ProjectIndexKey, i))
		}
		if p.Name == "" {
			return goerr.Wrap(ErrMissingName, "project name is required", goerr.V(TenantKey, t.Slug), goerr.V(ProjectIndexKey, i))
		}
		if projectIDs[p.ID] {
			return goerr.Wrap(ErrDuplicateProject, "duplicate project id", goerr.V(TenantKey, t.Slug), goerr.V("project_id", p.ID))
		}
		projectIDs[p.ID] = true
	}

	return nil
}

// Validate checks if the GateEntry is valid
func (g *GateEntry) Validate() error {
	if g.Action == "" {
		return goerr.Wrap(ErrInvalidConfig, "gate action is required")
	}
	if len(g.Roles) == 0 {
		return goerr.Wrap(ErrInvalidConfig, "gate requires at least one role", goerr.V(ActionKey, g.Action))
	}
	for _, r := range g.Roles {
		if err := types.Role(r).Validate(); err != nil {
			return goerr.Wrap(ErrUnknownRole, "invalid gate role", goerr.V(ActionKey, g.Action), goerr.V("role", r))
		}
	}
	return nil
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if len(a.Tenants) == 0 {
		return goerr.Wrap(ErrInvalidConfig, "at least one tenant is required")
	}

	slugs := make(map[string]bool)
	for _, t := range a.Tenants {
		if err := t.Validate(); err != nil {
			return goerr.Wrap(err, "invalid tenant")
		}
		if slugs[t.Slug] {
			return goerr.Wrap(ErrDuplicateTenant, "duplicate tenant slug", goerr.V(TenantKey, t.Slug))
		}
		slugs[t.Slug] = true
	}

	if a.DefaultTenant != "" && !slugs[a.DefaultTenant] {
		return goerr.Wrap(ErrInvalidConfig, "default tenant is not defined", goerr.V(TenantKey, a.DefaultTenant))
	}

	for _, g := range a.Gates {
		if err := g.Validate(); err != nil {
			return goerr.Wrap(err, "invalid gate")
		}
	}

	return nil
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config", goerr.V(ConfigPathKey, path), goerr.V("cause", err.Error()))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}

// TenantRegistry converts the tenant tables into a registry
func (a *AppConfig) TenantRegistry() (*model.TenantRegistry, error) {
	registry := model.NewTenantRegistry()
	for _, t := range a.Tenants {
		tenant := &model.Tenant{
			Slug:                  t.Slug,
			Name:                  t.Name,
			Admins:                t.Admins,
			CaseTypes:             t.CaseTypes,
			CasePriorities:        t.CasePriorities,
			CaseSeverities:        t.CaseSeverities,
			IncidentTypes:         t.IncidentTypes,
			IncidentPriorities:    t.IncidentPriorities,
			IncidentChannelPrefix: t.IncidentChannelPrefix,
		}
		for _, p := range t.Projects {
			tenant.Projects = append(tenant.Projects, model.Project{ID: p.ID, Name: p.Name})
		}
		registry.Register(tenant)
	}

	if a.DefaultTenant != "" {
		if err := registry.SetDefault(a.DefaultTenant); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// UseCaseGates converts the gate tables into capability checks
func (a *AppConfig) UseCaseGates() []usecase.Gate {
	gates := make([]usecase.Gate, 0, len(a.Gates))
	for _, g := range a.Gates {
		roles := make([]types.Role, len(g.Roles))
		for i, r := range g.Roles {
			roles[i] = types.Role(r)
		}
		gates = append(gates, usecase.Gate{ActionID: g.Action, Roles: roles})
	}
	return gates
}

// App holds the --config flag
type App struct {
	path string
}

func (x *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML application config file",
			Value:       "caseline.toml",
			Sources:     cli.EnvVars("CASELINE_CONFIG"),
			Destination: &x.path,
		},
	}
}

func (x *App) Path() string {
	return x.path
}

// Configure loads and validates the config file
func (x *App) Configure() (*AppConfig, error) {
	return LoadAppConfiguration(x.path)
}
