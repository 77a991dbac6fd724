package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound   = goerr.New("configuration file not found")
	ErrInvalidConfig    = goerr.New("invalid configuration")
	ErrDuplicateTenant  = goerr.New("duplicate tenant slug")
	ErrDuplicateProject = goerr.New("duplicate project ID")
	ErrUnknownRole      = goerr.New("unknown role")
	ErrMissingName      = goerr.New("name is required")
)

// Context keys for error values
const (
	ConfigPathKey   = "config_path"
	TenantKey       = "tenant"
	ActionKey       = "action_id"
	ProjectIndexKey = "project_index"
)
