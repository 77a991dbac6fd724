package model

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

// Tenant holds the configuration of one organization
type Tenant struct {
	Slug                  string
	Name                  string
	Admins                []string // emails
	Projects              []Project
	CaseTypes             []string
	CasePriorities        []string
	CaseSeverities        []string
	IncidentTypes         []string
	IncidentPriorities    []string
	IncidentChannelPrefix string
}

// IsAdmin reports whether the email belongs to a tenant admin
func (t *Tenant) IsAdmin(email string) bool {
	return email != "" && slices.Contains(t.Admins, email)
}

// DefaultProject returns the first configured project
func (t *Tenant) DefaultProject() (Project, bool) {
	if len(t.Projects) == 0 {
		return Project{}, false
	}
	return t.Projects[0], true
}

// ErrTenantNotFound is returned when a tenant is not found in the registry
var ErrTenantNotFound = goerr.New("tenant not found")

// TenantRegistry holds tenant configurations.
// It does not hold Repository or UseCase instances (settings only).
type TenantRegistry struct {
	entries       map[string]*Tenant
	order         []string // preserves registration order
	defaultTenant string
}

// NewTenantRegistry creates a new empty TenantRegistry
func NewTenantRegistry() *TenantRegistry {
	return &TenantRegistry{
		entries: make(map[string]*Tenant),
	}
}

// Register adds a tenant to the registry
func (r *TenantRegistry) Register(t *Tenant) {
	if _, exists := r.entries[t.Slug]; !exists {
		r.order = append(r.order, t.Slug)
	}
	r.entries[t.Slug] = t
}

// SetDefault sets the tenant used when an interaction carries no subject
func (r *TenantRegistry) SetDefault(slug string) error {
	if _, ok := r.entries[slug]; !ok {
		return goerr.Wrap(ErrTenantNotFound, "default tenant is not registered", goerr.V("tenant", slug))
	}
	r.defaultTenant = slug
	return nil
}

// Default returns the default tenant, if one is configured
func (r *TenantRegistry) Default() (*Tenant, bool) {
	if r.defaultTenant == "" {
		return nil, false
	}
	t, ok := r.entries[r.defaultTenant]
	return t, ok
}

// Get retrieves a tenant by slug
func (r *TenantRegistry) Get(slug string) (*Tenant, error) {
	t, ok := r.entries[slug]
	if !ok {
		return nil, goerr.Wrap(ErrTenantNotFound, "tenant not found",
			goerr.V("tenant", slug))
	}
	return t, nil
}

// List returns all registered tenants in registration order
func (r *TenantRegistry) List() []*Tenant {
	result := make([]*Tenant, 0, len(r.order))
	for _, slug := range r.order {
		result = append(result, r.entries[slug])
	}
	return result
}
