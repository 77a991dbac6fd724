package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// TenantSlug identifies a tenant (organization) and scopes every store call
type TenantSlug string

// Validate checks if the TenantSlug is valid
func (s TenantSlug) Validate() error {
	if s == "" {
		return goerr.New("tenant slug cannot be empty")
	}
	if !slugPattern.MatchString(string(s)) {
		return goerr.New("tenant slug must be lowercase alphanumeric with hyphens", goerr.V("slug", s))
	}
	return nil
}

// String returns the string representation of TenantSlug
func (s TenantSlug) String() string {
	return string(s)
}
