package usecase

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

// Handler executes an action with the assembled request context
type Handler func(ctx context.Context, rc RequestContext) error

// ActionDefinition binds an action ID to its middleware and handler
type ActionDefinition struct {
	ID         string
	Middleware []Middleware
	Handler    Handler
}

// ActionRegistry maps action IDs to definitions. It is populated at startup
// and frozen before traffic is served; after Freeze it is safe for
// concurrent reads without locking.
type ActionRegistry struct {
	defs   map[string]*ActionDefinition
	frozen bool
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		defs: make(map[string]*ActionDefinition),
	}
}

// Register adds an action definition
func (r *ActionRegistry) Register(def ActionDefinition) error {
	if r.frozen {
		return goerr.Wrap(ErrRegistryFrozen, "cannot register action", goerr.V(ActionIDKey, def.ID))
	}
	if def.ID == "" {
		return goerr.New("action ID is required")
	}
	if def.Handler == nil {
		return goerr.New("action handler is required", goerr.V(ActionIDKey, def.ID))
	}
	if _, exists := r.defs[def.ID]; exists {
		return goerr.Wrap(ErrDuplicateAction, "action is already registered", goerr.V(ActionIDKey, def.ID))
	}

	mws := make([]Middleware, len(def.Middleware))
	copy(mws, def.Middleware)
	r.defs[def.ID] = &ActionDefinition{ID: def.ID, Middleware: mws, Handler: def.Handler}
	return nil
}

// Use appends middleware to a registered action, e.g. a capability gate
func (r *ActionRegistry) Use(actionID string, mws ...Middleware) error {
	if r.frozen {
		return goerr.Wrap(ErrRegistryFrozen, "cannot add middleware", goerr.V(ActionIDKey, actionID))
	}
	def, ok := r.defs[actionID]
	if !ok {
		return goerr.Wrap(ErrUnknownAction, "cannot add middleware to unregistered action", goerr.V(ActionIDKey, actionID))
	}
	def.Middleware = append(def.Middleware, mws...)
	return nil
}

// Freeze makes the registry read-only
func (r *ActionRegistry) Freeze() {
	r.frozen = true
}

// Resolve looks up an action definition
func (r *ActionRegistry) Resolve(actionID string) (*ActionDefinition, error) {
	def, ok := r.defs[actionID]
	if !ok {
		return nil, goerr.Wrap(ErrUnknownAction, "action is not registered", goerr.V(ActionIDKey, actionID))
	}
	return def, nil
}

// IDs returns the registered action IDs in lexical order
func (r *ActionRegistry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidationIssue is a problem found while checking the registry
type ValidationIssue struct {
	ActionID string
	Source   string
	Message  string
}

// ValidationResult holds the results of a registry check
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasIssues returns true if there are any validation issues
func (r *ValidationResult) HasIssues() bool {
	return len(r.Issues) > 0
}

// AddIssue adds a validation issue to the result
func (r *ValidationResult) AddIssue(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
}

// Validate checks that every action ID referenced by source is registered
func (r *ActionRegistry) Validate(source string, actionIDs []string, result *ValidationResult) {
	for _, id := range actionIDs {
		if _, ok := r.defs[id]; !ok {
			result.AddIssue(ValidationIssue{
				ActionID: id,
				Source:   source,
				Message:  "action is referenced but not registered",
			})
		}
	}
}

// Err converts the issues into ErrUnknownAction, or nil when there are none
func (r *ValidationResult) Err() error {
	if !r.HasIssues() {
		return nil
	}
	ids := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		ids = append(ids, issue.Source+":"+issue.ActionID)
	}
	return goerr.Wrap(ErrUnknownAction, "action registry is incomplete", goerr.V("actions", ids))
}
