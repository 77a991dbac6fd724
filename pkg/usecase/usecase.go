package usecase

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
)

// Gate is a capability check attached to an action
type Gate struct {
	ActionID string
	Roles    []types.Role
}

type UseCases struct {
	repo     interfaces.Repository
	chat     interfaces.ChatService
	identity interfaces.IdentityResolver
	tenants  *model.TenantRegistry

	baseURL string
	gate    interfaces.PublishGate
	retry   RetryPolicy
	gates   []Gate

	Registry   *ActionRegistry
	Executor   *TransitionExecutor
	Case       *CaseUseCase
	Dispatcher *Dispatcher
}

type Option func(*UseCases)

// WithBaseURL sets the web UI root used for View links and case documents
func WithBaseURL(baseURL string) Option {
	return func(uc *UseCases) {
		uc.baseURL = baseURL
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(uc *UseCases) {
		uc.retry = policy
	}
}

// WithGates attaches capability checks to actions
func WithGates(gates ...Gate) Option {
	return func(uc *UseCases) {
		uc.gates = append(uc.gates, gates...)
	}
}

// New wires the use cases, registers every action, applies gates and
// freezes the registry. publish orders card updates and is required. A gate
// on an unregistered action fails with ErrUnknownAction.
func New(repo interfaces.Repository, chat interfaces.ChatService, identity interfaces.IdentityResolver, tenants *model.TenantRegistry, publish interfaces.PublishGate, opts ...Option) (*UseCases, error) {
	if publish == nil {
		return nil, goerr.New("publish gate is required")
	}

	uc := &UseCases{
		repo:     repo,
		chat:     chat,
		identity: identity,
		tenants:  tenants,
		gate:     publish,
		retry:    DefaultRetryPolicy,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Executor = NewTransitionExecutor(repo, chat, uc.gate, uc.retry, uc.baseURL)
	uc.Case = NewCaseUseCase(repo, chat, tenants, uc.Executor, uc.baseURL)

	registry, result, err := buildRegistry(uc.Case, uc.Executor, chat, identity, uc.gates)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	registry.Freeze()
	uc.Registry = registry

	uc.Dispatcher = NewDispatcher(uc.Registry, tenants, repo, chat)
	return uc, nil
}

// CheckActions builds the action registry without collaborators and reports
// every action a card, dialog, shortcut or gate refers to that is not
// registered
func CheckActions(gates []Gate) (*ValidationResult, error) {
	_, result, err := buildRegistry(nil, nil, nil, nil, gates)
	return result, err
}

func buildRegistry(cases *CaseUseCase, executor *TransitionExecutor, chat interfaces.ChatService, identity interfaces.IdentityResolver, gates []Gate) (*ActionRegistry, *ValidationResult, error) {
	registry := NewActionRegistry()
	if err := RegisterCaseActions(registry, cases, executor, chat, identity); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to register case actions")
	}

	result := &ValidationResult{}
	registry.Validate("card", CardActionIDs(), result)
	registry.Validate("dialog", DialogActionIDs(), result)
	registry.Validate("shortcut", ShortcutActionIDs(), result)

	for _, g := range gates {
		for _, role := range g.Roles {
			if err := role.Validate(); err != nil {
				return nil, nil, goerr.Wrap(err, "invalid gate role", goerr.V(ActionIDKey, g.ActionID))
			}
		}
		if _, err := registry.Resolve(g.ActionID); err != nil {
			registry.Validate("gate", []string{g.ActionID}, result)
			continue
		}
		if err := registry.Use(g.ActionID, RequireRole(g.Roles...)); err != nil {
			return nil, nil, goerr.Wrap(err, "failed to apply gate")
		}
	}

	return registry, result, nil
}
