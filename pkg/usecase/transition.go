package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
	"github.com/secmon-lab/caseline/pkg/utils/errutil"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
)

// ProposedChange is a set of changes an actor asks to apply to a case.
// Nil fields are left untouched.
type ProposedChange struct {
	// To is the requested status; empty keeps the current status
	To types.CaseStatus
	// From is the status the actor observed. When set, the change is
	// rejected if the committed status differs.
	From types.CaseStatus

	Title       *string
	Description *string
	Resolution  *string
	Type        *string
	Priority    *string
	Severity    *string
	Assignee    *model.Participant
	Incident    *model.Incident
}

// PublishResult tells what happened to the card after a commit
type PublishResult string

const (
	// PublishUpdated means the card message was updated in place
	PublishUpdated PublishResult = "updated"
	// PublishSuperseded means a newer version had already been published
	PublishSuperseded PublishResult = "superseded"
	// PublishUnbound means the case has not been announced yet
	PublishUnbound PublishResult = "unbound"
	// PublishStale means delivery failed after retries and the card is marked stale
	PublishStale PublishResult = "stale"
)

// RetryPolicy bounds delivery retries
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy is 3 attempts with exponential backoff from 200ms
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, InitialBackoff: 200 * time.Millisecond}

// Do runs fn until it succeeds, fails with an error other than
// ErrDeliveryUnavailable, or the attempts are used up
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, interfaces.ErrDeliveryUnavailable) {
			return backoff.Permanent(err)
		}
		logging.From(ctx).Warn("chat delivery failed",
			"attempt", attempt, "max_attempts", attempts, "error", err.Error())
		return err
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}

// TransitionExecutor applies validated changes to cases and republishes their cards
type TransitionExecutor struct {
	repo    interfaces.Repository
	chat    interfaces.ChatService
	gate    interfaces.PublishGate
	retry   RetryPolicy
	baseURL string
}

func NewTransitionExecutor(repo interfaces.Repository, chat interfaces.ChatService, gate interfaces.PublishGate, retry RetryPolicy, baseURL string) *TransitionExecutor {
	return &TransitionExecutor{
		repo:    repo,
		chat:    chat,
		gate:    gate,
		retry:   retry,
		baseURL: baseURL,
	}
}

// TransitionResult is the committed case and the outcome of its card publish
type TransitionResult struct {
	Case    *model.Case
	Publish PublishResult
}

// Apply validates and commits change atomically, then republishes the card
// of the committed version.
func (e *TransitionExecutor) Apply(ctx context.Context, tenant *model.Tenant, caseID int64, change ProposedChange, actor *model.Actor) (*TransitionResult, error) {
	updated, err := e.repo.Case().Update(ctx, tenant.Slug, caseID, func(c *model.Case) error {
		return applyChange(c, tenant, change)
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrCaseNotFound, "case not found", goerr.V(TenantKey, tenant.Slug), goerr.V(CaseIDKey, caseID))
		}
		return nil, goerr.Wrap(err, "failed to apply case change", goerr.V(TenantKey, tenant.Slug), goerr.V(CaseIDKey, caseID))
	}

	logger := logging.From(ctx)
	attrs := []any{"tenant", tenant.Slug, "case_id", caseID, "version", updated.Version}
	if actor != nil {
		attrs = append(attrs, "actor", actor.Email)
	}
	if change.To != "" {
		attrs = append(attrs, "status", change.To)
	}
	logger.Info("case change committed", attrs...)

	result, err := e.Publish(ctx, tenant.Slug, updated)
	if err != nil {
		return &TransitionResult{Case: updated}, err
	}

	return &TransitionResult{Case: updated, Publish: result}, nil
}

// applyChange runs inside the store transaction and may be invoked more than
// once; it only touches c.
func applyChange(c *model.Case, tenant *model.Tenant, change ProposedChange) error {
	if change.To != "" {
		current := c.Status.Normalize()
		if change.From != "" && current != change.From {
			return goerr.Wrap(ErrInvalidTransition, "case status changed since it was observed",
				goerr.V(CaseIDKey, c.ID), goerr.V("observed", change.From), goerr.V("current", current), goerr.V("requested", change.To))
		}
		if !current.CanTransitionTo(change.To) {
			return goerr.Wrap(ErrInvalidTransition, "status transition is not allowed",
				goerr.V(CaseIDKey, c.ID), goerr.V("current", current), goerr.V("requested", change.To))
		}
		c.Status = change.To
	}

	if change.Title != nil {
		if *change.Title == "" {
			return goerr.Wrap(ErrInvalidField, "title must not be empty", goerr.V(CaseIDKey, c.ID))
		}
		c.Title = *change.Title
	}
	if change.Description != nil {
		c.Description = *change.Description
	}
	if change.Resolution != nil {
		c.Resolution = *change.Resolution
	}
	if change.Type != nil {
		if err := checkOption("type", *change.Type, tenant.CaseTypes); err != nil {
			return err
		}
		c.Type = &model.CaseType{Name: *change.Type}
	}
	if change.Priority != nil {
		if err := checkOption("priority", *change.Priority, tenant.CasePriorities); err != nil {
			return err
		}
		c.Priority = optional(*change.Priority, func(s string) *model.CasePriority { return &model.CasePriority{Name: s} })
	}
	if change.Severity != nil {
		if err := checkOption("severity", *change.Severity, tenant.CaseSeverities); err != nil {
			return err
		}
		c.Severity = optional(*change.Severity, func(s string) *model.CaseSeverity { return &model.CaseSeverity{Name: s} })
	}
	if change.Assignee != nil {
		p := *change.Assignee
		c.Assignee = &p
	}
	if change.Incident != nil {
		inc := *change.Incident
		c.Incident = &inc
	}
	return nil
}

// checkOption accepts any value when the tenant configures no options
func checkOption(field, value string, options []string) error {
	if value == "" || len(options) == 0 || slices.Contains(options, value) {
		return nil
	}
	return goerr.Wrap(ErrInvalidField, "value is not a configured option",
		goerr.V("field", field), goerr.V("value", value), goerr.V("options", options))
}

func optional[T any](value string, build func(string) *T) *T {
	if value == "" {
		return nil
	}
	return build(value)
}

func publishKey(tenantSlug string, caseID int64) string {
	return fmt.Sprintf("%s/%d", tenantSlug, caseID)
}

// Publish re-renders c and updates its card message in place. Publishes of a
// version older than one already published are skipped. When delivery stays
// unavailable after retries the case is flagged stale and nil is returned;
// the entity state is already committed.
func (e *TransitionExecutor) Publish(ctx context.Context, tenantSlug string, c *model.Case) (PublishResult, error) {
	logger := logging.From(ctx)

	if c.Conversation == nil {
		logger.Warn("card publish skipped: case is not announced", "tenant", tenantSlug, "case_id", c.ID)
		return PublishUnbound, nil
	}

	card, err := RenderCard(c, Viewer{
		TenantSlug: tenantSlug,
		ChannelID:  c.Conversation.ChannelID,
		BaseURL:    e.baseURL,
	})
	if err != nil {
		return "", err
	}

	ran, err := e.gate.Publish(ctx, publishKey(tenantSlug, c.ID), c.Version, func(ctx context.Context) error {
		return e.retry.Do(ctx, func(ctx context.Context) error {
			return e.chat.UpdateCard(ctx, *c.Conversation, card)
		})
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrDeliveryUnavailable) {
			errutil.Handle(ctx, err, "card delivery failed, marking card stale")
			if err := e.repo.Case().SetCardStale(ctx, tenantSlug, c.ID, true); err != nil {
				return "", goerr.Wrap(err, "failed to mark card stale", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, c.ID))
			}
			return PublishStale, nil
		}
		return "", goerr.Wrap(err, "failed to publish card", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, c.ID))
	}

	if !ran {
		logger.Debug("card publish superseded by newer version", "tenant", tenantSlug, "case_id", c.ID, "version", c.Version)
		if c.CardStale {
			if err := e.clearSupersededStale(ctx, tenantSlug, c); err != nil {
				return "", err
			}
		}
		return PublishSuperseded, nil
	}

	if c.CardStale {
		if err := e.repo.Case().SetCardStale(ctx, tenantSlug, c.ID, false); err != nil {
			return "", goerr.Wrap(err, "failed to clear stale card flag", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, c.ID))
		}
	}

	return PublishUpdated, nil
}

// clearSupersededStale clears the stale flag left by a failed publish once a
// version at least as new as c is on the card. A newer stored version keeps
// its flag so the resync worker still publishes it.
func (e *TransitionExecutor) clearSupersededStale(ctx context.Context, tenantSlug string, c *model.Case) error {
	stored, err := e.repo.Case().Get(ctx, tenantSlug, c.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to get case", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, c.ID))
	}
	if stored.Version > c.Version || !stored.CardStale {
		return nil
	}
	if err := e.repo.Case().SetCardStale(ctx, tenantSlug, c.ID, false); err != nil {
		return goerr.Wrap(err, "failed to clear stale card flag", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, c.ID))
	}
	return nil
}
