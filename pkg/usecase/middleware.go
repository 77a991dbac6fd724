package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
)

// Session is a tenant-scoped view of the case store
type Session struct {
	Tenant *model.Tenant
	cases  interfaces.CaseRepository
}

// NewSession scopes the case store to a tenant
func NewSession(tenant *model.Tenant, cases interfaces.CaseRepository) *Session {
	return &Session{Tenant: tenant, cases: cases}
}

// GetCase retrieves a case of the session tenant
func (s *Session) GetCase(ctx context.Context, id int64) (*model.Case, error) {
	c, err := s.cases.Get(ctx, s.Tenant.Slug, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrCaseNotFound, "case not found",
				goerr.V(TenantKey, s.Tenant.Slug), goerr.V(CaseIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get case", goerr.V(TenantKey, s.Tenant.Slug), goerr.V(CaseIDKey, id))
	}
	return c, nil
}

// RequestContext is the state assembled for one interaction. Middleware never
// modifies a RequestContext in place; it returns an extended copy.
type RequestContext struct {
	Interaction model.Interaction
	Action      *ActionDefinition
	Subject     *model.Subject
	Session     *Session
	Actor       *model.Actor
	Case        *model.Case
	Form        model.FormValues
}

// EphemeralChannel is the channel used to answer the actor privately
func (rc RequestContext) EphemeralChannel() string {
	if rc.Interaction.ChannelID != "" {
		return rc.Interaction.ChannelID
	}
	if rc.Subject != nil {
		return rc.Subject.ChannelID
	}
	return ""
}

// CaseID returns the case the subject refers to, or 0
func (rc RequestContext) CaseID() int64 {
	if rc.Subject == nil || rc.Subject.Type != model.SubjectTypeCase {
		return 0
	}
	return rc.Subject.ID
}

// Middleware derives the next request context from the current one
type Middleware func(ctx context.Context, rc RequestContext) (RequestContext, error)

// Chain composes middleware into one step that runs them in order and stops
// at the first error
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, rc RequestContext) (RequestContext, error) {
		for _, mw := range mws {
			next, err := mw(ctx, rc)
			if err != nil {
				return rc, err
			}
			rc = next
		}
		return rc, nil
	}
}

// ResolveSubject extracts the subject marker from the payload location that
// matches the interaction kind. When no marker is present the default tenant
// is used and the subject is flagged as defaulted.
func ResolveSubject(tenants *model.TenantRegistry) Middleware {
	return func(ctx context.Context, rc RequestContext) (RequestContext, error) {
		in := rc.Interaction

		var raw string
		var payload map[string]any
		switch in.Kind {
		case model.InteractionButton:
			raw = in.Value
		case model.InteractionViewSubmission:
			raw = in.PrivateMetadata
		case model.InteractionMessageAction:
			payload = in.MessageMetadata
		}

		switch {
		case raw != "":
			subject, err := model.ParseSubject(raw)
			if err != nil {
				return rc, goerr.Wrap(ErrMalformedSubject, "failed to parse subject",
					goerr.V(ActionIDKey, in.ActionID), goerr.V("cause", err.Error()))
			}
			rc.Subject = subject

		case len(payload) > 0:
			subject, err := model.SubjectFromMap(payload)
			if err != nil {
				return rc, goerr.Wrap(ErrMalformedSubject, "failed to parse message metadata subject",
					goerr.V(ActionIDKey, in.ActionID), goerr.V("cause", err.Error()))
			}
			rc.Subject = subject

		default:
			tenant, ok := tenants.Default()
			if !ok {
				return rc, goerr.Wrap(ErrMalformedSubject, "interaction carries no subject and no default tenant is configured",
					goerr.V(ActionIDKey, in.ActionID), goerr.V("kind", in.Kind))
			}
			rc.Subject = &model.Subject{
				Type:       model.SubjectTypeCase,
				TenantSlug: tenant.Slug,
				ChannelID:  in.ChannelID,
				Defaulted:  true,
			}
		}

		return rc, nil
	}
}

// AcquireSession opens the tenant-scoped session of the subject
func AcquireSession(tenants *model.TenantRegistry, repo interfaces.Repository) Middleware {
	return func(ctx context.Context, rc RequestContext) (RequestContext, error) {
		if rc.Subject == nil {
			return rc, goerr.Wrap(ErrMalformedSubject, "subject is not resolved")
		}

		tenant, err := tenants.Get(rc.Subject.TenantSlug)
		if err != nil {
			return rc, goerr.Wrap(err, "failed to acquire tenant session", goerr.V(TenantKey, rc.Subject.TenantSlug))
		}

		rc.Session = NewSession(tenant, repo.Case())
		return rc, nil
	}
}

// ResolveUser resolves the acting identity
func ResolveUser(identity interfaces.IdentityResolver) Middleware {
	return func(ctx context.Context, rc RequestContext) (RequestContext, error) {
		actor, err := identity.CurrentActor(ctx, rc.Interaction.UserID)
		if err != nil {
			return rc, goerr.Wrap(err, "failed to resolve actor", goerr.V("user_id", rc.Interaction.UserID))
		}
		if actor.Name == "" {
			actor.Name = rc.Interaction.UserName
		}
		rc.Actor = actor
		return rc, nil
	}
}

// LoadCase loads the case the subject refers to
func LoadCase() Middleware {
	return func(ctx context.Context, rc RequestContext) (RequestContext, error) {
		if rc.Session == nil {
			return rc, goerr.New("session is not acquired")
		}
		id := rc.CaseID()
		if id == 0 {
			return rc, goerr.Wrap(ErrMalformedSubject, "subject does not refer to a case")
		}

		c, err := rc.Session.GetCase(ctx, id)
		if err != nil {
			return rc, err
		}
		rc.Case = c
		return rc, nil
	}
}

// DecodeForm converts submitted view state into form values
func DecodeForm() Middleware {
	return func(ctx context.Context, rc RequestContext) (RequestContext, error) {
		values := make(model.FormValues, len(rc.Interaction.State))
		for blockID, v := range rc.Interaction.State {
			values[blockID] = strings.TrimSpace(v)
		}
		rc.Form = values
		return rc, nil
	}
}

// RequireRole lets the interaction through only if the actor holds one of
// roles. The assignee role needs the case, which is loaded if absent.
func RequireRole(roles ...types.Role) Middleware {
	load := LoadCase()

	return func(ctx context.Context, rc RequestContext) (RequestContext, error) {
		if rc.Actor == nil {
			return rc, goerr.Wrap(ErrAccessDenied, "actor is not resolved")
		}

		if slices.Contains(roles, types.RoleAdmin) && rc.Session != nil && rc.Session.Tenant.IsAdmin(rc.Actor.Email) {
			return rc, nil
		}

		if slices.Contains(roles, types.RoleAssignee) {
			if rc.Case == nil {
				next, err := load(ctx, rc)
				if err != nil {
					return rc, err
				}
				rc = next
			}
			if rc.Case.IsAssignee(rc.Actor.ID) {
				return rc, nil
			}
		}

		return rc, goerr.Wrap(ErrAccessDenied, "actor does not hold a required role",
			goerr.V(ActionIDKey, rc.Interaction.ActionID),
			goerr.V("user_id", rc.Actor.ID),
			goerr.V("roles", roles))
	}
}
