package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
	"github.com/secmon-lab/caseline/pkg/utils/errutil"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
)

// threadIntroText is posted as the first reply under an announced card
const threadIntroText = "All real-time case collaboration should be captured in this thread."

// NewCase is the input of case creation
type NewCase struct {
	Title       string
	Description string
	Type        string
	Priority    string
	Severity    string
	Assignee    model.Participant
	Signals     []model.Signal
}

type CaseUseCase struct {
	repo     interfaces.Repository
	chat     interfaces.ChatService
	tenants  *model.TenantRegistry
	executor *TransitionExecutor
	baseURL  string
}

func NewCaseUseCase(repo interfaces.Repository, chat interfaces.ChatService, tenants *model.TenantRegistry, executor *TransitionExecutor, baseURL string) *CaseUseCase {
	return &CaseUseCase{
		repo:     repo,
		chat:     chat,
		tenants:  tenants,
		executor: executor,
		baseURL:  baseURL,
	}
}

// CreateCase stores a new case in the default project of the tenant and
// attaches its case document
func (uc *CaseUseCase) CreateCase(ctx context.Context, tenantSlug string, input NewCase) (*model.Case, error) {
	tenant, err := uc.tenants.Get(tenantSlug)
	if err != nil {
		return nil, err
	}

	if input.Title == "" {
		return nil, goerr.Wrap(ErrInvalidField, "case title is required", goerr.V(TenantKey, tenantSlug))
	}
	if input.Type == "" {
		return nil, goerr.Wrap(ErrIncompleteEntity, "case type is required", goerr.V(TenantKey, tenantSlug))
	}
	if input.Assignee.ID == "" && input.Assignee.Email == "" {
		return nil, goerr.Wrap(ErrIncompleteEntity, "case assignee is required", goerr.V(TenantKey, tenantSlug))
	}
	if err := checkOption("type", input.Type, tenant.CaseTypes); err != nil {
		return nil, err
	}
	if err := checkOption("priority", input.Priority, tenant.CasePriorities); err != nil {
		return nil, err
	}
	if err := checkOption("severity", input.Severity, tenant.CaseSeverities); err != nil {
		return nil, err
	}

	project, _ := tenant.DefaultProject()
	assignee := input.Assignee

	c := &model.Case{
		Title:       input.Title,
		Description: input.Description,
		Status:      types.CaseStatusNew,
		Type:        &model.CaseType{Name: input.Type},
		Priority:    optional(input.Priority, func(s string) *model.CasePriority { return &model.CasePriority{Name: s} }),
		Severity:    optional(input.Severity, func(s string) *model.CaseSeverity { return &model.CaseSeverity{Name: s} }),
		Assignee:    &assignee,
		Project:     project,
		Signals:     input.Signals,
	}

	created, err := uc.repo.Case().Create(ctx, tenantSlug, c)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create case", goerr.V(TenantKey, tenantSlug))
	}

	// The document link needs the assigned ID
	withDoc, err := uc.repo.Case().Update(ctx, tenantSlug, created.ID, func(c *model.Case) error {
		doc := &model.Document{Name: c.DisplayName()}
		if uc.baseURL != "" {
			doc.WebLink = CaseURL(uc.baseURL, tenantSlug, c)
		}
		c.Document = doc
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to attach case document", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, created.ID))
	}

	logging.From(ctx).Info("case created", "tenant", tenantSlug, "case_id", withDoc.ID, "title", withDoc.Title)
	return withDoc, nil
}

// GetCase retrieves a case of the tenant
func (uc *CaseUseCase) GetCase(ctx context.Context, tenantSlug string, id int64) (*model.Case, error) {
	tenant, err := uc.tenants.Get(tenantSlug)
	if err != nil {
		return nil, err
	}
	return NewSession(tenant, uc.repo.Case()).GetCase(ctx, id)
}

// GetCard renders the current card of a case
func (uc *CaseUseCase) GetCard(ctx context.Context, tenantSlug string, id int64) (*model.Card, error) {
	c, err := uc.GetCase(ctx, tenantSlug, id)
	if err != nil {
		return nil, err
	}

	viewer := Viewer{TenantSlug: tenantSlug, BaseURL: uc.baseURL}
	if c.Conversation != nil {
		viewer.ChannelID = c.Conversation.ChannelID
	}
	return RenderCard(c, viewer)
}

// Announce posts the card of a case to channelID and binds the case to the
// posted message. A case can be announced only once.
func (uc *CaseUseCase) Announce(ctx context.Context, tenantSlug string, id int64, channelID string) (*model.Case, error) {
	if channelID == "" {
		return nil, goerr.Wrap(ErrInvalidField, "channel is required", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, id))
	}

	c, err := uc.GetCase(ctx, tenantSlug, id)
	if err != nil {
		return nil, err
	}
	if c.Conversation != nil {
		return nil, goerr.Wrap(interfaces.ErrConversationAlreadyBound, "case is already announced",
			goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, id), goerr.V("channel_id", c.Conversation.ChannelID))
	}

	card, err := RenderCard(c, Viewer{TenantSlug: tenantSlug, ChannelID: channelID, BaseURL: uc.baseURL})
	if err != nil {
		return nil, err
	}

	var ref *model.Conversation
	if err := uc.executor.retry.Do(ctx, func(ctx context.Context) error {
		posted, err := uc.chat.PostCard(ctx, channelID, card)
		if err != nil {
			return err
		}
		ref = posted
		return nil
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to post case card", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, id), goerr.V("channel_id", channelID))
	}

	if err := uc.chat.PostThreadReply(ctx, *ref, threadIntroText); err != nil {
		errutil.Handle(ctx, err, "failed to post thread introduction")
	}

	bound, err := uc.repo.Case().BindConversation(ctx, tenantSlug, id, *ref)
	if err != nil {
		if errors.Is(err, interfaces.ErrConversationAlreadyBound) {
			logging.From(ctx).Warn("case was announced concurrently, posted card is orphaned",
				"tenant", tenantSlug, "case_id", id, "channel_id", ref.ChannelID, "thread_id", ref.ThreadID)
		}
		return nil, goerr.Wrap(err, "failed to bind conversation", goerr.V(TenantKey, tenantSlug), goerr.V(CaseIDKey, id))
	}

	logging.From(ctx).Info("case announced", "tenant", tenantSlug, "case_id", id,
		"channel_id", ref.ChannelID, "thread_id", ref.ThreadID)
	return bound, nil
}

// Republish publishes the current card of a case, e.g. after a delivery failure
func (uc *CaseUseCase) Republish(ctx context.Context, tenantSlug string, id int64) (PublishResult, error) {
	c, err := uc.GetCase(ctx, tenantSlug, id)
	if err != nil {
		return "", err
	}
	return uc.executor.Publish(ctx, tenantSlug, c)
}

// ListStaleCards returns cases whose last card publish failed
func (uc *CaseUseCase) ListStaleCards(ctx context.Context, tenantSlug string) ([]*model.Case, error) {
	cases, err := uc.repo.Case().ListStaleCards(ctx, tenantSlug)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list stale cards", goerr.V(TenantKey, tenantSlug))
	}
	return cases, nil
}
