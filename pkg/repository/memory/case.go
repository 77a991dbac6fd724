package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
)

type caseKey struct {
	tenantSlug string
	id         int64
}

// caseEntry guards one stored case. Updates lock the entry, not the whole
// repository, so independent cases are mutated in parallel.
type caseEntry struct {
	mu   sync.Mutex
	data *model.Case
}

type caseRepository struct {
	mu      sync.RWMutex
	entries map[caseKey]*caseEntry
	nextID  map[string]int64
}

func newCaseRepository() *caseRepository {
	return &caseRepository{
		entries: make(map[caseKey]*caseEntry),
		nextID:  make(map[string]int64),
	}
}

func (r *caseRepository) entry(tenantSlug string, id int64) (*caseEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[caseKey{tenantSlug: tenantSlug, id: id}]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "case not found",
			goerr.V("tenant", tenantSlug), goerr.V("id", id))
	}
	return e, nil
}

func (r *caseRepository) Create(ctx context.Context, tenantSlug string, c *model.Case) (*model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID[tenantSlug]++
	now := time.Now().UTC()

	created := c.Clone()
	created.ID = r.nextID[tenantSlug]
	created.Status = created.Status.Normalize()
	created.Version = 1
	created.CreatedAt = now
	created.UpdatedAt = now

	r.entries[caseKey{tenantSlug: tenantSlug, id: created.ID}] = &caseEntry{data: created}
	return created.Clone(), nil
}

func (r *caseRepository) Get(ctx context.Context, tenantSlug string, id int64) (*model.Case, error) {
	e, err := r.entry(tenantSlug, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.Clone(), nil
}

func (r *caseRepository) Update(ctx context.Context, tenantSlug string, id int64, mutate interfaces.CaseMutation) (*model.Case, error) {
	e, err := r.entry(tenantSlug, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.data.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}

	// identity fields are owned by the store
	working.ID = e.data.ID
	working.CreatedAt = e.data.CreatedAt
	working.Conversation = e.data.Conversation.Clone()
	working.Version = e.data.Version + 1
	working.UpdatedAt = time.Now().UTC()

	e.data = working
	return working.Clone(), nil
}

func (r *caseRepository) BindConversation(ctx context.Context, tenantSlug string, id int64, conv model.Conversation) (*model.Case, error) {
	e, err := r.entry(tenantSlug, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.data.Conversation != nil {
		return nil, goerr.Wrap(interfaces.ErrConversationAlreadyBound, "case already has a conversation",
			goerr.V("tenant", tenantSlug), goerr.V("id", id), goerr.V("channel_id", e.data.Conversation.ChannelID))
	}

	bound := e.data.Clone()
	bound.Conversation = &conv
	bound.Version = e.data.Version + 1
	bound.UpdatedAt = time.Now().UTC()

	e.data = bound
	return bound.Clone(), nil
}

func (r *caseRepository) SetCardStale(ctx context.Context, tenantSlug string, id int64, stale bool) error {
	e, err := r.entry(tenantSlug, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.data.CardStale = stale
	return nil
}

func (r *caseRepository) ListStaleCards(ctx context.Context, tenantSlug string) ([]*model.Case, error) {
	r.mu.RLock()
	entries := make([]*caseEntry, 0, len(r.entries))
	for k, e := range r.entries {
		if k.tenantSlug == tenantSlug {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	var result []*model.Case
	for _, e := range entries {
		e.mu.Lock()
		if e.data.CardStale {
			result = append(result, e.data.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}
