package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type caseRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newCaseRepository(client *firestore.Client) *caseRepository {
	return &caseRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *caseRepository) tenantsCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_tenants"
	}
	return "tenants"
}

func (r *caseRepository) tenantDoc(tenantSlug string) *firestore.DocumentRef {
	return r.client.Collection(r.tenantsCollection()).Doc(tenantSlug)
}

func (r *caseRepository) casesCollection(tenantSlug string) *firestore.CollectionRef {
	return r.tenantDoc(tenantSlug).Collection("cases")
}

func (r *caseRepository) caseDoc(tenantSlug string, id int64) *firestore.DocumentRef {
	return r.casesCollection(tenantSlug).Doc(fmt.Sprintf("%d", id))
}

func (r *caseRepository) getNextID(ctx context.Context, tenantSlug string) (int64, error) {
	counterRef := r.tenantDoc(tenantSlug).Collection("counters").Doc("case_counter")

	var nextID int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(counterRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				nextID = 1
				return tx.Set(counterRef, map[string]any{
					"value": nextID,
				})
			}
			return goerr.Wrap(err, "failed to get counter")
		}

		currentValue, err := doc.DataAt("value")
		if err != nil {
			return goerr.Wrap(err, "failed to get counter value")
		}

		val, ok := currentValue.(int64)
		if !ok {
			return goerr.New("counter value is not of type int64", goerr.V("value", currentValue))
		}
		nextID = val + 1
		return tx.Update(counterRef, []firestore.Update{
			{Path: "value", Value: nextID},
		})
	})

	if err != nil {
		return 0, goerr.Wrap(err, "failed to get next ID", goerr.V("tenant", tenantSlug))
	}

	return nextID, nil
}

func (r *caseRepository) Create(ctx context.Context, tenantSlug string, c *model.Case) (*model.Case, error) {
	nextID, err := r.getNextID(ctx, tenantSlug)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := c.Clone()
	created.ID = nextID
	created.Status = created.Status.Normalize()
	created.Version = 1
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.caseDoc(tenantSlug, created.ID).Create(ctx, newCaseDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create case", goerr.V("tenant", tenantSlug), goerr.V("id", created.ID))
	}

	return created, nil
}

func decodeCase(snap *firestore.DocumentSnapshot) (*model.Case, error) {
	var doc caseDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode case", goerr.V("doc_id", snap.Ref.ID))
	}
	return doc.toModel(), nil
}

func (r *caseRepository) Get(ctx context.Context, tenantSlug string, id int64) (*model.Case, error) {
	snap, err := r.caseDoc(tenantSlug, id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "case not found", goerr.V("tenant", tenantSlug), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get case", goerr.V("tenant", tenantSlug), goerr.V("id", id))
	}

	return decodeCase(snap)
}

// runCaseTx reads the case inside a transaction, lets apply derive the next
// state and writes it with an incremented version. Errors returned by apply
// are passed through untouched.
func (r *caseRepository) runCaseTx(ctx context.Context, tenantSlug string, id int64, apply func(current, next *model.Case) error) (*model.Case, error) {
	ref := r.caseDoc(tenantSlug, id)

	var (
		result   *model.Case
		applyErr error
	)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applyErr = nil

		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "case not found", goerr.V("tenant", tenantSlug), goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get case in transaction", goerr.V("tenant", tenantSlug), goerr.V("id", id))
		}

		current, err := decodeCase(snap)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := apply(current, next); err != nil {
			applyErr = err
			return err
		}
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		next.Version = current.Version + 1
		next.UpdatedAt = time.Now().UTC()

		result = next
		return tx.Set(ref, newCaseDoc(next))
	})

	if applyErr != nil {
		return nil, applyErr
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update case", goerr.V("tenant", tenantSlug), goerr.V("id", id))
	}

	return result, nil
}

func (r *caseRepository) Update(ctx context.Context, tenantSlug string, id int64, mutate interfaces.CaseMutation) (*model.Case, error) {
	return r.runCaseTx(ctx, tenantSlug, id, func(current, next *model.Case) error {
		if err := mutate(next); err != nil {
			return err
		}
		next.Conversation = current.Conversation.Clone()
		return nil
	})
}

func (r *caseRepository) BindConversation(ctx context.Context, tenantSlug string, id int64, conv model.Conversation) (*model.Case, error) {
	return r.runCaseTx(ctx, tenantSlug, id, func(current, next *model.Case) error {
		if current.Conversation != nil {
			return goerr.Wrap(interfaces.ErrConversationAlreadyBound, "case already has a conversation",
				goerr.V("tenant", tenantSlug), goerr.V("id", id), goerr.V("channel_id", current.Conversation.ChannelID))
		}
		next.Conversation = &conv
		return nil
	})
}

func (r *caseRepository) SetCardStale(ctx context.Context, tenantSlug string, id int64, stale bool) error {
	_, err := r.caseDoc(tenantSlug, id).Update(ctx, []firestore.Update{
		{Path: "card_stale", Value: stale},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "case not found", goerr.V("tenant", tenantSlug), goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to set card stale flag", goerr.V("tenant", tenantSlug), goerr.V("id", id))
	}
	return nil
}

func (r *caseRepository) ListStaleCards(ctx context.Context, tenantSlug string) ([]*model.Case, error) {
	iter := r.casesCollection(tenantSlug).
		Where("card_stale", "==", true).
		OrderBy("id", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var cases []*model.Case
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate stale cases", goerr.V("tenant", tenantSlug))
		}

		c, err := decodeCase(snap)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, nil
}
