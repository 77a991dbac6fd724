package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/repository/memory"
	"github.com/secmon-lab/caseline/pkg/usecase"
)

const testTenant = "acme"

type testEnv struct {
	repo     *memory.Memory
	chat     *mockChatService
	identity *mockIdentity
	tenants  *model.TenantRegistry
	uc       *usecase.UseCases
}

func newTestTenants(t *testing.T, withDefault bool) *model.TenantRegistry {
	t.Helper()
	tenants := model.NewTenantRegistry()
	tenants.Register(&model.Tenant{
		Slug:                  testTenant,
		Name:                  "Acme",
		Admins:                []string{"admin@example.com"},
		Projects:              []model.Project{{ID: 3, Name: "default"}},
		CaseTypes:             []string{"security", "ops"},
		CasePriorities:        []string{"P1", "P2"},
		IncidentTypes:         []string{"breach"},
		IncidentChannelPrefix: "inc",
	})
	if withDefault {
		gt.NoError(t, tenants.SetDefault(testTenant)).Required()
	}
	return tenants
}

func newTestEnv(t *testing.T, opts ...usecase.Option) *testEnv {
	t.Helper()

	env := &testEnv{
		repo: memory.New(),
		chat: &mockChatService{},
		identity: &mockIdentity{users: map[string]*model.Actor{
			"U001":   {ID: "U001", Email: "alice@example.com", Name: "alice"},
			"U002":   {ID: "U002", Email: "bob@example.com", Name: "bob"},
			"UADMIN": {ID: "UADMIN", Email: "admin@example.com", Name: "admin"},
		}},
		tenants: newTestTenants(t, true),
	}

	opts = append([]usecase.Option{
		usecase.WithRetryPolicy(usecase.RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond}),
	}, opts...)

	uc, err := usecase.New(env.repo, env.chat, env.identity, env.tenants, memory.NewPublishGate(), opts...)
	gt.NoError(t, err).Required()
	env.uc = uc
	return env
}

// createCase stores a renderable case assigned to alice
func (e *testEnv) createCase(t *testing.T) *model.Case {
	t.Helper()
	c, err := e.uc.Case.CreateCase(context.Background(), testTenant, usecase.NewCase{
		Title:       "Suspicious login",
		Description: "Login from an unknown location",
		Type:        "security",
		Assignee:    model.Participant{ID: "U001", Email: "alice@example.com", Name: "alice"},
	})
	gt.NoError(t, err).Required()
	return c
}

// announcedCase stores a case and binds it to a card in C100
func (e *testEnv) announcedCase(t *testing.T) *model.Case {
	t.Helper()
	c := e.createCase(t)
	bound, err := e.uc.Case.Announce(context.Background(), testTenant, c.ID, "C100")
	gt.NoError(t, err).Required()
	return bound
}

func (e *testEnv) getCase(t *testing.T, id int64) *model.Case {
	t.Helper()
	c, err := e.repo.Case().Get(context.Background(), testTenant, id)
	gt.NoError(t, err).Required()
	return c
}
