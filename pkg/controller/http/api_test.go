package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/caseline/pkg/controller/http"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
	"github.com/secmon-lab/caseline/pkg/usecase"
	goslack "github.com/slack-go/slack"
)

// mockCaseService keeps cases of tenant "acme"
type mockCaseService struct {
	created  []usecase.NewCase
	cases    map[int64]*model.Case
	announce func(id int64, channelID string) (*model.Case, error)
}

func (m *mockCaseService) CreateCase(ctx context.Context, tenantSlug string, input usecase.NewCase) (*model.Case, error) {
	if tenantSlug != "acme" {
		return nil, goerr.Wrap(model.ErrTenantNotFound, "tenant not found")
	}
	if input.Title == "" {
		return nil, goerr.Wrap(usecase.ErrInvalidField, "case title is required")
	}
	m.created = append(m.created, input)
	return &model.Case{ID: int64(len(m.created)), Title: input.Title, Status: types.CaseStatusNew, Version: 2}, nil
}

func (m *mockCaseService) GetCard(ctx context.Context, tenantSlug string, id int64) (*model.Card, error) {
	c, ok := m.cases[id]
	if !ok {
		return nil, goerr.Wrap(usecase.ErrCaseNotFound, "case not found")
	}
	return &model.Card{Fallback: "Case " + c.DisplayName() + ": " + c.Title}, nil
}

func (m *mockCaseService) Announce(ctx context.Context, tenantSlug string, id int64, channelID string) (*model.Case, error) {
	return m.announce(id, channelID)
}

func apiRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestCaseAPI(t *testing.T) {
	newServer := func(svc *mockCaseService, token string) *httpctrl.Server {
		return httpctrl.New(httpctrl.WithCaseAPI(svc, token))
	}

	t.Run("create case", func(t *testing.T) {
		svc := &mockCaseService{}
		rec := httptest.NewRecorder()
		newServer(svc, "").ServeHTTP(rec, apiRequest(http.MethodPost, "/api/tenants/acme/cases",
			`{"title":"Suspicious login","type":"security","assignee":{"id":"U001"},"signals":[{"name":"alert","fields":[{"key":"ip","value":"192.0.2.1"}]}]}`, ""))

		gt.Value(t, rec.Code).Equal(http.StatusCreated)
		gt.Array(t, svc.created).Length(1)
		gt.Value(t, svc.created[0].Assignee.ID).Equal("U001")
		gt.Value(t, svc.created[0].Signals).Equal([]model.Signal{
			{Name: "alert", Fields: []model.SignalField{{Key: "ip", Value: "192.0.2.1"}}},
		})

		var resp map[string]any
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		gt.Value(t, resp["name"]).Equal("CASE-1")
		gt.Value(t, resp["status"]).Equal("NEW")
	})

	t.Run("invalid case is bad request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newServer(&mockCaseService{}, "").ServeHTTP(rec, apiRequest(http.MethodPost, "/api/tenants/acme/cases", `{"title":""}`, ""))
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("unknown tenant is not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newServer(&mockCaseService{}, "").ServeHTTP(rec, apiRequest(http.MethodPost, "/api/tenants/other/cases", `{"title":"x"}`, ""))
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})

	t.Run("get card", func(t *testing.T) {
		svc := &mockCaseService{cases: map[int64]*model.Case{7: {ID: 7, Title: "t"}}}
		rec := httptest.NewRecorder()
		newServer(svc, "").ServeHTTP(rec, apiRequest(http.MethodGet, "/api/tenants/acme/cases/7/card", "", ""))

		gt.Value(t, rec.Code).Equal(http.StatusOK)
		var card model.Card
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
		gt.Value(t, card.Fallback).Equal("Case CASE-7: t")
	})

	t.Run("get card of missing case", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newServer(&mockCaseService{}, "").ServeHTTP(rec, apiRequest(http.MethodGet, "/api/tenants/acme/cases/7/card", "", ""))
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})

	t.Run("invalid case id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newServer(&mockCaseService{}, "").ServeHTTP(rec, apiRequest(http.MethodGet, "/api/tenants/acme/cases/abc/card", "", ""))
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("announce", func(t *testing.T) {
		svc := &mockCaseService{announce: func(id int64, channelID string) (*model.Case, error) {
			return &model.Case{ID: id, Conversation: &model.Conversation{ChannelID: channelID, ThreadID: "1.1"}}, nil
		}}
		rec := httptest.NewRecorder()
		newServer(svc, "").ServeHTTP(rec, apiRequest(http.MethodPost, "/api/tenants/acme/cases/3/announce", `{"channel_id":"C100"}`, ""))

		gt.Value(t, rec.Code).Equal(http.StatusOK)
		var resp map[string]any
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		gt.Value(t, resp["channel_id"]).Equal("C100")
		gt.Value(t, resp["thread_id"]).Equal("1.1")
	})

	t.Run("announce twice is conflict", func(t *testing.T) {
		svc := &mockCaseService{announce: func(id int64, channelID string) (*model.Case, error) {
			return nil, goerr.Wrap(interfaces.ErrConversationAlreadyBound, "case is already announced")
		}}
		rec := httptest.NewRecorder()
		newServer(svc, "").ServeHTTP(rec, apiRequest(http.MethodPost, "/api/tenants/acme/cases/3/announce", `{"channel_id":"C100"}`, ""))
		gt.Value(t, rec.Code).Equal(http.StatusConflict)
	})

	t.Run("token is required when configured", func(t *testing.T) {
		svc := &mockCaseService{cases: map[int64]*model.Case{7: {ID: 7}}}
		server := newServer(svc, "secret-token")

		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, apiRequest(http.MethodGet, "/api/tenants/acme/cases/7/card", "", ""))
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)

		rec = httptest.NewRecorder()
		server.ServeHTTP(rec, apiRequest(http.MethodGet, "/api/tenants/acme/cases/7/card", "", "wrong"))
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)

		rec = httptest.NewRecorder()
		server.ServeHTTP(rec, apiRequest(http.MethodGet, "/api/tenants/acme/cases/7/card", "", "secret-token"))
		gt.Value(t, rec.Code).Equal(http.StatusOK)
	})
}

func TestServerRoutes(t *testing.T) {
	secret := "test-signing-secret"
	dispatcher := newMockDispatcher()
	server := httpctrl.New(httpctrl.WithSlackInteraction(httpctrl.NewSlackInteractionHandler(dispatcher, 0), secret))

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, rec.Body.String()).Equal("ok")
	})

	t.Run("signed interaction is dispatched", func(t *testing.T) {
		payload, err := json.Marshal(blockActionCallback(&goslack.BlockAction{ActionID: usecase.ActionIDView, Value: "{}"}))
		gt.NoError(t, err).Required()
		body := url.Values{"payload": {string(payload)}}.Encode()

		req := signedRequest(t, secret, "/hooks/slack/interaction", []byte(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		<-dispatcher.done
		gt.Array(t, dispatcher.interactions()).Length(1)
	})

	t.Run("unsigned interaction is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", strings.NewReader("payload=%7B%7D"))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("case API is not mounted without a backend", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/acme/cases/1/card", nil))
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})
}
