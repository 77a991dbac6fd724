package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/usecase"
	"github.com/secmon-lab/caseline/pkg/utils/errutil"
	"github.com/secmon-lab/caseline/pkg/utils/safe"
)

// CaseService is the case API backend
type CaseService interface {
	CreateCase(ctx context.Context, tenantSlug string, input usecase.NewCase) (*model.Case, error)
	GetCard(ctx context.Context, tenantSlug string, id int64) (*model.Card, error)
	Announce(ctx context.Context, tenantSlug string, id int64, channelID string) (*model.Case, error)
}

type participantJSON struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type signalFieldJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type signalJSON struct {
	Name   string            `json:"name"`
	Fields []signalFieldJSON `json:"fields"`
}

type createCaseRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Priority    string          `json:"priority"`
	Severity    string          `json:"severity"`
	Assignee    participantJSON `json:"assignee"`
	Signals     []signalJSON    `json:"signals"`
}

type announceRequest struct {
	ChannelID string `json:"channel_id"`
}

type caseResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Version     int64     `json:"version"`
	ChannelID   string    `json:"channel_id,omitempty"`
	ThreadID    string    `json:"thread_id,omitempty"`
	DocumentURL string    `json:"document_url,omitempty"`
	CardStale   bool      `json:"card_stale"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCaseResponse(c *model.Case) caseResponse {
	resp := caseResponse{
		ID:        c.ID,
		Name:      c.DisplayName(),
		Title:     c.Title,
		Status:    c.Status.String(),
		Version:   c.Version,
		CardStale: c.CardStale,
		CreatedAt: c.CreatedAt,
	}
	if c.Conversation != nil {
		resp.ChannelID = c.Conversation.ChannelID
		resp.ThreadID = c.Conversation.ThreadID
	}
	if c.Document != nil {
		resp.DocumentURL = c.Document.WebLink
	}
	return resp
}

// bearerAuth requires "Authorization: Bearer {token}". An empty token
// disables the check.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func caseAPIRoutes(cases CaseService) func(r chi.Router) {
	return func(r chi.Router) {
		r.Post("/", createCaseHandler(cases))
		r.Get("/{caseID}/card", getCardHandler(cases))
		r.Post("/{caseID}/announce", announceHandler(cases))
	}
}

func createCaseHandler(cases CaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createCaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode create case request"), http.StatusBadRequest)
			return
		}

		input := usecase.NewCase{
			Title:       req.Title,
			Description: req.Description,
			Type:        req.Type,
			Priority:    req.Priority,
			Severity:    req.Severity,
			Assignee:    model.Participant{ID: req.Assignee.ID, Email: req.Assignee.Email, Name: req.Assignee.Name},
		}
		for _, s := range req.Signals {
			signal := model.Signal{Name: s.Name}
			for _, f := range s.Fields {
				signal.Fields = append(signal.Fields, model.SignalField{Key: f.Key, Value: f.Value})
			}
			input.Signals = append(input.Signals, signal)
		}

		created, err := cases.CreateCase(ctx, chi.URLParam(r, "tenant"), input)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, statusOf(err))
			return
		}
		writeJSON(ctx, w, http.StatusCreated, toCaseResponse(created))
	}
}

func getCardHandler(cases CaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := caseIDParam(r)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		card, err := cases.GetCard(ctx, chi.URLParam(r, "tenant"), id)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, statusOf(err))
			return
		}
		writeJSON(ctx, w, http.StatusOK, card)
	}
}

func announceHandler(cases CaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := caseIDParam(r)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		var req announceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode announce request"), http.StatusBadRequest)
			return
		}

		bound, err := cases.Announce(ctx, chi.URLParam(r, "tenant"), id, req.ChannelID)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, statusOf(err))
			return
		}
		writeJSON(ctx, w, http.StatusOK, toCaseResponse(bound))
	}
}

func caseIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "caseID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, goerr.New("invalid case id", goerr.V("case_id", raw))
	}
	return id, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrCaseNotFound), errors.Is(err, model.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrInvalidField), errors.Is(err, usecase.ErrIncompleteEntity):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrConversationAlreadyBound):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrDeliveryUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(ctx, w, data)
}
