package model

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
)

// SubjectType tags the kind of entity an interaction refers to
type SubjectType string

const (
	SubjectTypeCase     SubjectType = "case"
	SubjectTypeIncident SubjectType = "incident"
)

// Subject correlates an inbound interaction with an entity and tenant.
// It is serialized into every interactive element of a card and must
// round-trip through the chat platform unchanged.
type Subject struct {
	Type       SubjectType `json:"type"`
	ID         int64       `json:"id"`
	TenantSlug string      `json:"tenant_slug"`
	ProjectID  int64       `json:"project_id,omitempty"`
	ChannelID  string      `json:"channel_id,omitempty"`

	// Defaulted is set when no marker was present and the deployment's
	// default tenant was used instead. Never serialized.
	Defaulted bool `json:"-"`
}

// ErrInvalidSubject is returned when a subject marker cannot be decoded
var ErrInvalidSubject = goerr.New("invalid subject metadata")

// Marshal serializes the subject into its wire form
func (s Subject) Marshal() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal subject", goerr.V("subject_id", s.ID))
	}
	return string(raw), nil
}

// Validate checks that mandatory subject fields are present
func (s Subject) Validate() error {
	if s.Type == "" {
		return goerr.Wrap(ErrInvalidSubject, "subject type is required")
	}
	if s.TenantSlug == "" {
		return goerr.Wrap(ErrInvalidSubject, "subject tenant slug is required", goerr.V("type", s.Type))
	}
	return nil
}

// ParseSubject decodes a wire-form subject
func ParseSubject(raw string) (*Subject, error) {
	if raw == "" {
		return nil, goerr.Wrap(ErrInvalidSubject, "subject is empty")
	}

	var s Subject
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, goerr.Wrap(ErrInvalidSubject, "failed to decode subject", goerr.V("raw", raw), goerr.V("cause", err.Error()))
	}
	if err := s.Validate(); err != nil {
		return nil, goerr.Wrap(err, "decoded subject is invalid", goerr.V("raw", raw))
	}

	return &s, nil
}

// float64 holds every integer below 2^53 exactly
const maxExactFloat = 1 << 53

// SubjectFromMap decodes a subject carried as a generic metadata object,
// such as a chat message metadata payload. Numeric IDs may arrive as an int,
// int64, integral float64, json.Number or decimal string. A float64 too large
// to hold the ID exactly is rejected.
func SubjectFromMap(payload map[string]any) (*Subject, error) {
	if len(payload) == 0 {
		return nil, goerr.Wrap(ErrInvalidSubject, "subject payload is empty")
	}

	var s Subject

	subjectType, err := mapString(payload, "type")
	if err != nil {
		return nil, err
	}
	s.Type = SubjectType(subjectType)
	if s.TenantSlug, err = mapString(payload, "tenant_slug"); err != nil {
		return nil, err
	}
	if s.ChannelID, err = mapString(payload, "channel_id"); err != nil {
		return nil, err
	}
	if s.ID, err = mapInt64(payload, "id"); err != nil {
		return nil, err
	}
	if s.ProjectID, err = mapInt64(payload, "project_id"); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, goerr.Wrap(err, "decoded subject is invalid")
	}
	return &s, nil
}

func mapString(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok || v == nil {
		return "", nil
	}
	str, ok := v.(string)
	if !ok {
		return "", goerr.Wrap(ErrInvalidSubject, "subject field is not a string", goerr.V("field", key), goerr.V("value", v))
	}
	return str, nil
}

func mapInt64(payload map[string]any, key string) (int64, error) {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0, nil
	}

	invalid := func() error {
		return goerr.Wrap(ErrInvalidSubject, "subject field is not an integer", goerr.V("field", key), goerr.V("value", v))
	}

	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, invalid()
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) >= maxExactFloat {
			return 0, invalid()
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, invalid()
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, invalid()
		}
		return i, nil
	default:
		return 0, invalid()
	}
}

// ToMap converts the subject into a generic metadata object. IDs stay int64.
func (s Subject) ToMap() (map[string]any, error) {
	m := map[string]any{
		"type":        string(s.Type),
		"id":          s.ID,
		"tenant_slug": s.TenantSlug,
	}
	if s.ProjectID != 0 {
		m["project_id"] = s.ProjectID
	}
	if s.ChannelID != "" {
		m["channel_id"] = s.ChannelID
	}
	return m, nil
}
