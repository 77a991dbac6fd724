package model

import (
	"fmt"
	"time"

	"github.com/secmon-lab/caseline/pkg/domain/types"
)

// Case represents a tracked case entity within a single tenant
type Case struct {
	ID          int64
	Name        string // display key, e.g. "CASE-12"
	Title       string
	Description string
	Resolution  string
	Status      types.CaseStatus
	Type        *CaseType
	Priority    *CasePriority
	Severity    *CaseSeverity
	Assignee    *Participant
	Project     Project
	Document    *Document
	Signals     []Signal

	// Conversation is set once by announce and only read afterwards
	Conversation *Conversation

	// Incident is set when the case has been escalated
	Incident *Incident

	// Version is incremented by the store on every committed update
	Version int64

	// CardStale is set when the last card publish could not be delivered
	CardStale bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CaseType is the classification of a case
type CaseType struct {
	Name string
}

// CasePriority is the urgency of a case
type CasePriority struct {
	Name string
}

// CaseSeverity is the impact of a case
type CaseSeverity struct {
	Name string
}

// Participant is a chat user attached to a case
type Participant struct {
	ID    string // chat user ID
	Email string
	Name  string
}

// Project is the tenant project a case belongs to
type Project struct {
	ID   int64
	Name string
}

// Document is the external case document
type Document struct {
	Name    string
	WebLink string
}

// Signal is an attached signal record. Fields keep the order they were reported in.
type Signal struct {
	Name   string
	Fields []SignalField
}

// SignalField is one key/value pair of a signal payload
type SignalField struct {
	Key   string
	Value string
}

// Conversation binds a case to the chat message that displays its card
type Conversation struct {
	ChannelID string
	ThreadID  string // timestamp of the root card message
}

// Clone returns a copy of the binding, or nil
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

// Incident is the escalation target created from a case
type Incident struct {
	Name      string
	ChannelID string
}

// DisplayName returns Name, or "CASE-{id}" when no name was given
func (c *Case) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("CASE-%d", c.ID)
}

// IsAssignee reports whether the given chat user is the case assignee
func (c *Case) IsAssignee(userID string) bool {
	return c.Assignee != nil && userID != "" && c.Assignee.ID == userID
}

// Clone returns a deep copy of the case
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}

	copied := *c
	if c.Type != nil {
		t := *c.Type
		copied.Type = &t
	}
	if c.Priority != nil {
		p := *c.Priority
		copied.Priority = &p
	}
	if c.Severity != nil {
		s := *c.Severity
		copied.Severity = &s
	}
	if c.Assignee != nil {
		a := *c.Assignee
		copied.Assignee = &a
	}
	if c.Document != nil {
		d := *c.Document
		copied.Document = &d
	}
	copied.Conversation = c.Conversation.Clone()
	if c.Incident != nil {
		inc := *c.Incident
		copied.Incident = &inc
	}
	if c.Signals != nil {
		copied.Signals = make([]Signal, len(c.Signals))
		for i, s := range c.Signals {
			fields := make([]SignalField, len(s.Fields))
			copy(fields, s.Fields)
			copied.Signals[i] = Signal{Name: s.Name, Fields: fields}
		}
	}

	return &copied
}
