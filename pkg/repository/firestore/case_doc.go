package firestore

import (
	"time"

	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/domain/types"
)

type caseDoc struct {
	ID           int64            `firestore:"id"`
	Name         string           `firestore:"name"`
	Title        string           `firestore:"title"`
	Description  string           `firestore:"description"`
	Resolution   string           `firestore:"resolution"`
	Status       string           `firestore:"status"`
	Type         string           `firestore:"type"`
	Priority     string           `firestore:"priority"`
	Severity     string           `firestore:"severity"`
	Assignee     *participantDoc  `firestore:"assignee"`
	ProjectID    int64            `firestore:"project_id"`
	ProjectName  string           `firestore:"project_name"`
	Document     *documentDoc     `firestore:"document"`
	Signals      []signalDoc      `firestore:"signals"`
	Conversation *conversationDoc `firestore:"conversation"`
	Incident     *incidentDoc     `firestore:"incident"`
	Version      int64            `firestore:"version"`
	CardStale    bool             `firestore:"card_stale"`
	CreatedAt    time.Time        `firestore:"created_at"`
	UpdatedAt    time.Time        `firestore:"updated_at"`
}

type participantDoc struct {
	ID    string `firestore:"id"`
	Email string `firestore:"email"`
	Name  string `firestore:"name"`
}

type documentDoc struct {
	Name    string `firestore:"name"`
	WebLink string `firestore:"web_link"`
}

// signalDoc keeps fields as ordered pairs; firestore maps do not preserve order
type signalDoc struct {
	Name   string           `firestore:"name"`
	Fields []signalFieldDoc `firestore:"fields"`
}

type signalFieldDoc struct {
	Key   string `firestore:"key"`
	Value string `firestore:"value"`
}

type conversationDoc struct {
	ChannelID string `firestore:"channel_id"`
	ThreadID  string `firestore:"thread_id"`
}

type incidentDoc struct {
	Name      string `firestore:"name"`
	ChannelID string `firestore:"channel_id"`
}

func newCaseDoc(c *model.Case) *caseDoc {
	doc := &caseDoc{
		ID:          c.ID,
		Name:        c.Name,
		Title:       c.Title,
		Description: c.Description,
		Resolution:  c.Resolution,
		Status:      c.Status.String(),
		ProjectID:   c.Project.ID,
		ProjectName: c.Project.Name,
		Version:     c.Version,
		CardStale:   c.CardStale,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.Type != nil {
		doc.Type = c.Type.Name
	}
	if c.Priority != nil {
		doc.Priority = c.Priority.Name
	}
	if c.Severity != nil {
		doc.Severity = c.Severity.Name
	}
	if c.Assignee != nil {
		doc.Assignee = &participantDoc{ID: c.Assignee.ID, Email: c.Assignee.Email, Name: c.Assignee.Name}
	}
	if c.Document != nil {
		doc.Document = &documentDoc{Name: c.Document.Name, WebLink: c.Document.WebLink}
	}
	if c.Conversation != nil {
		doc.Conversation = &conversationDoc{ChannelID: c.Conversation.ChannelID, ThreadID: c.Conversation.ThreadID}
	}
	if c.Incident != nil {
		doc.Incident = &incidentDoc{Name: c.Incident.Name, ChannelID: c.Incident.ChannelID}
	}
	for _, s := range c.Signals {
		sd := signalDoc{Name: s.Name}
		for _, f := range s.Fields {
			sd.Fields = append(sd.Fields, signalFieldDoc{Key: f.Key, Value: f.Value})
		}
		doc.Signals = append(doc.Signals, sd)
	}
	return doc
}

func (d *caseDoc) toModel() *model.Case {
	c := &model.Case{
		ID:          d.ID,
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		Resolution:  d.Resolution,
		Status:      types.CaseStatus(d.Status).Normalize(),
		Project:     model.Project{ID: d.ProjectID, Name: d.ProjectName},
		Version:     d.Version,
		CardStale:   d.CardStale,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Type != "" {
		c.Type = &model.CaseType{Name: d.Type}
	}
	if d.Priority != "" {
		c.Priority = &model.CasePriority{Name: d.Priority}
	}
	if d.Severity != "" {
		c.Severity = &model.CaseSeverity{Name: d.Severity}
	}
	if d.Assignee != nil {
		c.Assignee = &model.Participant{ID: d.Assignee.ID, Email: d.Assignee.Email, Name: d.Assignee.Name}
	}
	if d.Document != nil {
		c.Document = &model.Document{Name: d.Document.Name, WebLink: d.Document.WebLink}
	}
	if d.Conversation != nil {
		c.Conversation = &model.Conversation{ChannelID: d.Conversation.ChannelID, ThreadID: d.Conversation.ThreadID}
	}
	if d.Incident != nil {
		c.Incident = &model.Incident{Name: d.Incident.Name, ChannelID: d.Incident.ChannelID}
	}
	for _, sd := range d.Signals {
		s := model.Signal{Name: sd.Name}
		for _, f := range sd.Fields {
			s.Fields = append(s.Fields, model.SignalField{Key: f.Key, Value: f.Value})
		}
		c.Signals = append(c.Signals, s)
	}
	return c
}
