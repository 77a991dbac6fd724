package types

import "fmt"

// CaseStatus represents the status of a case
type CaseStatus string

const (
	CaseStatusNew       CaseStatus = "NEW"
	CaseStatusTriage    CaseStatus = "TRIAGE"
	CaseStatusEscalated CaseStatus = "ESCALATED"
	CaseStatusClosed    CaseStatus = "CLOSED"
)

// AllCaseStatuses returns all valid case statuses in progression order
func AllCaseStatuses() []CaseStatus {
	return []CaseStatus{
		CaseStatusNew,
		CaseStatusTriage,
		CaseStatusEscalated,
		CaseStatusClosed,
	}
}

// caseTransitions lists, for each status, the statuses it may move to.
var caseTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusNew:       {CaseStatusTriage, CaseStatusEscalated, CaseStatusClosed},
	CaseStatusTriage:    {CaseStatusEscalated, CaseStatusClosed},
	CaseStatusEscalated: {CaseStatusClosed},
	CaseStatusClosed:    {CaseStatusTriage},
}

// IsValid checks if the case status is valid
func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseStatusNew,
		CaseStatusTriage,
		CaseStatusEscalated,
		CaseStatusClosed:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as CaseStatusNew.
func (s CaseStatus) Normalize() CaseStatus {
	if s == "" {
		return CaseStatusNew
	}
	return s
}

// IsOpen reports whether the case still needs work (NEW or TRIAGE).
func (s CaseStatus) IsOpen() bool {
	switch s.Normalize() {
	case CaseStatusNew, CaseStatusTriage:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is an allowed edge.
// Staying on the same status is not a transition and returns false.
func (s CaseStatus) CanTransitionTo(next CaseStatus) bool {
	for _, allowed := range caseTransitions[s.Normalize()] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Label returns a human readable label for card fields
func (s CaseStatus) Label() string {
	switch s.Normalize() {
	case CaseStatusNew:
		return "New"
	case CaseStatusTriage:
		return "Triage"
	case CaseStatusEscalated:
		return "Escalated"
	case CaseStatusClosed:
		return "Closed"
	default:
		return string(s)
	}
}

// String returns the string representation of the case status
func (s CaseStatus) String() string {
	return string(s)
}

// ParseCaseStatus parses a string into a CaseStatus
func ParseCaseStatus(s string) (CaseStatus, error) {
	status := CaseStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid case status: %s", s)
	}
	return status, nil
}
