package entities

import (
	"time"

	"github.com/google/uuid"
)

// CaseEventType represents the type of case event
type CaseEventType string

const (
	CaseEventTypeClassified       CaseEventType = "case.classified"
	CaseEventTypeRuleCheckUpdated CaseEventType = "rule_check.updated"
	CaseEventTypeIntakeCompleted  CaseEventType = "case.intake_completed"
)

// CaseEvent is a real-time notification about a change to a case
type CaseEvent struct {
	ID            string                 `json:"id"`
	CaseID        string                 `json:"case_id"`
	EventType     CaseEventType          `json:"event_type"`
	Timestamp     time.Time              `json:"timestamp"`
	ChangedFields map[string]interface{} `json:"changed_fields"`
}

// NewCaseEvent creates a new case event
func NewCaseEvent(caseID string, eventType CaseEventType, changedFields map[string]interface{}) *CaseEvent {
	return &CaseEvent{
		ID:            uuid.New().String(),
		CaseID:        caseID,
		EventType:     eventType,
		Timestamp:     time.Now(),
		ChangedFields: changedFields,
	}
}
