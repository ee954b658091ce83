package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event defines the contract for all workflow events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "WORKFLOW_STAGE_CHANGED").
	EventType() string

	// SessionID returns the workflow session the event belongs to.
	SessionID() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeSessionCreated     = "SESSION_CREATED"
	TypeStageChanged       = "WORKFLOW_STAGE_CHANGED"
	TypeMessageAppended    = "WORKFLOW_MESSAGE_APPENDED"
	TypeTestCasesGenerated = "WORKFLOW_TEST_CASES_GENERATED"
	TypeDocumentUploaded   = "DOCUMENT_UPLOADED"
	TypeBackendCallFailed  = "BACKEND_CALL_FAILED"
	TypeStaleResultDropped = "WORKFLOW_STALE_RESULT_DROPPED"
	TypeWorkflowSnapshot   = "WORKFLOW_SNAPSHOT"
)

type BaseEvent struct {
	Type       string
	Session    string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) SessionID() string {
	return e.Session
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func New(eventType, sessionID string, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return BaseEvent{
		Type:       eventType,
		Session:    sessionID,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

// Envelope is the wire form of an event, shared by the in-process bus,
// NATS and websocket clients.
type Envelope struct {
	Type       string                 `json:"type"`
	SessionID  string                 `json:"session_id"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		Type:       e.EventType(),
		SessionID:  e.SessionID(),
		Data:       e.Payload(),
		OccurredAt: e.Timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.EventType(), err)
	}
	return data, nil
}

func Unmarshal(raw []byte) (BaseEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return BaseEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if env.Type == "" {
		return BaseEvent{}, fmt.Errorf("event without type")
	}
	return BaseEvent{
		Type:       env.Type,
		Session:    env.SessionID,
		Data:       env.Data,
		OccurredAt: env.OccurredAt,
	}, nil
}
