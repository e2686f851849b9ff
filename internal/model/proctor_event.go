package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of violation kinds accepted by the server.
type EventType string

const (
	EventTabSwitch      EventType = "TAB_SWITCH"
	EventFullscreenExit EventType = "FULLSCREEN_EXIT"
	EventNoFace         EventType = "NO_FACE"
	EventMultipleFaces  EventType = "MULTIPLE_FACES"
	EventMicNoise       EventType = "MIC_NOISE"
)

// MaxMetadataKeys caps the metadata map of a single event.
const MaxMetadataKeys = 20

// EventTypes lists every accepted event type in a stable order.
var EventTypes = []EventType{
	EventTabSwitch,
	EventFullscreenExit,
	EventNoFace,
	EventMultipleFaces,
	EventMicNoise,
}

// Valid reports whether t belongs to the closed enumeration.
func (t EventType) Valid() bool {
	switch t {
	case EventTabSwitch, EventFullscreenExit, EventNoFace, EventMultipleFaces, EventMicNoise:
		return true
	}
	return false
}

// ProctorEvent is one classified integrity signal bound to an attempt.
// AttemptID is always resolved server-side. Events are immutable once stored.
type ProctorEvent struct {
	ID            uuid.UUID      `json:"id"`
	UserID        int            `json:"userId"`
	ExamID        uuid.UUID      `json:"examId"`
	AttemptID     uuid.UUID      `json:"attemptId"`
	EventType     EventType      `json:"eventType"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	EvidenceImage string         `json:"evidenceImage,omitempty"`
}

// LogProctorEventRequest is the payload for POST /proctor/log. Any attemptId
// sent by the client is ignored because the struct has no field for it.
type LogProctorEventRequest struct {
	ExamID        uuid.UUID      `json:"examId" binding:"required"`
	EventType     EventType      `json:"eventType" binding:"required"`
	Metadata      map[string]any `json:"metadata"`
	EvidenceImage string         `json:"evidenceImage"`
}
