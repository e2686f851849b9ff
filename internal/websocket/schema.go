package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionLog  Action = "log"
	ActionPing Action = "ping"
)

// RequestEnvelope carries every client message. The exam comes from the URL
// and the attempt is resolved server-side, so neither appears here.
type RequestEnvelope struct {
	Action        Action          `json:"action"`
	EventType     model.EventType `json:"eventType,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	EvidenceImage string          `json:"evidenceImage,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventLogged Event = "logged"
	EventPong   Event = "pong"
)

// LoggedResponse acknowledges a stored proctor event.
type LoggedResponse struct {
	Event     Event           `json:"event"`
	ID        uuid.UUID       `json:"id"`
	EventType model.EventType `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorResponse reports a rejected message. Code matches the HTTP API codes.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
