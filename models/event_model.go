package models

import "time"

// StreamEventKind is the wire vocabulary of the audit event stream.
type StreamEventKind string

const (
	EventSession           StreamEventKind = "session"
	EventVectorizeOk       StreamEventKind = "vectorizeOk"
	EventRequirementsReady StreamEventKind = "requirementsReady"
	EventAuditBegin        StreamEventKind = "auditBegin"
	EventAuditDelta        StreamEventKind = "auditDelta"
	EventAuditEnd          StreamEventKind = "auditEnd"
	EventAuditError        StreamEventKind = "auditError"
	EventDone              StreamEventKind = "done"
)

// StreamEvent is one frame of the server-push protocol.
type StreamEvent struct {
	Kind    StreamEventKind `json:"kind"`
	Payload interface{}     `json:"payload"`
}

type SessionPayload struct {
	SessionID string `json:"session_id"`
	FileID    string `json:"file_id"`
}

type VectorizeOkPayload struct {
	FileID          string `json:"file_id"`
	UserID          int64  `json:"user_id"`
	EmbeddingResult bool   `json:"embedding_result"`
}

type RequirementsReadyPayload struct {
	Total int                  `json:"total"`
	Items []IndexedRequirement `json:"items"`
}

type AuditBeginPayload struct {
	Index       int             `json:"index"`
	Requirement string          `json:"requirement"`
	Meta        RequirementMeta `json:"meta"`
}

type AuditDeltaPayload struct {
	Index int        `json:"index"`
	Chunk AuditChunk `json:"chunk"`
}

type AuditEndPayload struct {
	Index  int    `json:"index"`
	Result string `json:"result"`
}

type AuditErrorPayload struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

type DonePayload struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Total     int    `json:"total"`
}

// AuditProgressEvent mirrors pipeline events onto the redis pubsub feed so
// websocket observers can follow a running session.
type AuditProgressEvent struct {
	SessionID string          `json:"session_id"`
	Kind      StreamEventKind `json:"kind"`
	Index     int             `json:"index"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
