package dto

import "github.com/google/uuid"

type EventResponse struct {
	ID               uuid.UUID  `json:"id"`
	ProbeID          uuid.UUID  `json:"probe_id"`
	Room             string     `json:"room"`
	Outcome          string     `json:"outcome"`
	IdentityID       *uuid.UUID `json:"identity_id,omitempty"`
	Name             string     `json:"name,omitempty"`
	Confidence       float64    `json:"confidence"`
	EmbeddingVersion string     `json:"embedding_version"`
	Source           string     `json:"source"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        string     `json:"created_at"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

type EventQuery struct {
	Room    string `form:"room"`
	Outcome string `form:"outcome" binding:"omitempty,oneof=recognized not_recognized no_face_detected error"`
	Limit   int    `form:"limit"`
}

type ProbeResponse struct {
	ProbeID uuid.UUID `json:"probe_id"`
	Status  string    `json:"status"`
}

// WSEvent is a WebSocket message for real-time event delivery.
type WSEvent struct {
	Type string        `json:"type"` // recognition
	Room string        `json:"room"`
	Data EventResponse `json:"data"`
}
