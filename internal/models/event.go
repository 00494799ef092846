package models

import (
	"time"

	"github.com/google/uuid"
)

// RecognitionEvent records one recognition decision.
type RecognitionEvent struct {
	ID               uuid.UUID  `json:"id"`
	ProbeID          uuid.UUID  `json:"probe_id"`
	Room             string     `json:"room"`
	Outcome          string     `json:"outcome"`
	IdentityID       *uuid.UUID `json:"identity_id,omitempty"`
	Name             string     `json:"name,omitempty"`
	Confidence       float64    `json:"confidence"`
	EmbeddingVersion string     `json:"embedding_version"`
	Source           string     `json:"source"`
	Error            string     `json:"error,omitempty"` // set for OutcomeError
	CreatedAt        time.Time  `json:"created_at"`
}

// OutcomeError marks an event for a probe whose recognition failed on an
// extractor or store fault. Other outcomes are the matcher's.
const OutcomeError = "error"

// Event sources.
const (
	SourceAPI    = "api"
	SourceWorker = "worker"
)

// ProbeTask is the message published to NATS for asynchronous recognition.
type ProbeTask struct {
	ProbeID     uuid.UUID `json:"probe_id"`
	Room        string    `json:"room,omitempty"`
	ImageRef    string    `json:"image_ref"` // MinIO object key
	SubmittedAt time.Time `json:"submitted_at"`
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	Room    string
	Outcome string
	Limit   int
}
