package dto

import "github.com/google/uuid"

// TimeFormat is the layout of every timestamp in API responses.
const TimeFormat = "2006-01-02T15:04:05Z"

type Profile struct {
	Name       string `json:"name"`
	StudentID  string `json:"student_id"`
	Class      string `json:"class"`
	Department string `json:"department"`
	Room       string `json:"room"`
}

// UserResponse is an identity as clients see it. Embeddings are never
// included.
type UserResponse struct {
	UserID           uuid.UUID      `json:"user_id"`
	Profile          Profile        `json:"profile"`
	FaceCount        int            `json:"face_count"`
	EmbeddingVersion string         `json:"embedding_version"`
	RegisteredAt     string         `json:"registered_at"`
	UpdatedAt        string         `json:"updated_at"`
	Faces            []FaceResponse `json:"faces,omitempty"`
}

type FaceResponse struct {
	ID               uuid.UUID `json:"id"`
	SourceRef        string    `json:"source_ref"`
	Confidence       float32   `json:"confidence"`
	EmbeddingVersion string    `json:"embedding_version"`
	AddedAt          string    `json:"added_at"`
}

type RegisterResponse struct {
	Message string       `json:"message"`
	Data    UserResponse `json:"data"`
}

type DeleteUserResponse struct {
	Message       string    `json:"message"`
	UserID        uuid.UUID `json:"user_id"`
	DeletedImages int       `json:"deleted_images"`
	TotalImages   int       `json:"total_images"`
}

// RecognizeResponse answers POST /v1/recognize. Confidence is a similarity
// for cosine versions and a distance otherwise; Metric says which.
type RecognizeResponse struct {
	Recognized  bool          `json:"recognized"`
	Confidence  float64       `json:"confidence"`
	Metric      string        `json:"metric"`
	Threshold   float64       `json:"threshold"`
	User        *UserResponse `json:"user,omitempty"`
	Message     string        `json:"message,omitempty"`
	BoundingBox *[4]int       `json:"bbox,omitempty"`
}

type SearchResult struct {
	UserID    uuid.UUID `json:"user_id"`
	FaceID    uuid.UUID `json:"face_id"`
	Name      string    `json:"name"`
	StudentID string    `json:"student_id"`
	Score     float64   `json:"score"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Metric  string         `json:"metric"`
}

type BackfillResponse struct {
	Message      string `json:"message"`
	UpdatedCount int64  `json:"updated_count"`
}
