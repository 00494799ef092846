package handlers

import (
	"time"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/pkg/dto"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dto.TimeFormat)
}

// userResponse converts an identity. Faces are listed only when withFaces is
// set; embeddings are never exposed.
func userResponse(id *models.Identity, withFaces bool) dto.UserResponse {
	resp := dto.UserResponse{
		UserID: id.ID,
		Profile: dto.Profile{
			Name:       id.Profile.Name,
			StudentID:  id.Profile.StudentID,
			Class:      id.Profile.Class,
			Department: id.Profile.Department,
			Room:       id.Profile.Room,
		},
		FaceCount:        id.FaceCount,
		EmbeddingVersion: id.EmbeddingVersion,
		RegisteredAt:     formatTime(id.RegisteredAt),
		UpdatedAt:        formatTime(id.UpdatedAt),
	}
	if resp.FaceCount == 0 {
		resp.FaceCount = len(id.Faces)
	}
	if withFaces {
		for _, f := range id.Faces {
			resp.Faces = append(resp.Faces, faceResponse(&f))
		}
	}
	return resp
}

func faceResponse(f *models.EnrolledFace) dto.FaceResponse {
	return dto.FaceResponse{
		ID:               f.ID,
		SourceRef:        f.SourceRef,
		Confidence:       f.Confidence,
		EmbeddingVersion: f.EmbeddingVersion,
		AddedAt:          formatTime(f.AddedAt),
	}
}

// EventResponse converts a stored or streamed recognition event.
func EventResponse(ev *models.RecognitionEvent) dto.EventResponse {
	return dto.EventResponse{
		ID:               ev.ID,
		ProbeID:          ev.ProbeID,
		Room:             ev.Room,
		Outcome:          ev.Outcome,
		IdentityID:       ev.IdentityID,
		Name:             ev.Name,
		Confidence:       ev.Confidence,
		EmbeddingVersion: ev.EmbeddingVersion,
		Source:           ev.Source,
		Error:            ev.Error,
		CreatedAt:        formatTime(ev.CreatedAt),
	}
}

// WSEvent wraps an event for the websocket feed.
func WSEvent(ev *models.RecognitionEvent) *dto.WSEvent {
	return &dto.WSEvent{Type: "recognition", Room: ev.Room, Data: EventResponse(ev)}
}
