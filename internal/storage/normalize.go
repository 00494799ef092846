package storage

import (
	"time"

	"github.com/your-org/faceid/internal/embedding"
	"github.com/your-org/faceid/internal/models"
)

// normalizeIdentity fills fields that rows written before version tagging
// and timestamp tracking may lack. firstFaceAdded is the AddedAt of the
// identity's first face, zero if unknown.
func normalizeIdentity(identity *models.Identity, firstFaceAdded, now time.Time) {
	if identity.RegisteredAt.IsZero() {
		if !firstFaceAdded.IsZero() {
			identity.RegisteredAt = firstFaceAdded
		} else {
			identity.RegisteredAt = now
		}
	}
	if identity.UpdatedAt.IsZero() {
		identity.UpdatedAt = identity.RegisteredAt
	}
	if identity.EmbeddingVersion == "" {
		identity.EmbeddingVersion = embedding.LegacyUnversioned
	}
	for i := range identity.Faces {
		if identity.Faces[i].EmbeddingVersion == "" {
			identity.Faces[i].EmbeddingVersion = identity.EmbeddingVersion
		}
	}
}

func firstAdded(faces []models.EnrolledFace) time.Time {
	if len(faces) == 0 {
		return time.Time{}
	}
	return faces[0].AddedAt
}
