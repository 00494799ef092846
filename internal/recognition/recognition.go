// Package recognition decides who is in a probe image and enrolls new
// identities. It reads and writes the identity store only through the
// interfaces below.
package recognition

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/models"
)

var (
	// ErrNoUsableFace rejects an enrollment where no image yielded a face.
	ErrNoUsableFace = errors.New("no face detected in the provided images")
	// ErrNoImages rejects an enrollment with nothing to process.
	ErrNoImages = errors.New("no images provided")
	// ErrIncompatibleVersion rejects appending a face produced by a different
	// extractor than the identity's existing faces.
	ErrIncompatibleVersion = errors.New("incompatible embedding version")
	ErrIdentityNotFound    = models.ErrIdentityNotFound
	// ErrStoreUnavailable wraps failures of the identity or object store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// CandidateSource returns identities with their embeddings, optionally
// restricted by a profile attribute. Enumeration order must be stable.
type CandidateSource interface {
	FindCandidates(ctx context.Context, filter models.AttributeFilter) ([]models.Identity, error)
}

// IdentityRepository is the write side used by enrollment.
type IdentityRepository interface {
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	AppendFace(ctx context.Context, identityID uuid.UUID, face *models.EnrolledFace) error
}

// ObjectStore keeps enrollment source images.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObjects(ctx context.Context, keys []string) error
}
