package handlers

import (
	"context"
	"errors"
	"image"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/embedding"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/recognition"
	"github.com/your-org/faceid/internal/storage"
	"github.com/your-org/faceid/internal/vision"
)

// IdentityStore is the read and maintenance side of the identity store.
type IdentityStore interface {
	ListIdentities(ctx context.Context, filter models.AttributeFilter) ([]models.Identity, error)
	GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	GetIdentityByAttribute(ctx context.Context, key, value string) (*models.Identity, error)
	DeleteIdentity(ctx context.Context, id uuid.UUID) ([]string, error)
	BackfillTimestamps(ctx context.Context) (int64, error)
}

// Searcher runs nearest-neighbour queries in the store.
type Searcher interface {
	SearchNearest(ctx context.Context, version embedding.Version, probe []float32, filter models.AttributeFilter, limit int) ([]storage.SearchHit, error)
}

type EventStore interface {
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.RecognitionEvent, error)
}

// ObjectStore holds uploaded images.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	RemoveObjects(ctx context.Context, keys []string) (int, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, ev models.RecognitionEvent) error
	PublishProbe(ctx context.Context, task models.ProbeTask) error
}

type Enroller interface {
	Enroll(ctx context.Context, profile models.Profile, images []recognition.EnrollImage) (*models.Identity, error)
	AddFace(ctx context.Context, identityID uuid.UUID, img recognition.EnrollImage) (*models.EnrolledFace, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, filter models.AttributeFilter) (*recognition.MatchResult, error)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidProfile),
		errors.Is(err, recognition.ErrNoImages),
		errors.Is(err, recognition.ErrNoUsableFace),
		errors.Is(err, vision.ErrUndecodable):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrIdentityNotFound):
		return http.StatusNotFound
	case errors.Is(err, recognition.ErrIncompatibleVersion):
		return http.StatusConflict
	case errors.Is(err, recognition.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// abortWithStoreError answers a failed store call; unclassified failures
// mean the store is unavailable.
func abortWithStoreError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
