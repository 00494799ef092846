package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/vision"
)

// EnrollImage is one submitted enrollment image. Image may be nil, in which
// case Data is decoded; undecodable data counts as an image without a face.
type EnrollImage struct {
	Name        string
	ContentType string
	Data        []byte
	Image       image.Image
}

// Enroller creates identities from face images and appends faces to them.
type Enroller struct {
	extractor vision.Extractor
	store     IdentityRepository
	objects   ObjectStore
	now       func() time.Time
}

// NewEnroller returns an Enroller. objects may be nil, in which case source
// images are not kept and each face references the submitted file name.
func NewEnroller(extractor vision.Extractor, store IdentityRepository, objects ObjectStore) *Enroller {
	return &Enroller{
		extractor: extractor,
		store:     store,
		objects:   objects,
		now:       time.Now,
	}
}

type usableImage struct {
	img  EnrollImage
	face vision.FaceObservation
}

// Enroll builds one identity with a face per image that yields one, in input
// order. Images without a face are skipped; if none yields a face the
// enrollment is rejected with ErrNoUsableFace and nothing is stored.
func (e *Enroller) Enroll(ctx context.Context, profile models.Profile, images []EnrollImage) (*models.Identity, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	var usable []usableImage
	for i, im := range images {
		face, ok, err := e.bestFace(ctx, im)
		if err != nil {
			observability.Enrollments.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("extract image %d: %w", i, err)
		}
		if !ok {
			slog.Warn("enrollment image has no usable face", "image", im.Name, "index", i)
			continue
		}
		usable = append(usable, usableImage{img: im, face: face})
	}
	if len(usable) == 0 {
		observability.Enrollments.WithLabelValues("rejected").Inc()
		return nil, ErrNoUsableFace
	}

	now := e.now().UTC()
	version := e.extractor.Version()
	identity := &models.Identity{
		ID:               uuid.New(),
		Profile:          profile,
		EmbeddingVersion: version.Tag,
		RegisteredAt:     now,
		UpdatedAt:        now,
	}

	var stored []string
	for i, u := range usable {
		ref, err := e.storeImage(ctx, identity.ID, i, u.img)
		if err != nil {
			e.discard(ctx, stored)
			observability.Enrollments.WithLabelValues("error").Inc()
			return nil, err
		}
		if e.objects != nil {
			stored = append(stored, ref)
		}
		identity.Faces = append(identity.Faces, newEnrolledFace(u.face, ref, version.Tag, now))
	}
	identity.FaceCount = len(identity.Faces)

	if err := e.store.CreateIdentity(ctx, identity); err != nil {
		e.discard(ctx, stored)
		observability.Enrollments.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: create identity: %w", ErrStoreUnavailable, err)
	}

	observability.Enrollments.WithLabelValues("created").Inc()
	observability.FacesEnrolled.Add(float64(len(identity.Faces)))
	slog.Info("identity enrolled",
		"identity", identity.ID,
		"faces", len(identity.Faces),
		"skipped", len(images)-len(usable),
		"version", version.Tag,
	)
	return identity, nil
}

// AddFace appends one face to an existing identity. The identity's embedding
// version must match the extractor's.
func (e *Enroller) AddFace(ctx context.Context, identityID uuid.UUID, im EnrollImage) (*models.EnrolledFace, error) {
	existing, err := e.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("%w: get identity: %w", ErrStoreUnavailable, err)
	}
	if existing == nil {
		return nil, ErrIdentityNotFound
	}

	version := e.extractor.Version()
	if existing.EmbeddingVersion != version.Tag {
		return nil, fmt.Errorf("%w: identity uses %q, extractor produces %q",
			ErrIncompatibleVersion, existing.EmbeddingVersion, version.Tag)
	}

	face, ok, err := e.bestFace(ctx, im)
	if err != nil {
		return nil, fmt.Errorf("extract image: %w", err)
	}
	if !ok {
		return nil, ErrNoUsableFace
	}

	ref, err := e.storeImage(ctx, identityID, existing.FaceCount, im)
	if err != nil {
		return nil, err
	}

	enrolled := newEnrolledFace(face, ref, version.Tag, e.now().UTC())
	if err := e.store.AppendFace(ctx, identityID, &enrolled); err != nil {
		if e.objects != nil {
			e.discard(ctx, []string{ref})
		}
		return nil, fmt.Errorf("%w: append face: %w", ErrStoreUnavailable, err)
	}

	observability.FacesEnrolled.Inc()
	slog.Info("face appended", "identity", identityID, "face", enrolled.ID)
	return &enrolled, nil
}

func (e *Enroller) bestFace(ctx context.Context, im EnrollImage) (vision.FaceObservation, bool, error) {
	img := im.Image
	if img == nil {
		decoded, err := vision.DecodeImage(im.Data)
		if err != nil {
			slog.Warn("skipping undecodable enrollment image", "image", im.Name, "error", err)
			return vision.FaceObservation{}, false, nil
		}
		img = decoded
	}

	faces, err := e.extractor.Extract(ctx, img)
	if err != nil {
		return vision.FaceObservation{}, false, err
	}
	face, ok := vision.SelectBest(faces)
	return face, ok, nil
}

func (e *Enroller) storeImage(ctx context.Context, identityID uuid.UUID, index int, im EnrollImage) (string, error) {
	name := cleanName(im.Name)
	if e.objects == nil {
		return name, nil
	}

	contentType := im.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(im.Data)
	}
	key := fmt.Sprintf("faces/%s/%02d_%s", identityID, index, name)
	if err := e.objects.PutObject(ctx, key, im.Data, contentType); err != nil {
		return "", fmt.Errorf("%w: store image: %w", ErrStoreUnavailable, err)
	}
	return key, nil
}

func (e *Enroller) discard(ctx context.Context, keys []string) {
	if len(keys) == 0 || e.objects == nil {
		return
	}
	if err := e.objects.DeleteObjects(ctx, keys); err != nil {
		slog.Warn("cleanup enrollment images", "keys", len(keys), "error", err)
	}
}

func newEnrolledFace(face vision.FaceObservation, ref, version string, at time.Time) models.EnrolledFace {
	return models.EnrolledFace{
		ID:               uuid.New(),
		SourceRef:        ref,
		Embedding:        face.Embedding,
		EmbeddingVersion: version,
		Confidence:       face.DetectionConfidence,
		Landmarks:        face.Landmarks,
		AddedAt:          at,
	}
}

// cleanName keeps the base name of an uploaded file with spaces removed.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}
