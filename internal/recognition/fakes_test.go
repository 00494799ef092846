package recognition

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/embedding"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/vision"
)

// fakeExtractor returns canned observations keyed by image.
type fakeExtractor struct {
	version embedding.Version
	faces   map[image.Image][]vision.FaceObservation
	err     error
	calls   int
}

func newFakeExtractor(tag string) *fakeExtractor {
	return &fakeExtractor{
		version: embedding.MustLookup(tag),
		faces:   make(map[image.Image][]vision.FaceObservation),
	}
}

func (f *fakeExtractor) Extract(_ context.Context, img image.Image) ([]vision.FaceObservation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.faces[img], nil
}

func (f *fakeExtractor) Version() embedding.Version { return f.version }
func (f *fakeExtractor) Close()                     {}

// newImage returns a distinct image usable as a fakeExtractor key.
func (f *fakeExtractor) newImage(faces ...vision.FaceObservation) image.Image {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	f.faces[img] = faces
	return img
}

type fakeStore struct {
	mu         sync.Mutex
	identities []models.Identity
	findErr    error
	createErr  error
	appendErr  error
	lastFilter models.AttributeFilter
}

func (s *fakeStore) FindCandidates(_ context.Context, filter models.AttributeFilter) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	if s.findErr != nil {
		return nil, s.findErr
	}
	out := make([]models.Identity, len(s.identities))
	copy(out, s.identities)
	return out, nil
}

func (s *fakeStore) CreateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.identities = append(s.identities, *identity)
	return nil
}

func (s *fakeStore) GetIdentity(_ context.Context, id uuid.UUID) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.identities {
		if s.identities[i].ID == id {
			cp := s.identities[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) AppendFace(_ context.Context, id uuid.UUID, face *models.EnrolledFace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	for i := range s.identities {
		if s.identities[i].ID == id {
			s.identities[i].Faces = append(s.identities[i].Faces, *face)
			s.identities[i].FaceCount++
			return nil
		}
	}
	return errors.New("identity missing")
}

type fakeObjects struct {
	put     map[string][]byte
	deleted []string
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{put: make(map[string][]byte)}
}

func (o *fakeObjects) PutObject(_ context.Context, key string, data []byte, _ string) error {
	if o.putErr != nil {
		return o.putErr
	}
	o.put[key] = data
	return nil
}

func (o *fakeObjects) DeleteObjects(_ context.Context, keys []string) error {
	o.deleted = append(o.deleted, keys...)
	for _, k := range keys {
		delete(o.put, k)
	}
	return nil
}

// unitAt returns a dim-sized unit vector whose cosine similarity to the
// first basis vector is sim.
func unitAt(dim int, sim float64) []float32 {
	v := make([]float32, dim)
	v[0] = float32(sim)
	v[1] = float32(math.Sqrt(1 - sim*sim))
	return v
}

func basis(dim, axis int, scale float32) []float32 {
	v := make([]float32, dim)
	v[axis] = scale
	return v
}

func face(conf float32, emb []float32) vision.FaceObservation {
	return vision.FaceObservation{
		BoundingBox:         [4]int{0, 0, 2, 2},
		DetectionConfidence: conf,
		Embedding:           emb,
	}
}

func identityWith(name, room, tag string, embs ...[]float32) models.Identity {
	id := models.Identity{
		ID:               uuid.New(),
		Profile:          models.Profile{Name: name, StudentID: "S-" + name, Room: room},
		EmbeddingVersion: tag,
	}
	for _, e := range embs {
		id.Faces = append(id.Faces, models.EnrolledFace{
			ID:               uuid.New(),
			Embedding:        e,
			EmbeddingVersion: tag,
		})
	}
	id.FaceCount = len(id.Faces)
	return id
}

func thresholdOf(v float64) *float64 { return &v }
