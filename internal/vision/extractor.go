package vision

import (
	"context"
	"errors"
	"image"

	"github.com/your-org/faceid/internal/embedding"
)

// ErrExtractor marks failures of the model runtime itself, as opposed to an
// image that simply has no face in it.
var ErrExtractor = errors.New("face extractor failure")

// FaceObservation is one detected face in one image.
type FaceObservation struct {
	BoundingBox         [4]int // x1, y1, x2, y2 with x2 > x1 and y2 > y1
	DetectionConfidence float32
	Embedding           []float32
	Landmarks           [][2]int
}

// Extractor turns an image into face observations. Observations below the
// configured detection threshold are dropped; no order is guaranteed.
// Implementations are safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) ([]FaceObservation, error)
	// Version identifies the vector space of the produced embeddings.
	Version() embedding.Version
	Close()
}

// SelectBest returns the observation with the highest detection confidence.
// The first one wins ties.
func SelectBest(faces []FaceObservation) (FaceObservation, bool) {
	if len(faces) == 0 {
		return FaceObservation{}, false
	}
	best := 0
	for i := 1; i < len(faces); i++ {
		if faces[i].DetectionConfidence > faces[best].DetectionConfidence {
			best = i
		}
	}
	return faces[best], true
}
