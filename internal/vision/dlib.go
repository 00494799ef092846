//go:build dlib

package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	face "github.com/Kagami/go-face"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/embedding"
	"github.com/your-org/faceid/internal/observability"
)

// dlibConfidence is reported for every dlib detection; the HOG detector
// exposes no score.
const dlibConfidence = 1.0

// Dlib extracts 128-d ResNet descriptors through go-face. Its embeddings are
// compared by Euclidean distance.
type Dlib struct {
	mu      sync.Mutex
	rec     *face.Recognizer
	version embedding.Version
	minConf float32
}

// NewDlib loads the dlib models (shape predictor, ResNet, detector) from
// cfg.ModelsDir.
func NewDlib(cfg config.VisionConfig) (*Dlib, error) {
	slog.Info("loading dlib models", "dir", cfg.ModelsDir)
	rec, err := face.NewRecognizer(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib recognizer: %w", err)
	}
	return &Dlib{
		rec:     rec,
		version: embedding.MustLookup(embedding.DlibResNet),
		minConf: float32(cfg.DetectionThreshold),
	}, nil
}

func newDlibExtractor(cfg config.VisionConfig) (Extractor, error) {
	return NewDlib(cfg)
}

func (d *Dlib) Version() embedding.Version {
	return d.version
}

func (d *Dlib) Extract(ctx context.Context, img image.Image) ([]FaceObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame := img.Bounds()
	if frame.Empty() {
		return nil, nil
	}
	if dlibConfidence < d.minConf {
		return nil, nil
	}

	data, err := EncodeJPEG(img, 95)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractor, err)
	}

	start := time.Now()
	d.mu.Lock()
	found, err := d.rec.Recognize(data)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: recognize: %w", ErrExtractor, err)
	}
	observability.InferenceDuration.WithLabelValues("dlib").Observe(time.Since(start).Seconds())

	faces := make([]FaceObservation, 0, len(found))
	for _, f := range found {
		r := f.Rectangle.Add(frame.Min).Intersect(frame)
		if r.Empty() {
			continue
		}
		desc := [128]float32(f.Descriptor)
		vec := make([]float32, len(desc))
		copy(vec, desc[:])

		lm := make([][2]int, len(f.Shapes))
		for i, p := range f.Shapes {
			lm[i] = [2]int{p.X + frame.Min.X, p.Y + frame.Min.Y}
		}

		faces = append(faces, FaceObservation{
			BoundingBox:         [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y},
			DetectionConfidence: dlibConfidence,
			Embedding:           vec,
			Landmarks:           lm,
		})
	}
	return faces, nil
}

func (d *Dlib) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
}
