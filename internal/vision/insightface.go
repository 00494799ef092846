package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/embedding"
	"github.com/your-org/faceid/internal/observability"
)

const (
	detectorModel = "det_10g.onnx"
	embedderModel = "w600k_r50.onnx"
)

type insightSession struct {
	det *Detector
	emb *Embedder
}

func (s *insightSession) close() {
	if s.det != nil {
		s.det.Close()
	}
	if s.emb != nil {
		s.emb.Close()
	}
}

// InsightFace is the buffalo_l extractor: RetinaFace detection followed by
// ArcFace embedding of every detected face. It keeps a fixed pool of model
// sessions; Extract blocks until one is free.
type InsightFace struct {
	pool     chan *insightSession
	sessions []*insightSession
	version  embedding.Version
	ownsEnv  bool
}

// NewInsightFace loads cfg.Sessions detector/embedder pairs from cfg.ModelsDir.
// The ONNX Runtime environment is initialized on first use.
func NewInsightFace(cfg config.VisionConfig) (*InsightFace, error) {
	x := &InsightFace{version: embedding.MustLookup(embedding.InsightFaceBuffaloL)}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(onnxLibraryPath(cfg.ONNXLibrary))
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnx runtime: %w", err)
		}
		x.ownsEnv = true
	}

	opts, err := sessionOptions(cfg.IntraOpThreads)
	if err != nil {
		x.Close()
		return nil, err
	}
	if opts != nil {
		defer opts.Destroy()
	}

	detPath := filepath.Join(cfg.ModelsDir, detectorModel)
	embPath := filepath.Join(cfg.ModelsDir, embedderModel)
	n := max(cfg.Sessions, 1)

	slog.Info("loading insightface models", "detector", detPath, "embedder", embPath, "sessions", n)
	x.pool = make(chan *insightSession, n)
	for i := 0; i < n; i++ {
		s := &insightSession{}
		s.det, err = NewDetector(detPath, float32(cfg.DetectionThreshold), opts)
		if err == nil {
			s.emb, err = NewEmbedder(embPath, opts)
		}
		if err != nil {
			s.close()
			x.Close()
			return nil, fmt.Errorf("load session %d: %w", i, err)
		}
		x.sessions = append(x.sessions, s)
		x.pool <- s
	}

	slog.Info("insightface extractor ready", "version", x.version.Tag)
	return x, nil
}

func (x *InsightFace) Version() embedding.Version {
	return x.version
}

// Extract detects every face above the detection threshold and embeds it.
func (x *InsightFace) Extract(ctx context.Context, img image.Image) ([]FaceObservation, error) {
	frame := img.Bounds()
	if frame.Empty() {
		return nil, nil
	}

	var s *insightSession
	select {
	case s = <-x.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { x.pool <- s }()

	start := time.Now()
	input := toCHW(img, frame, s.det.size, s.det.size, detMean, detStd)
	dets, err := s.det.Detect(input, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractor, err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	faces := make([]FaceObservation, 0, len(dets))
	for _, d := range dets {
		box, ok := d.pixelBox(frame)
		if !ok {
			continue
		}

		start = time.Now()
		crop := toCHW(img, faceRegion(frame, box, facePadding), s.emb.size, s.emb.size, embMean, embStd)
		vec, err := s.emb.Embed(crop)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtractor, err)
		}
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

		faces = append(faces, FaceObservation{
			BoundingBox:         box,
			DetectionConfidence: d.score,
			Embedding:           vec,
			Landmarks:           d.pixelLandmarks(),
		})
	}
	return faces, nil
}

// Close releases every session. It must not race with Extract.
func (x *InsightFace) Close() {
	for _, s := range x.sessions {
		s.close()
	}
	x.sessions = nil
	if x.ownsEnv {
		_ = ort.DestroyEnvironment()
		x.ownsEnv = false
	}
}

func sessionOptions(intraOpThreads int) (*ort.SessionOptions, error) {
	if intraOpThreads <= 0 {
		return nil, nil
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(intraOpThreads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set intra-op threads: %w", err)
	}
	return opts, nil
}
