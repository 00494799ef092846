package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/faceid/internal/embedding"
)

const (
	arcFaceInputSize = 112
	arcFaceDim       = 512
	arcFaceInput     = "input.1"
	arcFaceOutput    = "683"
)

// Embedder runs ArcFace (w600k_r50) on 112x112 face crops.
// An Embedder is not safe for concurrent use; InsightFace pools them.
type Embedder struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
	dim     int
}

// NewEmbedder loads the ArcFace model. opts may be nil.
func NewEmbedder(modelPath string, opts *ort.SessionOptions) (*Embedder, error) {
	e := &Embedder{size: arcFaceInputSize, dim: arcFaceDim}

	var err error
	e.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(e.size), int64(e.size)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	e.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.dim)))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(modelPath,
		[]string{arcFaceInput}, []string{arcFaceOutput},
		[]ort.Value{e.input}, []ort.Value{e.output},
		opts,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}
	return e, nil
}

// Embed runs the model on a CHW [3, 112, 112] crop and returns a unit-length
// embedding that the caller owns.
func (e *Embedder) Embed(face []float32) ([]float32, error) {
	copy(e.input.GetData(), face)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}
	return embedding.Normalize(e.output.GetData()), nil
}

func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.input != nil {
		e.input.Destroy()
	}
	if e.output != nil {
		e.output.Destroy()
	}
}
