package vision

import (
	"fmt"
	"runtime"

	"github.com/your-org/faceid/internal/config"
)

const (
	BackendInsightFace = "insightface"
	BackendDlib        = "dlib"
)

// NewExtractor builds the extractor named by cfg.Backend. Models are loaded
// once here and reused for the life of the process.
func NewExtractor(cfg config.VisionConfig) (Extractor, error) {
	switch cfg.Backend {
	case "", BackendInsightFace:
		return NewInsightFace(cfg)
	case BackendDlib:
		return newDlibExtractor(cfg)
	default:
		return nil, fmt.Errorf("unknown vision backend %q", cfg.Backend)
	}
}

// onnxLibraryPath returns the configured ONNX Runtime library or the
// platform default name.
func onnxLibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
