//go:build !dlib

package vision

import (
	"errors"

	"github.com/your-org/faceid/internal/config"
)

func newDlibExtractor(config.VisionConfig) (Extractor, error) {
	return nil, errors.New("dlib backend not compiled in, rebuild with -tags dlib")
}
