package vision

import (
	"fmt"
	"image"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// detection is a raw RetinaFace hit in frame coordinates.
type detection struct {
	box       [4]float32 // x1, y1, x2, y2
	score     float32
	landmarks [5][2]float32
}

// retinaHead names the three output tensors produced at one feature stride
// of det_10g.
type retinaHead struct {
	stride int
	scores string
	boxes  string
	kps    string
}

var retinaHeads = []retinaHead{
	{stride: 8, scores: "448", boxes: "451", kps: "454"},
	{stride: 16, scores: "471", boxes: "474", kps: "477"},
	{stride: 32, scores: "494", boxes: "497", kps: "500"},
}

const (
	retinaInputSize  = 640
	anchorsPerCell   = 2
	nmsIoUThreshold  = 0.4
	landmarkCount    = 5
	retinaInputName  = "input.1"
	landmarkChannels = landmarkCount * 2
)

type headTensors struct {
	head   retinaHead
	scores *ort.Tensor[float32] // [n, 1]
	boxes  *ort.Tensor[float32] // [n, 4]
	kps    *ort.Tensor[float32] // [n, 10]
}

// Detector runs RetinaFace (det_10g) through ONNX Runtime.
// A Detector is not safe for concurrent use; InsightFace pools them.
type Detector struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	heads     []headTensors
	threshold float32
	size      int
}

// NewDetector loads the RetinaFace model. opts may be nil.
func NewDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*Detector, error) {
	d := &Detector{threshold: threshold, size: retinaInputSize}

	var err error
	d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(d.size), int64(d.size)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	var names []string
	var outputs []ort.Value
	for _, h := range retinaHeads {
		cells := int64(d.size/h.stride) * int64(d.size/h.stride) * anchorsPerCell
		ht := headTensors{head: h}
		if ht.scores, err = ort.NewEmptyTensor[float32](ort.NewShape(cells, 1)); err == nil {
			if ht.boxes, err = ort.NewEmptyTensor[float32](ort.NewShape(cells, 4)); err == nil {
				ht.kps, err = ort.NewEmptyTensor[float32](ort.NewShape(cells, landmarkChannels))
			}
		}
		d.heads = append(d.heads, ht)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create output tensors for stride %d: %w", h.stride, err)
		}
		names = append(names, h.scores, h.boxes, h.kps)
		outputs = append(outputs, ht.scores, ht.boxes, ht.kps)
	}

	d.session, err = ort.NewAdvancedSession(modelPath,
		[]string{retinaInputName}, names,
		[]ort.Value{d.input}, outputs,
		opts,
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	return d, nil
}

// Detect runs the model on a CHW [3, size, size] input made from frame and
// returns detections in frame coordinates after non-maximum suppression.
func (d *Detector) Detect(input []float32, frame image.Rectangle) ([]detection, error) {
	copy(d.input.GetData(), input)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	sx := float32(frame.Dx()) / float32(d.size)
	sy := float32(frame.Dy()) / float32(d.size)

	var dets []detection
	for _, ht := range d.heads {
		dets = append(dets, d.decodeHead(ht, sx, sy, frame)...)
	}
	return nms(dets, nmsIoUThreshold), nil
}

// decodeHead turns anchor-relative distances at one stride into boxes.
func (d *Detector) decodeHead(ht headTensors, sx, sy float32, frame image.Rectangle) []detection {
	return decodeAnchors(headOutput{
		scores: ht.scores.GetData(),
		boxes:  ht.boxes.GetData(),
		kps:    ht.kps.GetData(),
		stride: ht.head.stride,
		cells:  d.size / ht.head.stride,
	}, d.threshold, sx, sy, frame)
}

// headOutput is the raw output of one stride: per anchor a score, four
// distances and ten landmark offsets, in units of stride.
type headOutput struct {
	scores []float32
	boxes  []float32
	kps    []float32
	stride int
	cells  int // anchor grid width
}

// decodeAnchors keeps anchors scoring at least threshold and maps them from
// model input space to frame, scaled by sx, sy and offset by frame.Min.
func decodeAnchors(h headOutput, threshold, sx, sy float32, frame image.Rectangle) []detection {
	stride := float32(h.stride)
	minX, minY := float32(frame.Min.X), float32(frame.Min.Y)
	maxX, maxY := float32(frame.Max.X), float32(frame.Max.Y)

	var out []detection
	for i, score := range h.scores {
		if score < threshold {
			continue
		}
		cell := i / anchorsPerCell
		ax := float32(cell%h.cells) * stride
		ay := float32(cell/h.cells) * stride

		b := h.boxes[i*4 : i*4+4]
		det := detection{
			score: score,
			box: [4]float32{
				clampF(minX+(ax-b[0]*stride)*sx, minX, maxX),
				clampF(minY+(ay-b[1]*stride)*sy, minY, maxY),
				clampF(minX+(ax+b[2]*stride)*sx, minX, maxX),
				clampF(minY+(ay+b[3]*stride)*sy, minY, maxY),
			},
		}
		k := h.kps[i*landmarkChannels : (i+1)*landmarkChannels]
		for j := 0; j < landmarkCount; j++ {
			det.landmarks[j] = [2]float32{
				minX + (ax+k[j*2]*stride)*sx,
				minY + (ay+k[j*2+1]*stride)*sy,
			}
		}
		out = append(out, det)
	}
	return out
}

// Close releases the session and its tensors.
func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.input != nil {
		d.input.Destroy()
	}
	for _, ht := range d.heads {
		for _, t := range []*ort.Tensor[float32]{ht.scores, ht.boxes, ht.kps} {
			if t != nil {
				t.Destroy()
			}
		}
	}
}

// pixelBox rounds the box outward to whole pixels inside frame. Boxes that
// collapse to zero width or height are rejected.
func (d detection) pixelBox(frame image.Rectangle) ([4]int, bool) {
	x1 := max(int(math.Floor(float64(d.box[0]))), frame.Min.X)
	y1 := max(int(math.Floor(float64(d.box[1]))), frame.Min.Y)
	x2 := min(int(math.Ceil(float64(d.box[2]))), frame.Max.X)
	y2 := min(int(math.Ceil(float64(d.box[3]))), frame.Max.Y)
	if x2 <= x1 || y2 <= y1 {
		return [4]int{}, false
	}
	return [4]int{x1, y1, x2, y2}, true
}

func (d detection) pixelLandmarks() [][2]int {
	out := make([][2]int, len(d.landmarks))
	for i, p := range d.landmarks {
		out[i] = [2]int{int(math.Round(float64(p[0]))), int(math.Round(float64(p[1])))}
	}
	return out
}

// nms keeps the highest scoring box of every overlapping cluster.
func nms(dets []detection, iouThreshold float32) []detection {
	if len(dets) == 0 {
		return dets
	}

	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].score > dets[j].score
	})

	suppressed := make([]bool, len(dets))
	var kept []detection
	for i := range dets {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		for j := i + 1; j < len(dets); j++ {
			if !suppressed[j] && iou(dets[i].box, dets[j].box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	ix := min(a[2], b[2]) - max(a[0], b[0])
	iy := min(a[3], b[3]) - max(a[1], b[1])
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
