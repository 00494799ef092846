package vision

import (
	"image"
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b [4]float32
		want float32
	}{
		{"identical", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1},
		{"disjoint", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0},
		{"touching", [4]float32{0, 0, 10, 10}, [4]float32{10, 0, 20, 10}, 0},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", [4]float32{0, 0, 0, 0}, [4]float32{0, 0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("iou = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNMS(t *testing.T) {
	dets := []detection{
		{box: [4]float32{0, 0, 10, 10}, score: 0.7},
		{box: [4]float32{1, 1, 11, 11}, score: 0.9},
		{box: [4]float32{50, 50, 60, 60}, score: 0.8},
	}

	kept := nms(dets, 0.4)
	if len(kept) != 2 {
		t.Fatalf("kept %d detections, want 2", len(kept))
	}
	if kept[0].score != 0.9 || kept[1].score != 0.8 {
		t.Errorf("kept scores = %v, %v; want 0.9, 0.8", kept[0].score, kept[1].score)
	}

	if got := nms(nil, 0.4); len(got) != 0 {
		t.Errorf("nms(nil) = %v", got)
	}
}

func TestPixelBox(t *testing.T) {
	frame := image.Rect(0, 0, 100, 80)

	tests := []struct {
		name   string
		box    [4]float32
		want   [4]int
		wantOK bool
	}{
		{"rounds outward", [4]float32{10.4, 20.6, 30.2, 40.1}, [4]int{10, 20, 31, 41}, true},
		{"clipped to frame", [4]float32{-5, -5, 120, 90}, [4]int{0, 0, 100, 80}, true},
		{"zero width", [4]float32{10, 10, 10, 20}, [4]int{}, false},
		{"outside frame", [4]float32{100, 10, 110, 20}, [4]int{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := detection{box: tt.box}.pixelBox(frame)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("pixelBox = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPixelLandmarks(t *testing.T) {
	d := detection{landmarks: [5][2]float32{{1.4, 1.6}, {2, 3}, {4.5, 5.49}, {0, 0}, {9.9, 9.1}}}
	got := d.pixelLandmarks()
	want := [][2]int{{1, 2}, {2, 3}, {5, 5}, {0, 0}, {10, 9}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("landmark %d = %v, want %v", i, got[i], want[i])
		}
	}
}

// anchorGrid builds a head output of cells*cells cells with every anchor at
// score 0 and the given anchors overridden.
func anchorGrid(stride, cells int, set map[int]float32, box [4]float32) headOutput {
	n := cells * cells * anchorsPerCell
	h := headOutput{
		scores: make([]float32, n),
		boxes:  make([]float32, n*4),
		kps:    make([]float32, n*landmarkChannels),
		stride: stride,
		cells:  cells,
	}
	for i, score := range set {
		h.scores[i] = score
		copy(h.boxes[i*4:], box[:])
	}
	return h
}

func TestDecodeAnchorsThreshold(t *testing.T) {
	frame := image.Rect(0, 0, 64, 64)
	tests := []struct {
		name  string
		score float32
		kept  bool
	}{
		{"above", 0.9, true},
		{"at threshold", 0.5, true},
		{"just below", 0.4999, false},
		{"zero", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := anchorGrid(8, 8, map[int]float32{10: tt.score}, [4]float32{1, 1, 1, 1})
			got := decodeAnchors(h, 0.5, 1, 1, frame)
			if tt.kept && (len(got) != 1 || got[0].score != tt.score) {
				t.Errorf("got %+v, want one detection with score %v", got, tt.score)
			}
			if !tt.kept && len(got) != 0 {
				t.Errorf("got %d detections, want none", len(got))
			}
		})
	}
}

func TestDecodeAnchorsCoordinates(t *testing.T) {
	// Anchor 2*(1*4+2)+1 = 13 is the second anchor of cell (x=2, y=1) at
	// stride 8, so its center is (16, 8) in model input space.
	const anchor = 13
	tests := []struct {
		name   string
		sx, sy float32
		frame  image.Rectangle
		want   [4]float32
		lm0    [2]float32
	}{
		{"identity scale", 1, 1, image.Rect(0, 0, 32, 32), [4]float32{8, 0, 32, 24}, [2]float32{24, 16}},
		{"scaled", 2, 0.5, image.Rect(0, 0, 64, 16), [4]float32{16, 0, 64, 12}, [2]float32{48, 8}},
		{"offset frame", 1, 1, image.Rect(100, 50, 132, 82), [4]float32{108, 50, 132, 74}, [2]float32{124, 66}},
		{"clamped", 1, 1, image.Rect(0, 0, 20, 20), [4]float32{8, 0, 20, 20}, [2]float32{24, 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := anchorGrid(8, 4, map[int]float32{anchor: 0.8}, [4]float32{1, 1, 2, 2})
			k := h.kps[anchor*landmarkChannels:]
			k[0], k[1] = 1, 1

			got := decodeAnchors(h, 0.5, tt.sx, tt.sy, tt.frame)
			if len(got) != 1 {
				t.Fatalf("got %d detections, want 1", len(got))
			}
			for i := range tt.want {
				if math.Abs(float64(got[0].box[i]-tt.want[i])) > 1e-4 {
					t.Errorf("box = %v, want %v", got[0].box, tt.want)
					break
				}
			}
			if got[0].landmarks[0] != tt.lm0 {
				t.Errorf("landmark 0 = %v, want %v", got[0].landmarks[0], tt.lm0)
			}
		})
	}
}
