package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// Normalization constants of the buffalo_l models.
const (
	detMean = 127.5
	detStd  = 128.0
	embMean = 127.5
	embStd  = 127.5

	// facePadding widens a detected box on each side before embedding.
	facePadding = 0.1
)

// toCHW scales region of img to w x h with bilinear filtering and returns
// planar RGB floats normalized as (pixel - mean) / std.
func toCHW(img image.Image, region image.Rectangle, w, h int, mean, std float32) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, region, draw.Src, nil)

	plane := w * h
	out := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		px := dst.Pix[i*4 : i*4+3]
		out[i] = (float32(px[0]) - mean) / std
		out[plane+i] = (float32(px[1]) - mean) / std
		out[2*plane+i] = (float32(px[2]) - mean) / std
	}
	return out
}

// faceRegion grows box by pad of its size on every side, clipped to frame.
func faceRegion(frame image.Rectangle, box [4]int, pad float64) image.Rectangle {
	padW := int(float64(box[2]-box[0]) * pad)
	padH := int(float64(box[3]-box[1]) * pad)
	r := image.Rect(box[0]-padW, box[1]-padH, box[2]+padW, box[3]+padH)
	return r.Intersect(frame)
}
