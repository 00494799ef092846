package vision

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestToCHW(t *testing.T) {
	img := solid(40, 30, color.RGBA{R: 255, G: 127, B: 0, A: 255})

	out := toCHW(img, img.Bounds(), 8, 4, embMean, embStd)
	if len(out) != 3*8*4 {
		t.Fatalf("len = %d, want %d", len(out), 3*8*4)
	}

	plane := 8 * 4
	checks := []struct {
		channel int
		want    float32
	}{
		{0, (255 - embMean) / embStd},
		{1, (127 - embMean) / embStd},
		{2, (0 - embMean) / embStd},
	}
	for _, c := range checks {
		for i := 0; i < plane; i++ {
			if got := out[c.channel*plane+i]; math.Abs(float64(got-c.want)) > 1e-5 {
				t.Fatalf("channel %d pixel %d = %v, want %v", c.channel, i, got, c.want)
			}
		}
	}
}

func TestToCHWDeterministic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	a := toCHW(img, img.Bounds(), 32, 32, detMean, detStd)
	b := toCHW(img, img.Bounds(), 32, 32, detMean, detStd)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("output differs at %d", i)
		}
	}
}

func TestFaceRegion(t *testing.T) {
	frame := image.Rect(0, 0, 100, 100)

	got := faceRegion(frame, [4]int{20, 20, 60, 80}, 0.1)
	if want := image.Rect(16, 14, 64, 86); got != want {
		t.Errorf("faceRegion = %v, want %v", got, want)
	}

	got = faceRegion(frame, [4]int{0, 0, 50, 50}, 0.1)
	if want := image.Rect(0, 0, 55, 55); got != want {
		t.Errorf("clipped faceRegion = %v, want %v", got, want)
	}
}
