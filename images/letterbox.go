package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
)

// PadValue is the grey level used for letterbox padding.
const PadValue = 114

// LetterboxInfo records how a frame was placed inside the square model input.
type LetterboxInfo struct {
	// Scale is model pixels per source pixel.
	Scale float32
	// PadX and PadY are the offsets of the scaled frame inside the input.
	PadX, PadY float32
	// Size is the side of the square model input.
	Size int
}

// ToSource maps a point in model input pixels back to source frame pixels.
func (l LetterboxInfo) ToSource(x, y float32) (float32, float32) {
	return (x - l.PadX) / l.Scale, (y - l.PadY) / l.Scale
}

// LengthToSource maps a length in model input pixels to source pixels.
func (l LetterboxInfo) LengthToSource(v float32) float32 {
	return v / l.Scale
}

// Letterbox scales src to fit a size x size square without distortion and
// centres it on a grey background.
//
// Arguments:
//   - src: The source frame.
//   - size: The side of the model input in pixels.
//   - dst: An optional size x size buffer to reuse; nil allocates one.
//
// Returns:
//   - *image.RGBA: The letterboxed image.
//   - LetterboxInfo: The scale and padding needed to undo the placement.
func Letterbox(src image.Image, size int, dst *image.RGBA) (*image.RGBA, LetterboxInfo) {
	if dst == nil || dst.Bounds().Dx() != size || dst.Bounds().Dy() != size {
		dst = image.NewRGBA(image.Rect(0, 0, size, size))
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{R: PadValue, G: PadValue, B: PadValue, A: 0xff}), image.Point{}, draw.Src)

	b := src.Bounds()
	w, h := float32(b.Dx()), float32(b.Dy())
	scale := math32.Min(float32(size)/w, float32(size)/h)
	nw := int(math32.Round(w * scale))
	nh := int(math32.Round(h * scale))

	scaled := src
	if nw != b.Dx() || nh != b.Dy() {
		scaled = resize.Resize(uint(nw), uint(nh), src, resize.Bilinear)
	}

	padX := (size - nw) / 2
	padY := (size - nh) / 2
	draw.Draw(dst, image.Rect(padX, padY, padX+nw, padY+nh), scaled, scaled.Bounds().Min, draw.Src)

	return dst, LetterboxInfo{
		Scale: scale,
		PadX:  float32(padX),
		PadY:  float32(padY),
		Size:  size,
	}
}
